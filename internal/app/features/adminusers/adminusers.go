// internal/app/features/adminusers/adminusers.go
package adminusers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	errorsfeature "github.com/dalemusser/pinboard/internal/app/features/errors"
	"github.com/dalemusser/pinboard/internal/app/store/sessions"
	"github.com/dalemusser/pinboard/internal/app/store/storeutil"
	userstore "github.com/dalemusser/pinboard/internal/app/store/users"
	"github.com/dalemusser/pinboard/internal/app/system/auditlog"
	"github.com/dalemusser/pinboard/internal/app/system/auth"
	"github.com/dalemusser/pinboard/internal/app/system/normalize"
	"github.com/dalemusser/pinboard/internal/app/system/viewdata"
	"github.com/dalemusser/pinboard/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const pageSize = 25

// Handler lets admins find accounts, disable or re-enable them and change
// their site role.
type Handler struct {
	users       *userstore.Store
	sessions    *sessions.Store
	errLog      *errorsfeature.ErrorLogger
	auditLogger *auditlog.Logger
	logger      *zap.Logger
}

func NewHandler(db *mongo.Database, errLog *errorsfeature.ErrorLogger, auditLogger *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		users:       userstore.New(db),
		sessions:    sessions.New(db),
		errLog:      errLog,
		auditLogger: auditLogger,
		logger:      logger,
	}
}

// Routes mounts member administration; admins only.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireRole(models.RoleAdmin))
	r.Get("/", h.list)
	r.Post("/{id}/disable", h.disable)
	r.Post("/{id}/enable", h.enable)
	r.Post("/{id}/role", h.setRole)
	return r
}

type userRow struct {
	ID         string
	Name       string
	Username   string
	Email      string
	Role       string
	Status     string
	AuthMethod string
	Joined     string
	Posts      int
	Followers  int
	IsSelf     bool
}

// ListVM is the view model for the members page.
type ListVM struct {
	viewdata.BaseVM

	Query  string
	Status string
	Rows   []userRow
	Roles  []string

	Page     int
	Total    int64
	PrevPage int
	NextPage int

	Success string
	Error   string
}

var successMessages = map[string]string{
	"disabled": "Account disabled and signed out.",
	"enabled":  "Account enabled.",
	"role":     "Role updated.",
}

var errorMessages = map[string]string{
	"self":      "You cannot change your own account here.",
	"not_found": "That account no longer exists.",
	"bad_role":  "Unknown role.",
	"failed":    "Something went wrong. Please try again.",
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	viewer, _ := auth.CurrentUser(r)
	q := r.URL.Query()
	query := normalize.QueryParam(q.Get("q"))
	st := normalize.Status(q.Get("status"))
	if st != "" && !models.IsValidStatus(st) {
		st = ""
	}
	page := int(storeutil.ParsePage(q.Get("page")))

	users, total, err := h.users.List(r.Context(), userstore.ListFilter{
		Query:  query,
		Status: st,
		Limit:  pageSize,
		Offset: storeutil.Offset(pageSize, int64(page)),
	})
	if err != nil {
		h.errLog.Log(r, "failed to list users", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	rows := make([]userRow, 0, len(users))
	for _, u := range users {
		rows = append(rows, userRow{
			ID:         u.ID.Hex(),
			Name:       u.FullName,
			Username:   u.Username,
			Email:      u.Email,
			Role:       u.Role,
			Status:     u.Status,
			AuthMethod: u.AuthMethod,
			Joined:     u.CreatedAt.UTC().Format("Jan 2, 2006"),
			Posts:      u.PostCount,
			Followers:  u.FollowerCount,
			IsSelf:     u.ID.Hex() == viewer.ID,
		})
	}

	vm := ListVM{
		BaseVM:  viewdata.NewBaseVM(r, "Members", "/feed"),
		Query:   query,
		Status:  st,
		Rows:    rows,
		Roles:   models.AllRoles(),
		Page:    page,
		Total:   total,
		Success: successMessages[q.Get("success")],
		Error:   errorMessages[q.Get("error")],
	}
	if page > 1 {
		vm.PrevPage = page - 1
	}
	if int64(page*pageSize) < total {
		vm.NextPage = page + 1
	}
	templates.Render(w, r, "adminusers/list", vm)
}

var (
	errSelf     = errors.New("cannot moderate own account")
	errNotFound = errors.New("user not found")
)

// target loads the account named in the URL, refusing the admin's own.
func (h *Handler) target(r *http.Request) (*models.User, primitive.ObjectID, error) {
	actor, _ := auth.CurrentUser(r)
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		return nil, actor.UserID(), errNotFound
	}
	if id == actor.UserID() {
		return nil, actor.UserID(), errSelf
	}
	u, err := h.users.GetByID(r.Context(), id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, actor.UserID(), errNotFound
	}
	return u, actor.UserID(), err
}

func (h *Handler) disable(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, true)
}

func (h *Handler) enable(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, false)
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request, disable bool) {
	u, actorID, err := h.target(r)
	if err != nil {
		h.back(w, r, "error", h.errorCode(r, err))
		return
	}

	next, code := models.StatusActive, "enabled"
	if disable {
		next, code = models.StatusDisabled, "disabled"
	}
	if err := h.users.SetStatus(r.Context(), u.ID, next); err != nil {
		h.errLog.Log(r, "failed to change user status", err)
		h.back(w, r, "error", "failed")
		return
	}
	if disable {
		n, err := h.sessions.CloseByUserExcept(r.Context(), u.ID, "", sessions.EndReasonRevoked)
		if err != nil {
			h.logger.Warn("failed to close sessions of disabled user", zap.String("user_id", u.ID.Hex()), zap.Error(err))
		} else {
			h.logger.Info("disabled user signed out", zap.String("user_id", u.ID.Hex()), zap.Int64("sessions", n))
		}
	}
	h.auditLogger.UserStatusChanged(r, actorID, u.ID, disable)
	h.back(w, r, "success", code)
}

func (h *Handler) setRole(w http.ResponseWriter, r *http.Request) {
	u, actorID, err := h.target(r)
	if err != nil {
		h.back(w, r, "error", h.errorCode(r, err))
		return
	}
	role := normalize.Role(r.FormValue("role"))
	if !models.IsValidRole(role) {
		h.back(w, r, "error", "bad_role")
		return
	}
	if role == u.Role {
		h.back(w, r, "success", "role")
		return
	}
	if err := h.users.SetRole(r.Context(), u.ID, role); err != nil {
		h.errLog.Log(r, "failed to change user role", err)
		h.back(w, r, "error", "failed")
		return
	}
	h.auditLogger.RoleChanged(r, actorID, u.ID, u.Role, role)
	h.back(w, r, "success", "role")
}

func (h *Handler) errorCode(r *http.Request, err error) string {
	switch {
	case errors.Is(err, errSelf):
		return "self"
	case errors.Is(err, errNotFound):
		return "not_found"
	default:
		h.errLog.Log(r, "failed to load user for moderation", err)
		return "failed"
	}
}

// back returns to the list, keeping the search the admin came from.
func (h *Handler) back(w http.ResponseWriter, r *http.Request, key, code string) {
	v := url.Values{}
	if q := strings.TrimSpace(r.FormValue("q")); q != "" {
		v.Set("q", q)
	}
	v.Set(key, code)
	http.Redirect(w, r, "/admin/users?"+v.Encode(), http.StatusSeeOther)
}
