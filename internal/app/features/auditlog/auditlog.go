// internal/app/features/auditlog/auditlog.go
package auditlog

import (
	"net/http"
	"strings"
	"time"

	errorsfeature "github.com/dalemusser/pinboard/internal/app/features/errors"
	"github.com/dalemusser/pinboard/internal/app/store/audit"
	"github.com/dalemusser/pinboard/internal/app/store/storeutil"
	userstore "github.com/dalemusser/pinboard/internal/app/store/users"
	"github.com/dalemusser/pinboard/internal/app/system/auth"
	"github.com/dalemusser/pinboard/internal/app/system/viewdata"
	"github.com/dalemusser/pinboard/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const pageSize = 50

// Handler serves the admin audit log.
type Handler struct {
	auditStore *audit.Store
	userStore  *userstore.Store
	errLog     *errorsfeature.ErrorLogger
	logger     *zap.Logger
}

func NewHandler(db *mongo.Database, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		auditStore: audit.New(db),
		userStore:  userstore.New(db),
		errLog:     errLog,
		logger:     logger,
	}
}

// Routes mounts the audit log; admins only.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireRole(models.RoleAdmin))
	r.Get("/", h.list)
	return r
}

// listItem is one audit row.
type listItem struct {
	Timestamp time.Time
	Category  string
	EventType string
	UserName  string // affected account
	ActorName string // set when someone else acted
	IP        string
	Success   bool
	Reason    string
	Details   map[string]string
}

type categoryOption struct {
	Value string
	Label string
}

// ListVM is the view model for the audit log page.
type ListVM struct {
	viewdata.BaseVM

	Items []listItem

	Category   string
	EventType  string
	Categories []categoryOption
	EventTypes []string

	Page     int
	Total    int64
	PrevPage int
	NextPage int
}

var categories = []categoryOption{
	{Value: audit.CategoryAuth, Label: "Sign-in"},
	{Value: audit.CategoryAccount, Label: "Accounts"},
	{Value: audit.CategoryContent, Label: "Content"},
}

// eventTypesFor lists the event types in category, or all of them.
func eventTypesFor(category string) []string {
	byCategory := map[string][]string{
		audit.CategoryAuth: {
			audit.EventLoginSuccess,
			audit.EventLoginFailedUserNotFound,
			audit.EventLoginFailedWrongPassword,
			audit.EventLoginFailedUserDisabled,
			audit.EventLoginLockedOut,
			audit.EventLogout,
		},
		audit.CategoryAccount: {
			audit.EventSignup,
			audit.EventPasswordChanged,
			audit.EventProfileUpdated,
			audit.EventUserDisabled,
			audit.EventUserEnabled,
			audit.EventRoleChanged,
		},
		audit.CategoryContent: {
			audit.EventPostDeleted,
			audit.EventBoardCreated,
		},
	}
	if category != "" {
		return byCategory[category]
	}
	var all []string
	for _, c := range categories {
		all = append(all, byCategory[c.Value]...)
	}
	return all
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := strings.TrimSpace(q.Get("category"))
	eventType := strings.TrimSpace(q.Get("event_type"))
	page := int(storeutil.ParsePage(q.Get("page")))

	filter := audit.QueryFilter{
		Category:  category,
		EventType: eventType,
		Limit:     pageSize,
		Offset:    storeutil.Offset(pageSize, int64(page)),
	}
	events, err := h.auditStore.Query(r.Context(), filter)
	if err != nil {
		h.errLog.Log(r, "failed to query audit events", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	total, err := h.auditStore.Count(r.Context(), filter)
	if err != nil {
		h.logger.Warn("failed to count audit events", zap.Error(err))
		total = int64(len(events))
	}

	names := h.resolveNames(r, events)
	items := make([]listItem, 0, len(events))
	for _, e := range events {
		item := listItem{
			Timestamp: e.CreatedAt.UTC(),
			Category:  e.Category,
			EventType: e.EventType,
			IP:        e.IP,
			Success:   e.Success,
			Reason:    e.FailureReason,
			Details:   e.Details,
		}
		if e.UserID != nil {
			item.UserName = names[*e.UserID]
		}
		if e.ActorID != nil {
			item.ActorName = names[*e.ActorID]
		}
		items = append(items, item)
	}

	vm := ListVM{
		BaseVM:     viewdata.NewBaseVM(r, "Audit log", "/admin/users"),
		Items:      items,
		Category:   category,
		EventType:  eventType,
		Categories: categories,
		EventTypes: eventTypesFor(category),
		Page:       page,
		Total:      total,
	}
	if page > 1 {
		vm.PrevPage = page - 1
	}
	if int64(page*pageSize) < total {
		vm.NextPage = page + 1
	}
	templates.Render(w, r, "auditlog/list", vm)
}

// resolveNames maps every user and actor id in events to "Name (@handle)".
// Deleted accounts are left blank.
func (h *Handler) resolveNames(r *http.Request, events []audit.Event) map[primitive.ObjectID]string {
	seen := make(map[primitive.ObjectID]struct{})
	var ids []primitive.ObjectID
	add := func(id *primitive.ObjectID) {
		if id == nil {
			return
		}
		if _, ok := seen[*id]; !ok {
			seen[*id] = struct{}{}
			ids = append(ids, *id)
		}
	}
	for _, e := range events {
		add(e.UserID)
		add(e.ActorID)
	}

	names := make(map[primitive.ObjectID]string, len(ids))
	if len(ids) == 0 {
		return names
	}
	users, err := h.userStore.GetByIDs(r.Context(), ids)
	if err != nil {
		h.logger.Warn("failed to resolve audit user names", zap.Error(err))
		return names
	}
	for _, u := range users {
		names[u.ID] = u.FullName + " (@" + u.Username + ")"
	}
	return names
}
