// internal/app/features/dashboard/dashboard.go
package dashboard

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	errorsfeature "github.com/dalemusser/pinboard/internal/app/features/errors"
	"github.com/dalemusser/pinboard/internal/app/store/audit"
	"github.com/dalemusser/pinboard/internal/app/store/sessions"
	streakstore "github.com/dalemusser/pinboard/internal/app/store/streaks"
	userstore "github.com/dalemusser/pinboard/internal/app/store/users"
	"github.com/dalemusser/pinboard/internal/app/system/auth"
	"github.com/dalemusser/pinboard/internal/app/system/timeouts"
	"github.com/dalemusser/pinboard/internal/app/system/viewdata"
	"github.com/dalemusser/pinboard/internal/domain/models"
	"github.com/dalemusser/pinboard/internal/domain/streak"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	recentSignups  = 5
	recentSessions = 20
)

// Handler serves the admin overview: site totals, recent signups and the
// currently open sessions.
type Handler struct {
	db       *mongo.Database
	users    *userstore.Store
	sessions *sessions.Store
	streaks  *streakstore.Store
	audit    *audit.Store
	errLog   *errorsfeature.ErrorLogger
	logger   *zap.Logger
}

// NewHandler creates a new dashboard Handler.
func NewHandler(db *mongo.Database, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		db:       db,
		users:    userstore.New(db),
		sessions: sessions.New(db),
		streaks:  streakstore.New(db),
		audit:    audit.New(db),
		errLog:   errLog,
		logger:   logger,
	}
}

// Routes mounts the overview at /admin; admins only.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireRole(models.RoleAdmin))
	r.Get("/", h.showDashboard)
	return r
}

// Totals are the site-wide counters on the overview.
type Totals struct {
	Members        int64
	Disabled       int64
	Posts          int64
	Boards         int64
	Messages       int64
	OpenSessions   int64
	ActiveToday    int64
	FailedLogins24 int64
}

// SessionVM is one open session.
type SessionVM struct {
	UserName        string
	Username        string
	IPAddress       string
	Device          string
	LoginAt         string
	LastActivityAgo string
	IsCurrent       bool
}

// SignupVM is one recently created account.
type SignupVM struct {
	Name     string
	Username string
	Joined   string
}

// DashboardVM is the view model for the admin overview.
type DashboardVM struct {
	viewdata.BaseVM
	Totals   Totals
	Signups  []SignupVM
	Sessions []SessionVM
}

func (h *Handler) showDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()
	now := time.Now()

	totals, err := h.totals(ctx, now)
	if err != nil {
		h.errLog.Log(r, "failed to count site totals", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	newest, _, err := h.users.List(ctx, userstore.ListFilter{Limit: recentSignups})
	if err != nil {
		h.errLog.Log(r, "failed to list recent signups", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	signups := make([]SignupVM, 0, len(newest))
	for _, u := range newest {
		signups = append(signups, SignupVM{
			Name:     u.FullName,
			Username: u.Username,
			Joined:   formatTimeAgo(u.CreatedAt, now),
		})
	}

	open, err := h.sessions.ListActive(ctx, recentSessions)
	if err != nil {
		h.errLog.Log(r, "failed to list open sessions", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	vm := DashboardVM{
		BaseVM:   viewdata.NewBaseVM(r, "Admin", "/feed"),
		Totals:   totals,
		Signups:  signups,
		Sessions: h.sessionRows(ctx, r, open, now),
	}
	templates.Render(w, r, "dashboard/admin", vm)
}

func (h *Handler) totals(ctx context.Context, now time.Time) (Totals, error) {
	var t Totals
	var err error

	if t.Members, err = h.db.Collection("users").CountDocuments(ctx, bson.M{}); err != nil {
		return t, err
	}
	if t.Disabled, err = h.db.Collection("users").CountDocuments(ctx, bson.M{"status": models.StatusDisabled}); err != nil {
		return t, err
	}
	// Estimated counts are enough for content totals.
	if t.Posts, err = h.db.Collection("posts").EstimatedDocumentCount(ctx); err != nil {
		return t, err
	}
	if t.Boards, err = h.db.Collection("boards").EstimatedDocumentCount(ctx); err != nil {
		return t, err
	}
	if t.Messages, err = h.db.Collection("messages").EstimatedDocumentCount(ctx); err != nil {
		return t, err
	}
	if t.OpenSessions, err = h.sessions.CountActive(ctx); err != nil {
		return t, err
	}
	if t.ActiveToday, err = h.streaks.CountActiveSince(ctx, streak.Date(now)); err != nil {
		return t, err
	}

	since := now.Add(-24 * time.Hour)
	for _, ev := range []string{
		audit.EventLoginFailedUserNotFound,
		audit.EventLoginFailedWrongPassword,
		audit.EventLoginFailedUserDisabled,
	} {
		n, err := h.audit.Count(ctx, audit.QueryFilter{EventType: ev, Since: &since})
		if err != nil {
			return t, err
		}
		t.FailedLogins24 += n
	}
	return t, nil
}

// sessionRows joins sessions with their users. A failed user lookup only
// drops the names.
func (h *Handler) sessionRows(ctx context.Context, r *http.Request, open []sessions.Session, now time.Time) []SessionVM {
	currentToken := ""
	if u, ok := auth.CurrentUser(r); ok {
		currentToken = u.SessionToken()
	}

	ids := make([]primitive.ObjectID, 0, len(open))
	for _, s := range open {
		ids = append(ids, s.UserID)
	}
	byID := make(map[primitive.ObjectID]models.User, len(ids))
	users, err := h.users.GetByIDs(ctx, ids)
	if err != nil {
		h.logger.Warn("session user lookup failed", zap.Error(err))
	}
	for _, u := range users {
		byID[u.ID] = u
	}

	rows := make([]SessionVM, 0, len(open))
	for _, s := range open {
		row := SessionVM{
			UserName:        "Unknown user",
			IPAddress:       s.IPAddress,
			Device:          parseUserAgent(s.UserAgent),
			LoginAt:         s.LoginAt.UTC().Format("Jan 2 15:04"),
			LastActivityAgo: formatTimeAgo(s.LastActivity, now),
			IsCurrent:       currentToken != "" && s.Token == currentToken,
		}
		if u, ok := byID[s.UserID]; ok {
			row.UserName = u.FullName
			row.Username = u.Username
		}
		rows = append(rows, row)
	}
	return rows
}

func formatTimeAgo(t time.Time, now time.Time) string {
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute") + " ago"
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour") + " ago"
	}
	return plural(int(diff.Hours()/24), "day") + " ago"
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}

// parseUserAgent reduces a user agent to a device family.
func parseUserAgent(ua string) string {
	switch {
	case ua == "":
		return "Unknown"
	case strings.Contains(ua, "iPhone"):
		return "iPhone"
	case strings.Contains(ua, "iPad"):
		return "iPad"
	case strings.Contains(ua, "Android"):
		return "Android"
	case strings.Contains(ua, "Mac OS"):
		return "Mac"
	case strings.Contains(ua, "Windows"):
		return "Windows"
	case strings.Contains(ua, "Linux"):
		return "Linux"
	}
	return "Browser"
}
