// internal/app/features/profile/profile.go
package profile

import (
	"errors"
	"net/http"

	errorsfeature "github.com/dalemusser/pinboard/internal/app/features/errors"
	"github.com/dalemusser/pinboard/internal/app/store/activity"
	followstore "github.com/dalemusser/pinboard/internal/app/store/follows"
	poststore "github.com/dalemusser/pinboard/internal/app/store/posts"
	"github.com/dalemusser/pinboard/internal/app/store/storeutil"
	userstore "github.com/dalemusser/pinboard/internal/app/store/users"
	"github.com/dalemusser/pinboard/internal/app/system/auditlog"
	"github.com/dalemusser/pinboard/internal/app/system/auth"
	"github.com/dalemusser/pinboard/internal/app/system/postview"
	"github.com/dalemusser/pinboard/internal/app/system/streaktracker"
	"github.com/dalemusser/pinboard/internal/app/system/viewdata"
	"github.com/dalemusser/pinboard/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	postsPerPage = 20
	recentEvents = 10
	joinedLayout = "January 2006"
)

// Handler serves profile pages, following and profile edits.
type Handler struct {
	users       *userstore.Store
	posts       *poststore.Store
	follows     *followstore.Store
	cards       *postview.Builder
	tracker     *streaktracker.Tracker
	errLog      *errorsfeature.ErrorLogger
	auditLogger *auditlog.Logger
	logger      *zap.Logger
}

func NewHandler(db *mongo.Database, tracker *streaktracker.Tracker, errLog *errorsfeature.ErrorLogger, auditLogger *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		users:       userstore.New(db),
		posts:       poststore.New(db),
		follows:     followstore.New(db, logger),
		cards:       postview.NewBuilder(db, logger),
		tracker:     tracker,
		errLog:      errLog,
		auditLogger: auditLogger,
		logger:      logger,
	}
}

// Routes mounts the public profile pages under /u.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireAuth)
	r.Get("/{username}", h.showProfile)
	return r
}

// ActivityRow is one line of the recent-activity list.
type ActivityRow struct {
	Label  string
	Streak int
	When   string
}

// ProfileVM is the view model for a user's profile page.
type ProfileVM struct {
	viewdata.BaseVM
	postview.Composer

	Profile       models.User
	Initial       string
	Joined        string
	CurrentStreak int
	LongestStreak int
	IsSelf        bool
	Following     bool

	Posts    []postview.PostVM
	Page     int64
	PrevPage int64
	NextPage int64

	Recent []ActivityRow
}

// ownProfile sends the signed-in user to their public page.
func (h *Handler) ownProfile(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	if user.Username == "" {
		u, err := h.users.GetByID(r.Context(), user.UserID())
		if err != nil {
			h.errLog.Log(r, "failed to load own profile", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		user.Username = u.Username
	}
	http.Redirect(w, r, "/u/"+user.Username, http.StatusSeeOther)
}

// OwnProfileHandler serves GET /profile.
func (h *Handler) OwnProfileHandler(sessionMgr *auth.SessionManager) http.Handler {
	return sessionMgr.RequireAuth(http.HandlerFunc(h.ownProfile))
}

func (h *Handler) showProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, _ := auth.CurrentUser(r)
	vid := viewer.UserID()

	u, err := h.users.GetByUsername(ctx, chi.URLParam(r, "username"))
	if errors.Is(err, mongo.ErrNoDocuments) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.errLog.Log(r, "failed to load profile", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	page := pageParam(r)
	posts, err := h.posts.ByUser(ctx, u.ID, postsPerPage, page)
	if err != nil {
		h.errLog.Log(r, "failed to load profile posts", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	cards, err := h.cards.Build(ctx, posts, postview.ViewerOf(r), false)
	if err != nil {
		h.errLog.Log(r, "failed to build profile cards", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	rec, err := h.tracker.Current(ctx, u.ID)
	if err != nil {
		h.logger.Warn("profile streak lookup failed", zap.Error(err))
	}

	vm := ProfileVM{
		BaseVM:        viewdata.NewBaseVM(r, profileTitle(u), "/feed"),
		Profile:       *u,
		Initial:       models.UserSummary{Name: u.FullName, Username: u.Username}.Initial(),
		Joined:        u.CreatedAt.Format(joinedLayout),
		CurrentStreak: rec.CurrentStreak,
		LongestStreak: rec.LongestStreak,
		IsSelf:        u.ID == vid,
		Posts:         cards,
		Page:          page,
	}
	if page > 1 {
		vm.PrevPage = page - 1
	}
	if page*postsPerPage < int64(u.PostCount) {
		vm.NextPage = page + 1
	}

	if vm.IsSelf {
		vm.ComposeError = postview.ComposeMessage(r.URL.Query().Get("compose"))
	} else if vm.Following, err = h.follows.IsFollowing(ctx, vid, u.ID); err != nil {
		h.logger.Warn("follow lookup failed", zap.Error(err))
	}

	events, err := h.tracker.Recent(ctx, u.ID, recentEvents)
	if err != nil {
		h.logger.Warn("recent activity lookup failed", zap.Error(err))
	}
	vm.Recent = activityRows(events)

	templates.Render(w, r, "profile/show", vm)
}

func profileTitle(u *models.User) string {
	if u.FullName != "" {
		return u.FullName + " (@" + u.Username + ")"
	}
	return "@" + u.Username
}

func pageParam(r *http.Request) int64 {
	return storeutil.ParsePage(r.URL.Query().Get("page"))
}

func activityRows(events []activity.Event) []ActivityRow {
	rows := make([]ActivityRow, 0, len(events))
	for _, e := range events {
		rows = append(rows, ActivityRow{
			Label:  e.Label(),
			Streak: e.CurrentStreak,
			When:   e.Timestamp.UTC().Format(postview.TimeLayout),
		})
	}
	return rows
}
