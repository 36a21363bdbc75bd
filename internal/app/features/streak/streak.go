// internal/app/features/streak/streak.go
package streak

import (
	"net/http"
	"strconv"

	errorsfeature "github.com/dalemusser/pinboard/internal/app/features/errors"
	"github.com/dalemusser/pinboard/internal/app/store/activity"
	"github.com/dalemusser/pinboard/internal/app/system/auth"
	"github.com/dalemusser/pinboard/internal/app/system/jsonutil"
	"github.com/dalemusser/pinboard/internal/app/system/streaktracker"
	"github.com/dalemusser/pinboard/internal/app/system/viewdata"
	"github.com/dalemusser/pinboard/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// DefaultLeaderboardLimit is the size of the leaderboard on the streak page.
const DefaultLeaderboardLimit = 10

// maxLeaderboardLimit caps the ?limit= parameter of the JSON leaderboard.
const maxLeaderboardLimit = 100

// Handler serves the streak page and the streak API.
type Handler struct {
	tracker *streaktracker.Tracker
	errLog  *errorsfeature.ErrorLogger
	limit   int
	logger  *zap.Logger
}

func NewHandler(tracker *streaktracker.Tracker, errLog *errorsfeature.ErrorLogger, leaderboardLimit int, logger *zap.Logger) *Handler {
	if leaderboardLimit <= 0 {
		leaderboardLimit = DefaultLeaderboardLimit
	}
	return &Handler{
		tracker: tracker,
		errLog:  errLog,
		limit:   leaderboardLimit,
		logger:  logger,
	}
}

// Routes mounts the streak page under /streak.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireAuth)
	r.Get("/", h.showStreak)
	return r
}

// APIRoutes mounts the JSON API under /api/streak.
func APIRoutes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireAuth)
	r.Get("/", h.apiStreak)
	r.Get("/leaderboard", h.apiLeaderboard)
	return r
}

// StreakVM is the view model for the streak page.
type StreakVM struct {
	viewdata.BaseVM
	Current     int
	Longest     int
	Rank        int64
	Leaderboard []LeaderRow
}

// LeaderRow is one leaderboard line.
type LeaderRow struct {
	Position int
	Username string
	Name     string
	ImageURL string
	Initial  string
	Current  int
	Longest  int
	IsViewer bool
}

// showStreak counts the visit as the day's activity, then shows the
// viewer's record next to the leaderboard.
func (h *Handler) showStreak(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	uid := user.UserID()
	ctx := r.Context()

	rec, _, err := h.tracker.Record(ctx, uid, activity.EventStreakViewed, nil)
	if err != nil {
		// Show the stored record even if the update lost.
		if rec, err = h.tracker.Current(ctx, uid); err != nil {
			h.errLog.Log(r, "failed to load streak", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}

	entries, err := h.tracker.Leaderboard(ctx, h.limit)
	if err != nil {
		h.errLog.Log(r, "failed to load leaderboard", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	rank, err := h.tracker.Rank(ctx, uid)
	if err != nil {
		h.logger.Warn("streak rank lookup failed", zap.Error(err))
	}

	vm := StreakVM{
		BaseVM:      viewdata.NewBaseVM(r, "Your streak", "/feed"),
		Current:     rec.CurrentStreak,
		Longest:     rec.LongestStreak,
		Rank:        rank,
		Leaderboard: rows(entries, uid.Hex()),
	}
	templates.Render(w, r, "streak/show", vm)
}

func rows(entries []models.LeaderboardEntry, viewerID string) []LeaderRow {
	out := make([]LeaderRow, 0, len(entries))
	for i, e := range entries {
		row := LeaderRow{
			Position: i + 1,
			Username: e.User.Username,
			Name:     e.User.Name,
			ImageURL: e.User.ImageURL,
			Initial:  e.User.Initial(),
			Current:  e.CurrentStreak,
			Longest:  e.LongestStreak,
			IsViewer: e.UserID.Hex() == viewerID,
		}
		if row.Username == "" {
			row.Username = "deleted"
			row.Name = "Deleted user"
		}
		out = append(out, row)
	}
	return out
}

// apiStreak records the view and returns the caller's record.
func (h *Handler) apiStreak(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	uid := user.UserID()

	rec, outcome, err := h.tracker.Record(r.Context(), uid, activity.EventStreakViewed, nil)
	if err != nil {
		h.errLog.Log(r, "failed to record streak view", err)
		jsonutil.InternalError(w, "Failed to update streak")
		return
	}
	jsonutil.OK(w, map[string]any{
		"userId":         rec.UserID.Hex(),
		"currentStreak":  rec.CurrentStreak,
		"longestStreak":  rec.LongestStreak,
		"lastActiveDate": rec.LastActiveDate,
		"outcome":        outcome.String(),
	})
}

// apiLeaderboard returns the top entries. A non-positive limit yields an
// empty list; a missing or malformed one uses the configured size.
func (h *Handler) apiLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := h.limit
	if raw := query.Get(r, "limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			jsonutil.BadRequest(w, "limit must be a number")
			return
		}
		limit = min(n, maxLeaderboardLimit)
	}

	entries, err := h.tracker.Leaderboard(r.Context(), limit)
	if err != nil {
		h.errLog.Log(r, "failed to load leaderboard", err)
		jsonutil.InternalError(w, "Failed to load leaderboard")
		return
	}
	jsonutil.OK(w, entries)
}
