// internal/app/features/home/home.go
package home

import (
	"net/http"

	boardstore "github.com/dalemusser/pinboard/internal/app/store/boards"
	"github.com/dalemusser/pinboard/internal/app/system/auth"
	"github.com/dalemusser/pinboard/internal/app/system/streaktracker"
	"github.com/dalemusser/pinboard/internal/app/system/viewdata"
	"github.com/dalemusser/pinboard/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	landingStreaks = 5
	landingBoards  = 4
)

// Handler serves the signed-out landing page.
type Handler struct {
	boards  *boardstore.Store
	tracker *streaktracker.Tracker
	logger  *zap.Logger
}

func NewHandler(db *mongo.Database, tracker *streaktracker.Tracker, logger *zap.Logger) *Handler {
	return &Handler{
		boards:  boardstore.New(db, logger),
		tracker: tracker,
		logger:  logger,
	}
}

// HomeVM is the view model for the landing page.
type HomeVM struct {
	viewdata.BaseVM
	TopStreaks []models.LeaderboardEntry
	Boards     []models.Board
}

func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.Index)
	return r
}

// Index sends signed-in users to their feed and shows everyone else the
// landing page with the current streak leaders and popular boards.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.CurrentUser(r); ok {
		http.Redirect(w, r, "/feed", http.StatusSeeOther)
		return
	}

	vm := HomeVM{BaseVM: viewdata.NewBaseVM(r, "", "/")}

	// The landing page renders without the teasers if either lookup fails.
	leaders, err := h.tracker.Leaderboard(r.Context(), landingStreaks)
	if err != nil {
		h.logger.Warn("landing: leaderboard unavailable", zap.Error(err))
	}
	vm.TopStreaks = leaders

	boards, err := h.boards.TopByMembers(r.Context(), landingBoards)
	if err != nil {
		h.logger.Warn("landing: boards unavailable", zap.Error(err))
	}
	vm.Boards = boards

	templates.Render(w, r, "home/index", vm)
}
