// internal/app/features/boards/boards.go
package boards

import (
	"context"
	"net/http"

	errorsfeature "github.com/dalemusser/pinboard/internal/app/features/errors"
	boardstore "github.com/dalemusser/pinboard/internal/app/store/boards"
	poststore "github.com/dalemusser/pinboard/internal/app/store/posts"
	userstore "github.com/dalemusser/pinboard/internal/app/store/users"
	"github.com/dalemusser/pinboard/internal/app/system/auditlog"
	"github.com/dalemusser/pinboard/internal/app/system/auth"
	"github.com/dalemusser/pinboard/internal/app/system/inputval"
	"github.com/dalemusser/pinboard/internal/app/system/normalize"
	"github.com/dalemusser/pinboard/internal/app/system/postview"
	"github.com/dalemusser/pinboard/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	listLimit  = 100
	postsLimit = 50
)

// Handler serves the board pages and the boards API.
type Handler struct {
	boards      *boardstore.Store
	posts       *poststore.Store
	users       *userstore.Store
	cards       *postview.Builder
	errLog      *errorsfeature.ErrorLogger
	auditLogger *auditlog.Logger
	logger      *zap.Logger
}

func NewHandler(db *mongo.Database, errLog *errorsfeature.ErrorLogger, auditLogger *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		boards:      boardstore.New(db, logger),
		posts:       poststore.New(db),
		users:       userstore.New(db),
		cards:       postview.NewBuilder(db, logger),
		errLog:      errLog,
		auditLogger: auditLogger,
		logger:      logger,
	}
}

// Routes mounts the board pages under /boards.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireAuth)
	r.Get("/", h.showList)
	r.Get("/new", h.showNew)
	r.Post("/", h.handleCreate)
	r.Get("/{key}", h.showBoard)
	return r
}

// APIRoutes mounts the JSON API under /api/boards.
func APIRoutes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireAuth)
	r.Get("/", h.apiList)
	r.Post("/", h.apiCreate)
	r.Post("/{id}/join", h.apiJoin)
	return r
}

// boardInput is a board as submitted.
type boardInput struct {
	Name        string `json:"name" validate:"required,max=80" label:"Name"`
	Description string `json:"description" validate:"max=500" label:"Description"`
}

func (in *boardInput) clean() {
	in.Name = normalize.Name(in.Name)
	in.Description = normalize.Content(in.Description)
}

// create validates in and stores the board with the creator as admin.
func (h *Handler) create(r *http.Request, in boardInput, creator primitive.ObjectID) (models.Board, string, error) {
	in.clean()
	if res := inputval.Validate(in); res.HasErrors() {
		return models.Board{}, res.First(), nil
	}
	b, err := h.boards.Create(r.Context(), in.Name, in.Description, creator)
	if err != nil {
		return models.Board{}, "", err
	}
	h.auditLogger.BoardCreated(r, creator, b.ID, b.Slug)
	return b, "", nil
}

// BoardItem is a board as listed, with the viewer's membership.
type BoardItem struct {
	models.Board
	IsMember bool `json:"isMember"`
}

// list returns boards newest first, marking the ones userID belongs to.
func (h *Handler) list(ctx context.Context, userID primitive.ObjectID) ([]BoardItem, error) {
	all, err := h.boards.List(ctx, listLimit)
	if err != nil {
		return nil, err
	}
	mine, err := h.boards.MemberBoardIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	member := make(map[primitive.ObjectID]bool, len(mine))
	for _, id := range mine {
		member[id] = true
	}
	items := make([]BoardItem, 0, len(all))
	for _, b := range all {
		items = append(items, BoardItem{Board: b, IsMember: member[b.ID]})
	}
	return items, nil
}
