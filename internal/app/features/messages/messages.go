// internal/app/features/messages/messages.go
package messages

import (
	"context"
	"errors"
	"net/http"
	"unicode/utf8"

	errorsfeature "github.com/dalemusser/pinboard/internal/app/features/errors"
	messagestore "github.com/dalemusser/pinboard/internal/app/store/messages"
	userstore "github.com/dalemusser/pinboard/internal/app/store/users"
	"github.com/dalemusser/pinboard/internal/app/system/auth"
	"github.com/dalemusser/pinboard/internal/app/system/htmlsanitize"
	"github.com/dalemusser/pinboard/internal/app/system/normalize"
	"github.com/dalemusser/pinboard/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	// MaxContentLen is the longest message, in characters.
	MaxContentLen = 2000
	threadLimit   = 200
)

var (
	errEmpty    = errors.New("message is empty")
	errTooLong  = errors.New("message is too long")
	errNoTarget = errors.New("recipient not found")
)

// Handler serves the messages pages and the messages API.
type Handler struct {
	messages *messagestore.Store
	users    *userstore.Store
	errLog   *errorsfeature.ErrorLogger
	logger   *zap.Logger
}

func NewHandler(db *mongo.Database, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		messages: messagestore.New(db),
		users:    userstore.New(db),
		errLog:   errLog,
		logger:   logger,
	}
}

// Routes mounts the message pages under /messages.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireAuth)
	r.Get("/", h.showInbox)
	r.Get("/{username}", h.showThread)
	r.Post("/{username}", h.handleSend)
	return r
}

// APIRoutes mounts the JSON API under /api/messages.
func APIRoutes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireAuth)
	r.Post("/", h.apiSend)
	r.Get("/conversations", h.apiConversations)
	r.Get("/{userId}", h.apiConversation)
	return r
}

// send validates content and stores the message.
func (h *Handler) send(ctx context.Context, from, to primitive.ObjectID, content string) (models.Message, error) {
	content = htmlsanitize.Text(normalize.Content(content))
	if content == "" {
		return models.Message{}, errEmpty
	}
	if utf8.RuneCountInString(content) > MaxContentLen {
		return models.Message{}, errTooLong
	}
	if from == to {
		return models.Message{}, messagestore.ErrSelfMessage
	}
	if _, err := h.users.GetByID(ctx, to); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Message{}, errNoTarget
		}
		return models.Message{}, err
	}
	return h.messages.Send(ctx, from, to, content)
}

// Send error codes carried back to the thread page in the "error" query
// parameter.
const (
	codeEmpty   = "empty"
	codeTooLong = "too_long"
	codeSelf    = "self"
	codeMissing = "missing"
	codeFailed  = "failed"
)

var codeMessages = map[string]string{
	codeEmpty:   "Write a message first.",
	codeTooLong: "Messages can be at most 2000 characters.",
	codeSelf:    "You cannot message yourself.",
	codeMissing: "That user does not exist.",
	codeFailed:  "Your message could not be sent. Please try again.",
}

// errorCode classifies a send error; internal failures map to codeFailed.
func errorCode(err error) string {
	switch {
	case errors.Is(err, errEmpty):
		return codeEmpty
	case errors.Is(err, errTooLong):
		return codeTooLong
	case errors.Is(err, messagestore.ErrSelfMessage):
		return codeSelf
	case errors.Is(err, errNoTarget):
		return codeMissing
	}
	return codeFailed
}

// conversations joins the caller's threads with partner profiles.
func (h *Handler) conversations(ctx context.Context, me primitive.ObjectID) ([]models.Conversation, error) {
	threads, err := h.messages.Threads(ctx, me)
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(threads))
	for _, t := range threads {
		ids = append(ids, t.PartnerID)
	}
	partners, err := h.users.Summaries(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]models.Conversation, 0, len(threads))
	for _, t := range threads {
		p, ok := partners[t.PartnerID]
		if !ok {
			p = models.UserSummary{ID: t.PartnerID, Name: "Deleted user", Username: "deleted"}
		}
		out = append(out, models.Conversation{Partner: p, LastMessage: t.LastMessage, Unread: t.Unread})
	}
	return out, nil
}
