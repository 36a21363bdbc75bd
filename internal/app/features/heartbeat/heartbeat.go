// internal/app/features/heartbeat/heartbeat.go
package heartbeat

import (
	"context"
	"net/http"

	"github.com/dalemusser/pinboard/internal/app/store/sessions"
	"github.com/dalemusser/pinboard/internal/app/system/auth"
	"github.com/dalemusser/pinboard/internal/app/system/jsonutil"
	"github.com/dalemusser/pinboard/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SessionTracker is the part of the session store the heartbeat needs.
type SessionTracker interface {
	GetByToken(ctx context.Context, token string) (*sessions.Session, error)
	Touch(ctx context.Context, token string) error
}

// Handler keeps server-side sessions marked active while a page is open.
type Handler struct {
	Sessions SessionTracker
	Log      *zap.Logger
}

func NewHandler(store SessionTracker, logger *zap.Logger) *Handler {
	return &Handler{Sessions: store, Log: logger}
}

// Routes mounts POST / for the page script to ping.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.ServeHeartbeat)
	return r
}

// ServeHeartbeat moves the session's last activity to now. A session that
// was closed elsewhere (logout, revoke, inactivity sweep) answers 401 so
// the page can send the user to the login screen.
func (h *Handler) ServeHeartbeat(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok || user.SessionToken() == "" {
		jsonutil.NoContent(w)
		return
	}
	token := user.SessionToken()

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if _, err := h.Sessions.GetByToken(ctx, token); err != nil {
		jsonutil.Unauthorized(w, "Session ended")
		return
	}
	if err := h.Sessions.Touch(ctx, token); err != nil {
		h.Log.Warn("heartbeat touch failed", zap.String("user_id", user.ID), zap.Error(err))
	}
	jsonutil.NoContent(w)
}
