// internal/app/features/logout/logout.go
package logout

import (
	"net/http"

	"github.com/dalemusser/pinboard/internal/app/store/sessions"
	"github.com/dalemusser/pinboard/internal/app/system/auditlog"
	"github.com/dalemusser/pinboard/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler ends the signed-in session.
type Handler struct {
	sessionMgr  *auth.SessionManager
	auditLogger *auditlog.Logger
	sessions    *sessions.Store
	logger      *zap.Logger
}

func NewHandler(sessionMgr *auth.SessionManager, auditLogger *auditlog.Logger, store *sessions.Store, logger *zap.Logger) *Handler {
	return &Handler{
		sessionMgr:  sessionMgr,
		auditLogger: auditLogger,
		sessions:    store,
		logger:      logger,
	}
}

// Routes mounts logout under /logout. Signed-out visitors are redirected
// home, which also clears a stale cookie.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.handleLogout)
	r.Get("/", h.handleLogout)
	return r
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if user, ok := auth.CurrentUser(r); ok {
		h.auditLogger.Logout(r, user.UserID())

		// The tracked record is kept with its logout time and reason.
		if token := user.SessionToken(); token != "" {
			if err := h.sessions.Close(r.Context(), token, sessions.EndReasonLogout); err != nil {
				h.logger.Warn("failed to close tracked session",
					zap.String("user_id", user.ID),
					zap.Error(err))
			}
		}
	}

	h.sessionMgr.DestroySession(w, r)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
