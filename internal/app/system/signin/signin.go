// Package signin starts a signed-in session: the session cookie plus the
// tracked session record used for logout and session cleanup.
package signin

import (
	"net/http"
	"time"

	"github.com/dalemusser/pinboard/internal/app/store/sessions"
	"github.com/dalemusser/pinboard/internal/app/system/auth"
	"github.com/dalemusser/pinboard/internal/app/system/network"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// DefaultTTL is how long a tracked session stays valid without a logout.
const DefaultTTL = 30 * 24 * time.Hour

// Starter is shared by the signup, login and Google sign-in handlers.
type Starter struct {
	sessionMgr *auth.SessionManager
	sessions   *sessions.Store
	ttl        time.Duration
	logger     *zap.Logger
}

func New(sessionMgr *auth.SessionManager, store *sessions.Store, ttl time.Duration, logger *zap.Logger) *Starter {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Starter{sessionMgr: sessionMgr, sessions: store, ttl: ttl, logger: logger}
}

// Start writes the session cookie and records the session. Only the cookie
// is required; a tracking failure is logged.
func (s *Starter) Start(w http.ResponseWriter, r *http.Request, userID primitive.ObjectID, role string) error {
	token, err := auth.GenerateSessionToken()
	if err != nil {
		return err
	}
	if err := s.sessionMgr.CreateSession(w, r, userID, role, token); err != nil {
		return err
	}

	now := time.Now().UTC()
	sess := sessions.Session{
		Token:        token,
		UserID:       userID,
		IPAddress:    network.ClientIP(r),
		UserAgent:    r.UserAgent(),
		LoginAt:      now,
		LastActivity: now,
		ExpiresAt:    now.Add(s.ttl),
	}
	if err := s.sessions.Create(r.Context(), sess); err != nil {
		s.logger.Warn("failed to track session",
			zap.String("user_id", userID.Hex()),
			zap.Error(err))
	}
	return nil
}
