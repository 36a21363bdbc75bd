package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultCookieName is used when no session name is configured.
const DefaultCookieName = "pinboard-session"

// Cookie values.
const (
	keyUserID = "uid"
	keyRole   = "role"
	keyToken  = "tok"
)

// minKeyLen is the shortest session key accepted in production.
const minKeyLen = 32

// ErrWeakSessionKey is returned in production for short or placeholder keys.
var ErrWeakSessionKey = errors.New("session key must be at least 32 random characters and not a placeholder")

// SessionManager signs PinBoard's session cookie and provides the auth
// middleware built on it. The cookie holds only the user id, role and the
// tracked-session token; everything else is re-read per request.
type SessionManager struct {
	store   *sessions.CookieStore
	name    string
	fetcher UserFetcher
	logger  *zap.Logger
}

// NewSessionManager builds the cookie store. secure marks cookies Secure
// and turns a weak key from a warning into ErrWeakSessionKey.
func NewSessionManager(key, name, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if key == "" {
		return nil, fmt.Errorf("session key is empty: %w", ErrWeakSessionKey)
	}
	if weakKey(key) {
		if secure {
			return nil, ErrWeakSessionKey
		}
		logger.Warn("weak session key; not allowed in production", zap.Int("length", len(key)))
	}
	if name == "" {
		name = DefaultCookieName
	}

	store := sessions.NewCookieStore([]byte(key))
	store.Options = &sessions.Options{
		Path:     "/",
		Domain:   domain,
		MaxAge:   int(maxAge / time.Second),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	logger.Info("sessions ready", zap.String("cookie", name), zap.Bool("secure", secure), zap.String("domain", domain))
	return &SessionManager{store: store, name: name, logger: logger}, nil
}

// SetUserFetcher installs the lookup LoadSessionUser uses to refresh the
// signed-in user.
func (sm *SessionManager) SetUserFetcher(f UserFetcher) { sm.fetcher = f }

func (sm *SessionManager) CookieName() string { return sm.name }

// CreateSession signs the browser in as userID. An empty token is replaced
// with a fresh one.
func (sm *SessionManager) CreateSession(w http.ResponseWriter, r *http.Request, userID primitive.ObjectID, role, token string) error {
	sess, err := sm.store.Get(r, sm.name)
	if err != nil {
		// Unreadable cookie: start over.
		sess, _ = sm.store.New(r, sm.name)
	}
	if token == "" {
		if token, err = GenerateSessionToken(); err != nil {
			return err
		}
	}
	sess.Values[keyUserID] = userID.Hex()
	sess.Values[keyRole] = role
	sess.Values[keyToken] = token
	return sess.Save(r, w)
}

// DestroySession clears and expires the cookie.
func (sm *SessionManager) DestroySession(w http.ResponseWriter, r *http.Request) {
	sess, err := sm.store.Get(r, sm.name)
	if err != nil {
		return
	}
	clear(sess.Values)
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		sm.logger.Warn("expire session cookie", zap.Error(err))
	}
}

// TokenOf returns the tracked-session token in r's cookie, or "".
func (sm *SessionManager) TokenOf(r *http.Request) string {
	sess, err := sm.store.Get(r, sm.name)
	if err != nil {
		return ""
	}
	return stringValue(sess, keyToken)
}

// GenerateSessionToken returns 32 random bytes, URL-safe encoded.
func GenerateSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("session token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(buf), nil
}

func stringValue(sess *sessions.Session, key string) string {
	s, _ := sess.Values[key].(string)
	return s
}

var placeholderHints = []string{"dev-only", "change-me", "changeme", "placeholder", "example", "insecure", "default"}

func weakKey(key string) bool {
	if len(key) < minKeyLen {
		return true
	}
	lower := strings.ToLower(key)
	for _, hint := range placeholderHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

// cookieFailure classifies an unreadable session cookie for logging.
// Expired and garbled cookies are routine; a bad MAC may be tampering.
func cookieFailure(err error) (zapcore.Level, string) {
	var sc securecookie.Error
	if !errors.As(err, &sc) || !sc.IsDecode() {
		return zapcore.WarnLevel, "store"
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "expired"):
		return zapcore.DebugLevel, "expired"
	case strings.Contains(msg, "mac"), strings.Contains(msg, "hash"):
		return zapcore.WarnLevel, "bad_mac"
	default:
		return zapcore.InfoLevel, "undecodable"
	}
}
