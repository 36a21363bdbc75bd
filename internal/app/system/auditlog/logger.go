// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"

	"github.com/dalemusser/pinboard/internal/app/store/audit"
	"github.com/dalemusser/pinboard/internal/app/system/network"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destinations for a category: "all" (MongoDB + zap), "db", "log" or "off".
const (
	DestAll = "all"
	DestDB  = "db"
	DestLog = "log"
	DestOff = "off"
)

// Config picks a destination per event category.
type Config struct {
	Auth    string // sign-in, sign-out, lockouts
	Account string // signup, profile and password changes
	Content string // moderation-relevant content actions
}

// Logger writes audit events to the audit store and to zap.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{store: store, zapLog: zapLog, config: config}
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}
	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

func (l *Logger) destination(category string) string {
	var d string
	switch category {
	case audit.CategoryAuth:
		d = l.config.Auth
	case audit.CategoryAccount:
		d = l.config.Account
	case audit.CategoryContent:
		d = l.config.Content
	}
	if d == "" {
		return DestAll
	}
	return d
}

// Log records event according to the category's destination. A nil Logger
// is a no-op so handlers under test can run without one.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}
	dest := l.destination(event.Category)
	if dest == DestOff {
		return
	}
	if dest == DestAll || dest == DestLog {
		l.logToZap(event)
	}
	if dest == DestAll || dest == DestDB {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func (l *Logger) fromRequest(r *http.Request, category, eventType string, userID *primitive.ObjectID, success bool) audit.Event {
	return audit.Event{
		Category:  category,
		EventType: eventType,
		UserID:    userID,
		IP:        network.ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   success,
	}
}

// --- Authentication ---

func (l *Logger) LoginSuccess(r *http.Request, userID primitive.ObjectID, method, identifier string) {
	e := l.fromRequest(r, audit.CategoryAuth, audit.EventLoginSuccess, &userID, true)
	e.Details = map[string]string{"auth_method": method, "identifier": identifier}
	l.Log(r.Context(), e)
}

func (l *Logger) LoginFailedUserNotFound(r *http.Request, identifier string) {
	e := l.fromRequest(r, audit.CategoryAuth, audit.EventLoginFailedUserNotFound, nil, false)
	e.FailureReason = "user not found"
	e.Details = map[string]string{"identifier": identifier}
	l.Log(r.Context(), e)
}

func (l *Logger) LoginFailedWrongPassword(r *http.Request, userID primitive.ObjectID, identifier string) {
	e := l.fromRequest(r, audit.CategoryAuth, audit.EventLoginFailedWrongPassword, &userID, false)
	e.FailureReason = "wrong password"
	e.Details = map[string]string{"identifier": identifier}
	l.Log(r.Context(), e)
}

func (l *Logger) LoginFailedUserDisabled(r *http.Request, userID primitive.ObjectID, identifier string) {
	e := l.fromRequest(r, audit.CategoryAuth, audit.EventLoginFailedUserDisabled, &userID, false)
	e.FailureReason = "user disabled"
	e.Details = map[string]string{"identifier": identifier}
	l.Log(r.Context(), e)
}

func (l *Logger) LoginLockedOut(r *http.Request, identifier string) {
	e := l.fromRequest(r, audit.CategoryAuth, audit.EventLoginLockedOut, nil, false)
	e.FailureReason = "too many failed attempts"
	e.Details = map[string]string{"identifier": identifier}
	l.Log(r.Context(), e)
}

func (l *Logger) Logout(r *http.Request, userID primitive.ObjectID) {
	l.Log(r.Context(), l.fromRequest(r, audit.CategoryAuth, audit.EventLogout, &userID, true))
}

// --- Account ---

func (l *Logger) Signup(r *http.Request, userID primitive.ObjectID, method string) {
	e := l.fromRequest(r, audit.CategoryAccount, audit.EventSignup, &userID, true)
	e.Details = map[string]string{"auth_method": method}
	l.Log(r.Context(), e)
}

func (l *Logger) PasswordChanged(r *http.Request, userID primitive.ObjectID) {
	l.Log(r.Context(), l.fromRequest(r, audit.CategoryAccount, audit.EventPasswordChanged, &userID, true))
}

// ProfileUpdated records which profile fields changed, comma separated.
func (l *Logger) ProfileUpdated(r *http.Request, userID primitive.ObjectID, fields string) {
	e := l.fromRequest(r, audit.CategoryAccount, audit.EventProfileUpdated, &userID, true)
	e.Details = map[string]string{"fields": fields}
	l.Log(r.Context(), e)
}

// --- Moderation ---

// UserStatusChanged records an admin disabling or re-enabling an account.
func (l *Logger) UserStatusChanged(r *http.Request, actorID, userID primitive.ObjectID, disabled bool) {
	eventType := audit.EventUserEnabled
	if disabled {
		eventType = audit.EventUserDisabled
	}
	e := l.fromRequest(r, audit.CategoryAccount, eventType, &userID, true)
	e.ActorID = &actorID
	l.Log(r.Context(), e)
}

func (l *Logger) RoleChanged(r *http.Request, actorID, userID primitive.ObjectID, from, to string) {
	e := l.fromRequest(r, audit.CategoryAccount, audit.EventRoleChanged, &userID, true)
	e.ActorID = &actorID
	e.Details = map[string]string{"from": from, "to": to}
	l.Log(r.Context(), e)
}

// --- Content ---

// PostDeleted records a deletion; actor differs from author when an admin
// removes someone else's post.
func (l *Logger) PostDeleted(r *http.Request, actorID, authorID, postID primitive.ObjectID) {
	e := l.fromRequest(r, audit.CategoryContent, audit.EventPostDeleted, &authorID, true)
	if actorID != authorID {
		e.ActorID = &actorID
	}
	e.Details = map[string]string{"post_id": postID.Hex()}
	l.Log(r.Context(), e)
}

func (l *Logger) BoardCreated(r *http.Request, userID, boardID primitive.ObjectID, slug string) {
	e := l.fromRequest(r, audit.CategoryContent, audit.EventBoardCreated, &userID, true)
	e.Details = map[string]string{"board_id": boardID.Hex(), "slug": slug}
	l.Log(r.Context(), e)
}
