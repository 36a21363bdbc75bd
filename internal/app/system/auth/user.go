package auth

import (
	"context"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SessionUser is the signed-in user carried in the request context. It is
// refreshed from the database on every request by the UserFetcher.
type SessionUser struct {
	ID              string
	Name            string
	Username        string
	ImageURL        string
	Role            string
	ThemePreference string
	Token           string // tracked-session token
}

// UserID returns the user's ID as an ObjectID, or NilObjectID if malformed.
func (u *SessionUser) UserID() primitive.ObjectID {
	oid, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		return primitive.NilObjectID
	}
	return oid
}

// SessionToken returns the token of the user's tracked session.
func (u *SessionUser) SessionToken() string {
	return u.Token
}

// UserFetcher loads fresh user data for a session. Implementations return
// nil when the user is gone or disabled, which signs the session out.
type UserFetcher interface {
	FetchUser(ctx context.Context, userID string) *SessionUser
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user & "found?" flag from the request context.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok
}

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

// WithTestUser injects a SessionUser into the request context for testing.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}
