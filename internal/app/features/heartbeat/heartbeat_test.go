package heartbeat

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/pinboard/internal/app/store/sessions"
	"github.com/dalemusser/pinboard/internal/app/system/auth"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type fakeSessions struct {
	open    map[string]bool
	touched []string
}

func (f *fakeSessions) GetByToken(_ context.Context, token string) (*sessions.Session, error) {
	if !f.open[token] {
		return nil, mongo.ErrNoDocuments
	}
	return &sessions.Session{Token: token}, nil
}

func (f *fakeSessions) Touch(_ context.Context, token string) error {
	if !f.open[token] {
		return errors.New("closed")
	}
	f.touched = append(f.touched, token)
	return nil
}

func ping(h *Handler, u *auth.SessionUser) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if u != nil {
		req = auth.WithTestUser(req, u)
	}
	rec := httptest.NewRecorder()
	Routes(h).ServeHTTP(rec, req)
	return rec
}

func TestHeartbeat_TouchesOpenSession(t *testing.T) {
	store := &fakeSessions{open: map[string]bool{"tok-1": true}}
	h := NewHandler(store, zap.NewNop())

	rec := ping(h, &auth.SessionUser{ID: "u1", Token: "tok-1"})

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"tok-1"}, store.touched)
}

func TestHeartbeat_ClosedSessionIsUnauthorized(t *testing.T) {
	store := &fakeSessions{open: map[string]bool{}}
	h := NewHandler(store, zap.NewNop())

	rec := ping(h, &auth.SessionUser{ID: "u1", Token: "gone"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, store.touched)
}

func TestHeartbeat_AnonymousIsIgnored(t *testing.T) {
	store := &fakeSessions{open: map[string]bool{}}
	h := NewHandler(store, zap.NewNop())

	assert.Equal(t, http.StatusNoContent, ping(h, nil).Code)
	assert.Equal(t, http.StatusNoContent, ping(h, &auth.SessionUser{ID: "u1"}).Code)
	assert.Empty(t, store.touched)
}
