package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"time"

	"github.com/dalemusser/pinboard/internal/app/system/auth"
	"github.com/dalemusser/pinboard/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// TestUser is the signed-in identity a test request carries.
type TestUser struct {
	ID       string
	Name     string
	Username string
	Role     string
}

// AdminUser is an admin identity with a fresh id.
func AdminUser() TestUser {
	return TestUser{ID: primitive.NewObjectID().Hex(), Name: "Site Admin", Username: "site_admin", Role: models.RoleAdmin}
}

// MemberUser is the member identity of an inserted user.
func MemberUser(id primitive.ObjectID, username string) TestUser {
	return TestUser{ID: id.Hex(), Name: username, Username: username, Role: models.RoleMember}
}

// WithUser signs user into r without going through the session middleware.
func WithUser(r *http.Request, user TestUser) *http.Request {
	return auth.WithTestUser(r, &auth.SessionUser{
		ID:       user.ID,
		Name:     user.Name,
		Username: user.Username,
		Role:     user.Role,
	})
}

func NewAuthenticatedRequest(method, target string, user TestUser) *http.Request {
	return WithUser(httptest.NewRequest(method, target, nil), user)
}

// NewJSONRequest is an authenticated request with a JSON body.
func NewJSONRequest(method, target, body string, user TestUser) *http.Request {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return WithUser(r, user)
}

// NewFormRequest is an authenticated form POST carrying a CSRF token.
func NewFormRequest(target string, form url.Values, user TestUser) *http.Request {
	r := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return WithCSRFToken(WithUser(r, user))
}

// WithURLParam sets a chi route parameter so handlers can be called
// without the router.
func WithURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// ResponseRecorder adds assertions to httptest.ResponseRecorder.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{httptest.NewRecorder()}
}

func (r *ResponseRecorder) AssertStatus(t assert.TestingT, want int) bool {
	return assert.Equal(t, want, r.Code, "status code")
}

// AssertRedirect expects a 3xx pointing at location.
func (r *ResponseRecorder) AssertRedirect(t assert.TestingT, location string) bool {
	ok := assert.True(t, r.Code >= 300 && r.Code < 400, "want redirect, got %d", r.Code)
	return assert.Equal(t, location, r.Header().Get("Location"), "redirect location") && ok
}

func (r *ResponseRecorder) AssertContains(t assert.TestingT, fragment string) bool {
	return assert.Contains(t, r.Body.String(), fragment)
}

// NewSessionManager is a cookie session manager with a fixed key and no
// user fetcher.
func NewSessionManager(t interface{ Fatalf(string, ...any) }) *auth.SessionManager {
	sm, err := auth.NewSessionManager("pinboard-test-session-key-0123456789abcdef", "pinboard-test", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}
	return sm
}
