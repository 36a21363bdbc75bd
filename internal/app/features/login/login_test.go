package login

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	errorsfeature "github.com/dalemusser/pinboard/internal/app/features/errors"
	"github.com/dalemusser/pinboard/internal/app/store/ratelimit"
	"github.com/dalemusser/pinboard/internal/app/store/sessions"
	"github.com/dalemusser/pinboard/internal/app/system/auth"
	"github.com/dalemusser/pinboard/internal/app/system/authutil"
	"github.com/dalemusser/pinboard/internal/app/system/signin"
	"github.com/dalemusser/pinboard/internal/domain/models"
	"github.com/dalemusser/pinboard/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T, maxAttempts int) (*Handler, *mongo.Database) {
	t.Helper()
	testutil.MustBootTemplates(t)
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	mgr, err := auth.NewSessionManager("test-session-key-for-testing-1234567890", "test-session", "", time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager() error = %v", err)
	}
	starter := signin.New(mgr, sessions.New(db), time.Hour, logger)
	limiter := ratelimit.New(db, maxAttempts, 15*time.Minute, 15*time.Minute)
	return NewHandler(db, starter, limiter, errorsfeature.NewErrorLogger(logger), nil, true, logger), db
}

func insertPasswordUser(t *testing.T, db *mongo.Database, username, password string) primitive.ObjectID {
	t.Helper()
	hash, err := authutil.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	return testutil.InsertUser(t, db, models.User{Username: username, PasswordHash: &hash})
}

func postLogin(h *Handler, identifier, password, ret string) *httptest.ResponseRecorder {
	form := url.Values{"identifier": {identifier}, "password": {password}}
	if ret != "" {
		form.Set("return", ret)
	}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.handleLogin(rec, req)
	return rec
}

func TestHandleLogin_ByUsername(t *testing.T) {
	h, db := newTestHandler(t, 5)
	uid := insertPasswordUser(t, db, "dana", "correct-horse-1")

	rec := postLogin(h, "dana", "correct-horse-1", "")

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/feed" {
		t.Fatalf("got %d %q, want 303 /feed", rec.Code, rec.Header().Get("Location"))
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Error("no session cookie set")
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	active, err := sessions.New(db).ListActiveByUser(ctx, uid)
	if err != nil {
		t.Fatalf("ListActiveByUser() error = %v", err)
	}
	if len(active) != 1 {
		t.Errorf("tracked sessions = %d, want 1", len(active))
	}
}

func TestHandleLogin_ByEmailWithReturn(t *testing.T) {
	h, db := newTestHandler(t, 5)
	insertPasswordUser(t, db, "erin", "correct-horse-1")

	rec := postLogin(h, "ERIN@test.local", "correct-horse-1", "/boards")

	if rec.Header().Get("Location") != "/boards" {
		t.Errorf("Location = %q, want /boards", rec.Header().Get("Location"))
	}
}

func TestHandleLogin_UnsafeReturnIgnored(t *testing.T) {
	h, db := newTestHandler(t, 5)
	insertPasswordUser(t, db, "fay", "correct-horse-1")

	rec := postLogin(h, "fay", "correct-horse-1", "https://evil.example/")

	if rec.Header().Get("Location") != "/feed" {
		t.Errorf("Location = %q, want /feed", rec.Header().Get("Location"))
	}
}

func TestHandleLogin_WrongPassword(t *testing.T) {
	h, db := newTestHandler(t, 5)
	insertPasswordUser(t, db, "gus", "correct-horse-1")

	rec := postLogin(h, "gus", "nope", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 re-render", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Invalid credentials") {
		t.Error("missing invalid credentials message")
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("session cookie set on failed login")
	}
}

func TestHandleLogin_UnknownUser(t *testing.T) {
	h, _ := newTestHandler(t, 5)

	rec := postLogin(h, "nobody", "whatever-123", "")

	if !strings.Contains(rec.Body.String(), "Invalid credentials") {
		t.Error("missing invalid credentials message")
	}
}

func TestHandleLogin_MissingFields(t *testing.T) {
	h, _ := newTestHandler(t, 5)

	rec := postLogin(h, "", "", "")

	if !strings.Contains(rec.Body.String(), "Please enter") {
		t.Error("missing prompt for empty form")
	}
}

func TestHandleLogin_DisabledUser(t *testing.T) {
	h, db := newTestHandler(t, 5)
	hash, _ := authutil.HashPassword("correct-horse-1")
	testutil.InsertUser(t, db, models.User{Username: "hal", PasswordHash: &hash, Status: "disabled"})

	rec := postLogin(h, "hal", "correct-horse-1", "")

	if !strings.Contains(rec.Body.String(), "disabled") {
		t.Error("missing disabled message")
	}
}

func TestHandleLogin_GoogleAccount(t *testing.T) {
	h, db := newTestHandler(t, 5)
	testutil.InsertUser(t, db, models.User{Username: "ivy", AuthMethod: models.AuthGoogle})

	rec := postLogin(h, "ivy", "anything-123", "")

	if !strings.Contains(rec.Body.String(), "Google") {
		t.Error("missing Google sign-in hint")
	}
}

func TestHandleLogin_LocksOut(t *testing.T) {
	h, db := newTestHandler(t, 2)
	insertPasswordUser(t, db, "jay", "correct-horse-1")

	postLogin(h, "jay", "bad-1", "")
	rec := postLogin(h, "jay", "bad-2", "")
	if !strings.Contains(rec.Body.String(), "Too many failed login attempts") {
		t.Fatalf("second failure did not lock out: %s", rec.Body.String())
	}

	rec = postLogin(h, "jay", "correct-horse-1", "")
	if rec.Code == http.StatusSeeOther {
		t.Error("locked out identifier was allowed to log in")
	}
}

func TestShowLogin(t *testing.T) {
	h, _ := newTestHandler(t, 5)

	rec := httptest.NewRecorder()
	h.showLogin(rec, httptest.NewRequest(http.MethodGet, "/login?error=google_state", nil))
	body := rec.Body.String()
	if !strings.Contains(body, "Google sign-in expired") {
		t.Error("error code not mapped to message")
	}
	if !strings.Contains(body, "/auth/google") {
		t.Error("Google button missing when enabled")
	}

	rec = httptest.NewRecorder()
	h.showLogin(rec, httptest.NewRequest(http.MethodGet, "/login?error=<script>", nil))
	if strings.Contains(rec.Body.String(), "&lt;script&gt;") {
		t.Error("unknown error code reflected into page")
	}
}

func TestShowLogin_SignedInRedirects(t *testing.T) {
	h, _ := newTestHandler(t, 5)

	rec := httptest.NewRecorder()
	h.showLogin(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/login", testutil.MemberUser(primitive.NewObjectID(), "kim")))

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/feed" {
		t.Errorf("got %d %q, want 303 /feed", rec.Code, rec.Header().Get("Location"))
	}
}

func TestLockoutMessage(t *testing.T) {
	if got := lockoutMessage(nil); !strings.Contains(got, "later") {
		t.Errorf("lockoutMessage(nil) = %q", got)
	}
	soon := time.Now().Add(30 * time.Second)
	if got := lockoutMessage(&soon); !strings.Contains(got, "second") {
		t.Errorf("lockoutMessage(30s) = %q", got)
	}
	later := time.Now().Add(10 * time.Minute)
	if got := lockoutMessage(&later); !strings.Contains(got, "minute") {
		t.Errorf("lockoutMessage(10m) = %q", got)
	}
}
