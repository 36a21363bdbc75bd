package authgoogle

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	errorsfeature "github.com/dalemusser/pinboard/internal/app/features/errors"
	"github.com/dalemusser/pinboard/internal/app/store/oauthstate"
	"github.com/dalemusser/pinboard/internal/app/store/sessions"
	userstore "github.com/dalemusser/pinboard/internal/app/store/users"
	"github.com/dalemusser/pinboard/internal/app/system/auth"
	"github.com/dalemusser/pinboard/internal/app/system/signin"
	"github.com/dalemusser/pinboard/internal/domain/models"
	"github.com/dalemusser/pinboard/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// fakeGoogle serves the token and userinfo endpoints.
func fakeGoogle(t *testing.T, info GoogleUserInfo) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-123","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-123" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(info)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestHandler(t *testing.T, info GoogleUserInfo) (*Handler, *mongo.Database, *oauthstate.Store) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	mgr, err := auth.NewSessionManager("test-session-key-for-testing-1234567890", "test-session", "", time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager() error = %v", err)
	}
	states := oauthstate.New(db, time.Minute)
	h := NewHandler(db, signin.New(mgr, sessions.New(db), time.Hour, logger), states,
		errorsfeature.NewErrorLogger(logger), nil, "client-id", "client-secret", "http://localhost:8080/", logger)

	srv := fakeGoogle(t, info)
	h.oauthConfig.Endpoint = oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"}
	h.userInfoURL = srv.URL + "/userinfo"
	return h, db, states
}

func callback(t *testing.T, h *Handler, states *oauthstate.Store, returnTo string) *httptest.ResponseRecorder {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := states.Create(ctx, "state-1", returnTo); err != nil {
		t.Fatalf("Create state: %v", err)
	}
	rec := httptest.NewRecorder()
	h.handleCallback(rec, httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=state-1&code=c", nil))
	return rec
}

func TestStartAuth_StoresStateAndRedirects(t *testing.T) {
	h, db, _ := newTestHandler(t, GoogleUserInfo{})

	rec := httptest.NewRecorder()
	h.startAuth(rec, httptest.NewRequest(http.MethodGet, "/auth/google?return=/boards", nil))

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want 307", rec.Code)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse Location: %v", err)
	}
	if loc.Query().Get("redirect_uri") != "http://localhost:8080/auth/google/callback" {
		t.Errorf("redirect_uri = %q", loc.Query().Get("redirect_uri"))
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	var st oauthstate.State
	if err := db.Collection("oauth_states").FindOne(ctx, map[string]string{"state": loc.Query().Get("state")}).Decode(&st); err != nil {
		t.Fatalf("state not stored: %v", err)
	}
	if st.ReturnTo != "/boards" {
		t.Errorf("ReturnTo = %q, want /boards", st.ReturnTo)
	}
}

func TestCallback_CreatesMember(t *testing.T) {
	info := GoogleUserInfo{ID: "g1", Email: "Lena.Park@example.com", VerifiedEmail: true, Name: "Lena Park", Picture: "https://img.example/l.png"}
	h, db, states := newTestHandler(t, info)

	rec := callback(t, h, states, "/streak")

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/streak" {
		t.Fatalf("got %d %q, want 303 /streak", rec.Code, rec.Header().Get("Location"))
	}
	ctx, cancel := testutil.TestContext()
	defer cancel()
	u, err := userstore.New(db).GetByEmail(ctx, "lena.park@example.com")
	if err != nil {
		t.Fatalf("user not created: %v", err)
	}
	if u.Username != "lenapark" || u.AuthMethod != models.AuthGoogle || u.Role != models.RoleMember {
		t.Errorf("user = %+v", u)
	}
	if u.ImageURL != info.Picture {
		t.Errorf("ImageURL = %q", u.ImageURL)
	}
}

func TestCallback_HandleCollision(t *testing.T) {
	info := GoogleUserInfo{Email: "max@example.com", VerifiedEmail: true, Name: "Max"}
	h, db, states := newTestHandler(t, info)
	testutil.InsertUser(t, db, models.User{Username: "max", Email: "other@example.com"})

	callback(t, h, states, "")

	ctx, cancel := testutil.TestContext()
	defer cancel()
	u, err := userstore.New(db).GetByEmail(ctx, "max@example.com")
	if err != nil {
		t.Fatalf("user not created: %v", err)
	}
	if u.Username != "max2" {
		t.Errorf("Username = %q, want max2", u.Username)
	}
}

func TestCallback_MatchesExistingByEmail(t *testing.T) {
	info := GoogleUserInfo{Email: "nia@example.com", VerifiedEmail: true, Name: "Nia"}
	h, db, states := newTestHandler(t, info)
	uid := testutil.InsertUser(t, db, models.User{Username: "nia_w", Email: "nia@example.com"})

	rec := callback(t, h, states, "")

	if rec.Header().Get("Location") != "/feed" {
		t.Fatalf("Location = %q, want /feed", rec.Header().Get("Location"))
	}
	ctx, cancel := testutil.TestContext()
	defer cancel()
	n, _ := db.Collection("users").CountDocuments(ctx, map[string]string{"email": "nia@example.com"})
	if n != 1 {
		t.Errorf("users with email = %d, want 1", n)
	}
	active, _ := sessions.New(db).ListActiveByUser(ctx, uid)
	if len(active) != 1 {
		t.Errorf("sessions = %d, want 1 for the existing account", len(active))
	}
}

func TestCallback_DisabledAccount(t *testing.T) {
	info := GoogleUserInfo{Email: "off@example.com", VerifiedEmail: true}
	h, db, states := newTestHandler(t, info)
	testutil.InsertUser(t, db, models.User{Username: "off", Email: "off@example.com", Status: "disabled"})

	rec := callback(t, h, states, "")

	if rec.Header().Get("Location") != "/login?error=account_disabled" {
		t.Errorf("Location = %q", rec.Header().Get("Location"))
	}
}

func TestCallback_UnverifiedEmail(t *testing.T) {
	h, _, states := newTestHandler(t, GoogleUserInfo{Email: "x@example.com", VerifiedEmail: false})

	rec := callback(t, h, states, "")

	if rec.Header().Get("Location") != "/login?error=google_failed" {
		t.Errorf("Location = %q", rec.Header().Get("Location"))
	}
}

func TestCallback_StateIsSingleUse(t *testing.T) {
	h, _, states := newTestHandler(t, GoogleUserInfo{Email: "once@example.com", VerifiedEmail: true, Name: "Once"})

	callback(t, h, states, "")
	rec := httptest.NewRecorder()
	h.handleCallback(rec, httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=state-1&code=c", nil))

	if rec.Header().Get("Location") != "/login?error=google_state" {
		t.Errorf("replayed state: Location = %q", rec.Header().Get("Location"))
	}
}

func TestHandleBase(t *testing.T) {
	tests := []struct {
		info GoogleUserInfo
		want string
	}{
		{GoogleUserInfo{Name: "Ada Lovelace", Email: "ada@x.io"}, "adalovelace"},
		{GoogleUserInfo{Name: "李", Email: "li.wei@x.io"}, "liwei"},
		{GoogleUserInfo{Name: "", Email: "Bo@x.io"}, "bo"},
	}
	for _, tt := range tests {
		if got := handleBase(tt.info); got != tt.want {
			t.Errorf("handleBase(%q, %q) = %q, want %q", tt.info.Name, tt.info.Email, got, tt.want)
		}
	}
	if strings.ContainsAny(handleBase(GoogleUserInfo{Name: "a-b c.d"}), "-. ") {
		t.Error("handleBase kept non-handle characters")
	}
}
