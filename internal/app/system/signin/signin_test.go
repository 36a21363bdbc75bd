package signin

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/pinboard/internal/app/store/sessions"
	"github.com/dalemusser/pinboard/internal/app/system/auth"
	"github.com/dalemusser/pinboard/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestStarter_Start(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	mgr, err := auth.NewSessionManager("test-session-key-for-testing-1234567890", "test-session", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager() error = %v", err)
	}
	store := sessions.New(db)
	s := New(mgr, store, time.Hour, zap.NewNop())

	userID := primitive.NewObjectID()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "198.51.100.4:5555"
	rec := httptest.NewRecorder()

	if err := s.Start(rec, req, userID, "member"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Fatal("Start() set no session cookie")
	}

	active, err := store.ListActiveByUser(ctx, userID)
	if err != nil {
		t.Fatalf("ListActiveByUser() error = %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("active sessions = %d, want 1", len(active))
	}
	if active[0].ExpiresAt.Before(time.Now().Add(50 * time.Minute)) {
		t.Errorf("ExpiresAt = %v, want about an hour out", active[0].ExpiresAt)
	}
}

func TestNew_DefaultTTL(t *testing.T) {
	s := New(nil, nil, 0, zap.NewNop())
	if s.ttl != DefaultTTL {
		t.Errorf("ttl = %v, want %v", s.ttl, DefaultTTL)
	}
}
