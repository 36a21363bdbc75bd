package home

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/pinboard/internal/app/system/streaktracker"
	"github.com/dalemusser/pinboard/internal/domain/models"
	"github.com/dalemusser/pinboard/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestIndex_SignedInRedirectsToFeed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := NewHandler(db, streaktracker.New(db, zap.NewNop()), zap.NewNop())

	rec := httptest.NewRecorder()
	h.Index(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/", testutil.MemberUser(primitive.NewObjectID(), "olive")))

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/feed" {
		t.Errorf("got %d %q, want 303 /feed", rec.Code, rec.Header().Get("Location"))
	}
}

func TestIndex_Landing(t *testing.T) {
	testutil.MustBootTemplates(t)
	db := testutil.SetupTestDB(t)
	h := NewHandler(db, streaktracker.New(db, zap.NewNop()), zap.NewNop())

	uid := testutil.InsertUser(t, db, models.User{Username: "pat", FullName: "Pat Quinn"})
	testutil.InsertStreak(t, db, uid, 12, 12, time.Now().UTC())
	testutil.InsertBoard(t, db, "Night Owls", "night-owls", uid)

	rec := httptest.NewRecorder()
	h.Index(rec, testutil.WithCSRFToken(httptest.NewRequest(http.MethodGet, "/", nil)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Pat Quinn", "12 days", "Night Owls", "/signup"} {
		if !strings.Contains(body, want) {
			t.Errorf("landing page missing %q", want)
		}
	}
}
