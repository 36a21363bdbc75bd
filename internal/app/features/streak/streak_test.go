package streak

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	errorsfeature "github.com/dalemusser/pinboard/internal/app/features/errors"
	streakstore "github.com/dalemusser/pinboard/internal/app/store/streaks"
	"github.com/dalemusser/pinboard/internal/app/system/streaktracker"
	"github.com/dalemusser/pinboard/internal/domain/models"
	streakrules "github.com/dalemusser/pinboard/internal/domain/streak"
	"github.com/dalemusser/pinboard/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*Handler, *mongo.Database) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	return NewHandler(streaktracker.New(db, logger), errorsfeature.NewErrorLogger(logger), 0, logger), db
}

func TestAPIStreak_StartsRecord(t *testing.T) {
	h, db := newTestHandler(t)
	uid := testutil.InsertUser(t, db, models.User{Username: "newbie"})

	rec := httptest.NewRecorder()
	h.apiStreak(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/api/streak", testutil.MemberUser(uid, "newbie")))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got struct {
		CurrentStreak int    `json:"currentStreak"`
		LongestStreak int    `json:"longestStreak"`
		Outcome       string `json:"outcome"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.CurrentStreak != 1 || got.LongestStreak != 1 || got.Outcome != "started" {
		t.Errorf("got %+v, want 1/1 started", got)
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	n, err := db.Collection("activity_events").CountDocuments(ctx, bson.M{"user_id": uid, "event_type": "streak_viewed"})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("streak_viewed events = %d, want 1", n)
	}
}

func TestAPIStreak_ExtendsFromYesterday(t *testing.T) {
	h, db := newTestHandler(t)
	uid := testutil.InsertUser(t, db, models.User{Username: "steady"})
	testutil.InsertStreak(t, db, uid, 4, 9, time.Now().UTC().AddDate(0, 0, -1))

	rec := httptest.NewRecorder()
	h.apiStreak(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/api/streak", testutil.MemberUser(uid, "steady")))

	body := rec.Body.String()
	if !strings.Contains(body, `"currentStreak":5`) || !strings.Contains(body, `"longestStreak":9`) {
		t.Errorf("body = %s, want current 5 longest 9", body)
	}
}

func TestAPILeaderboard(t *testing.T) {
	h, db := newTestHandler(t)
	viewer := testutil.InsertUser(t, db, models.User{Username: "viewer"})
	today := time.Now().UTC()
	for i, name := range []string{"one", "two", "three"} {
		uid := testutil.InsertUser(t, db, models.User{Username: name})
		testutil.InsertStreak(t, db, uid, 10-i, 10, today)
	}
	user := testutil.MemberUser(viewer, "viewer")

	tests := []struct {
		name   string
		target string
		code   int
		want   int
	}{
		{"default", "/api/streak/leaderboard", http.StatusOK, 3},
		{"limited", "/api/streak/leaderboard?limit=2", http.StatusOK, 2},
		{"zero", "/api/streak/leaderboard?limit=0", http.StatusOK, 0},
		{"negative", "/api/streak/leaderboard?limit=-3", http.StatusOK, 0},
		{"garbage", "/api/streak/leaderboard?limit=abc", http.StatusBadRequest, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.apiLeaderboard(rec, testutil.NewAuthenticatedRequest(http.MethodGet, tt.target, user))
			if rec.Code != tt.code {
				t.Fatalf("status = %d, want %d", rec.Code, tt.code)
			}
			if tt.want < 0 {
				return
			}
			var entries []models.LeaderboardEntry
			if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(entries) != tt.want {
				t.Fatalf("entries = %d, want %d", len(entries), tt.want)
			}
			if tt.want > 0 && (entries[0].User.Username != "one" || entries[0].CurrentStreak != 10) {
				t.Errorf("top entry = %+v", entries[0])
			}
		})
	}
}

func TestShowStreak(t *testing.T) {
	testutil.MustBootTemplates(t)
	h, db := newTestHandler(t)
	uid := testutil.InsertUser(t, db, models.User{Username: "pageuser", FullName: "Page User"})
	other := testutil.InsertUser(t, db, models.User{Username: "rival"})
	testutil.InsertStreak(t, db, other, 30, 30, time.Now().UTC())

	rec := httptest.NewRecorder()
	h.showStreak(rec, testutil.NewAuthenticatedRequestWithCSRF(http.MethodGet, "/streak", testutil.MemberUser(uid, "pageuser")))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"@rival", "@pageuser", "#2"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

// readOnlyStreaks serves stored records but refuses every update.
type readOnlyStreaks struct {
	*streakstore.Store
}

func (readOnlyStreaks) RecordActivity(context.Context, primitive.ObjectID, time.Time) (models.StreakRecord, streakrules.Outcome, error) {
	return models.StreakRecord{}, streakrules.Unchanged, errors.New("streaks read-only")
}

func TestShowStreak_FallsBackToStoredRecord(t *testing.T) {
	testutil.MustBootTemplates(t)
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	tracker := streaktracker.NewWithStreaks(db, readOnlyStreaks{streakstore.New(db)}, logger)
	h := NewHandler(tracker, errorsfeature.NewErrorLogger(logger), 0, logger)

	uid := testutil.InsertUser(t, db, models.User{Username: "keeper"})
	testutil.InsertStreak(t, db, uid, 6, 11, time.Now().UTC())

	rec := httptest.NewRecorder()
	h.showStreak(rec, testutil.NewAuthenticatedRequestWithCSRF(http.MethodGet, "/streak", testutil.MemberUser(uid, "keeper")))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{`<span class="big">6</span>`, `<span class="big">11</span>`} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	n, err := db.Collection("activity_events").CountDocuments(ctx, bson.M{"user_id": uid})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("activity events = %d, want 0", n)
	}
}

func TestRows_DeletedUser(t *testing.T) {
	entries := []models.LeaderboardEntry{{StreakRecord: models.StreakRecord{CurrentStreak: 3}}}
	got := rows(entries, "")
	if got[0].Username != "deleted" || got[0].Position != 1 {
		t.Errorf("row = %+v", got[0])
	}
}
