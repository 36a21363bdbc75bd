package audit

import (
	"testing"
	"time"

	"github.com/dalemusser/pinboard/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Log(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	err := store.Log(ctx, Event{
		Category:  CategoryAuth,
		EventType: EventLoginSuccess,
		UserID:    &userID,
		IP:        "192.168.1.1",
		Success:   true,
		Details:   map[string]string{"identifier": "alice"},
	})
	if err != nil {
		t.Fatalf("Log() error = %v", err)
	}

	events, err := store.GetByUser(ctx, userID, 10)
	if err != nil {
		t.Fatalf("GetByUser() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("GetByUser() returned %d events, want 1", len(events))
	}
	e := events[0]
	if e.ID.IsZero() || e.CreatedAt.IsZero() {
		t.Error("Log() did not stamp id/created_at")
	}
	if e.Details["identifier"] != "alice" {
		t.Errorf("Details = %v", e.Details)
	}
}

func TestStore_Query(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	uid := primitive.NewObjectID()
	old := time.Now().Add(-48 * time.Hour)
	store.Log(ctx, Event{Category: CategoryAuth, EventType: EventLoginSuccess, UserID: &uid, Success: true, CreatedAt: old})
	store.Log(ctx, Event{Category: CategoryAuth, EventType: EventLoginFailedWrongPassword, UserID: &uid})
	store.Log(ctx, Event{Category: CategoryContent, EventType: EventBoardCreated, UserID: &uid, Success: true})

	tests := []struct {
		name   string
		filter QueryFilter
		want   int
	}{
		{"all", QueryFilter{}, 3},
		{"by category", QueryFilter{Category: CategoryAuth}, 2},
		{"by type", QueryFilter{EventType: EventBoardCreated}, 1},
		{"since", QueryFilter{Since: ptrTime(time.Now().Add(-time.Hour))}, 2},
		{"limit", QueryFilter{Limit: 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("Query() returned %d, want %d", len(got), tt.want)
			}
		})
	}

	newest, _ := store.Query(ctx, QueryFilter{})
	if newest[len(newest)-1].EventType != EventLoginSuccess {
		t.Error("Query() not sorted newest first")
	}
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestStore_CountAndOffset(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		store.Log(ctx, Event{Category: CategoryAuth, EventType: EventLogout, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}
	store.Log(ctx, Event{Category: CategoryContent, EventType: EventBoardCreated})

	n, err := store.Count(ctx, QueryFilter{Category: CategoryAuth})
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 5 {
		t.Errorf("Count() = %d, want 5", n)
	}

	page, err := store.Query(ctx, QueryFilter{Category: CategoryAuth, Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("Query() returned %d events, want 2", len(page))
	}
	if want := base.Add(2 * time.Minute); !page[0].CreatedAt.Round(time.Millisecond).Equal(want.Round(time.Millisecond)) {
		t.Errorf("page[0] created_at = %v, want %v", page[0].CreatedAt, want)
	}
}
