package auditlog

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/pinboard/internal/app/store/audit"
	"github.com/dalemusser/pinboard/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestLogger_Destinations(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	l := New(store, zap.NewNop(), Config{Auth: DestOff, Account: DestDB, Content: DestLog})
	r := httptest.NewRequest("POST", "/login", nil)
	uid := primitive.NewObjectID()

	l.LoginSuccess(r, uid, "password", "alice")
	l.Signup(r, uid, "password")
	l.BoardCreated(r, uid, primitive.NewObjectID(), "readers")

	events, err := store.GetByUser(ctx, uid, 10)
	if err != nil {
		t.Fatalf("GetByUser() error = %v", err)
	}
	if len(events) != 1 || events[0].EventType != audit.EventSignup {
		t.Errorf("stored events = %+v, want only signup", events)
	}
}

func TestLogger_PostDeletedByAdminSetsActor(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	l := New(store, zap.NewNop(), Config{})
	r := httptest.NewRequest("DELETE", "/api/posts/x", nil)
	admin, author := primitive.NewObjectID(), primitive.NewObjectID()

	l.PostDeleted(r, admin, author, primitive.NewObjectID())
	l.PostDeleted(r, author, author, primitive.NewObjectID())

	events, _ := store.GetByUser(ctx, author, 10)
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	var withActor int
	for _, e := range events {
		if e.ActorID != nil {
			withActor++
			if *e.ActorID != admin {
				t.Errorf("ActorID = %s, want admin", e.ActorID.Hex())
			}
		}
	}
	if withActor != 1 {
		t.Errorf("events with actor = %d, want 1", withActor)
	}
}

func TestLogger_NilIsNoop(t *testing.T) {
	var l *Logger
	l.Log(context.Background(), audit.Event{})
}
