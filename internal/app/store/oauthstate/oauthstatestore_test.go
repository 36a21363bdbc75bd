package oauthstate

import (
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/pinboard/internal/testutil"
)

func TestStore_Consume_SingleUse(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db, 0)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.Create(ctx, "state-abc", "/boards"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	st, err := store.Consume(ctx, "state-abc")
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if st.ReturnTo != "/boards" {
		t.Errorf("ReturnTo = %q, want /boards", st.ReturnTo)
	}
	if got := st.ExpiresAt.Sub(st.CreatedAt); got != DefaultTTL {
		t.Errorf("ttl = %v, want %v", got, DefaultTTL)
	}

	if _, err := store.Consume(ctx, "state-abc"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second Consume() error = %v, want ErrInvalidState", err)
	}
}

func TestStore_Consume_Unknown(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db, 0)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Consume(ctx, "never-issued"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Consume() error = %v, want ErrInvalidState", err)
	}
}

func TestStore_Create_UniqueState(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db, 0)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.Create(ctx, "dup", ""); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := store.Create(ctx, "dup", ""); err == nil {
		t.Error("Create() with duplicate state should fail")
	}
}

func TestStore_ExpiredStates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db, time.Millisecond)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store.Create(ctx, "short-lived", "")
	time.Sleep(10 * time.Millisecond)

	if _, err := store.Consume(ctx, "short-lived"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Consume(expired) error = %v, want ErrInvalidState", err)
	}
	n, err := store.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteExpired() = %d, want 1", n)
	}
}
