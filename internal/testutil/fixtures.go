package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/pinboard/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// InsertUser writes u straight into the users collection, filling in the
// id, handle, email, role, status and timestamps when they are empty.
// It bypasses the user store so any package can seed users without an
// import cycle.
func InsertUser(t *testing.T, db *mongo.Database, u models.User) primitive.ObjectID {
	t.Helper()

	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if u.Username == "" {
		u.Username = "u" + u.ID.Hex()[16:]
	}
	if u.FullName == "" {
		u.FullName = u.Username
	}
	if u.Email == "" {
		u.Email = strings.ToLower(u.Username) + "@test.local"
	}
	if u.Role == "" {
		u.Role = models.RoleMember
	}
	if u.Status == "" {
		u.Status = models.StatusActive
	}
	if u.AuthMethod == "" {
		u.AuthMethod = models.AuthPassword
	}
	u.UsernameCI = text.Fold(u.Username)
	u.FullNameCI = text.Fold(u.FullName)
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := db.Collection("users").InsertOne(ctx, u); err != nil {
		t.Fatalf("InsertUser(%s) error = %v", u.Username, err)
	}
	return u.ID
}

// InsertStreak writes a streak record for userID and returns userID.
func InsertStreak(t *testing.T, db *mongo.Database, userID primitive.ObjectID, current, longest int, last time.Time) primitive.ObjectID {
	t.Helper()

	rec := models.StreakRecord{
		ID:             primitive.NewObjectID(),
		UserID:         userID,
		CurrentStreak:  current,
		LongestStreak:  longest,
		LastActiveDate: last.UTC(),
		CreatedAt:      last.UTC(),
		UpdatedAt:      last.UTC(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := db.Collection("streaks").InsertOne(ctx, rec); err != nil {
		t.Fatalf("InsertStreak() error = %v", err)
	}
	return userID
}

// InsertPost writes p into the posts collection, filling in the id,
// content, hashtags and timestamps when they are empty.
func InsertPost(t *testing.T, db *mongo.Database, p models.Post) models.Post {
	t.Helper()

	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if p.Content == "" {
		p.Content = "post " + p.ID.Hex()[18:]
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.UpdatedAt = p.CreatedAt

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := db.Collection("posts").InsertOne(ctx, p); err != nil {
		t.Fatalf("InsertPost() error = %v", err)
	}
	return p
}

// InsertBoard writes a board owned by creator together with the creator's
// admin membership.
func InsertBoard(t *testing.T, db *mongo.Database, name, slug string, creator primitive.ObjectID) models.Board {
	t.Helper()

	now := time.Now().UTC()
	b := models.Board{
		ID:          primitive.NewObjectID(),
		Name:        name,
		NameCI:      text.Fold(name),
		Slug:        slug,
		CreatorID:   creator,
		MemberCount: 1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m := models.BoardMember{
		ID:       primitive.NewObjectID(),
		BoardID:  b.ID,
		UserID:   creator,
		Role:     models.BoardRoleAdmin,
		JoinedAt: now,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := db.Collection("boards").InsertOne(ctx, b); err != nil {
		t.Fatalf("InsertBoard(%s) error = %v", slug, err)
	}
	if _, err := db.Collection("board_members").InsertOne(ctx, m); err != nil {
		t.Fatalf("InsertBoard(%s) member error = %v", slug, err)
	}
	return b
}
