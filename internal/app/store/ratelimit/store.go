// internal/app/store/ratelimit/store.go
//
// Package ratelimit counts failed attempts per key (a login identifier, or a
// client address for signups) and locks the key out after too many.
package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Attempt tracks failed attempts for one key.
type Attempt struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Key          string             `bson:"key"`
	AttemptCount int                `bson:"attempt_count"`
	WindowStart  time.Time          `bson:"window_start"`
	LockedUntil  *time.Time         `bson:"locked_until"`
	LastAttempt  time.Time          `bson:"last_attempt"` // TTL
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

// Store manages rate limit tracking.
type Store struct {
	c               *mongo.Collection
	maxAttempts     int
	windowDuration  time.Duration
	lockoutDuration time.Duration
}

func New(db *mongo.Database, maxAttempts int, window, lockout time.Duration) *Store {
	return &Store{
		c:               db.Collection("rate_limits"),
		maxAttempts:     maxAttempts,
		windowDuration:  window,
		lockoutDuration: lockout,
	}
}

// LoginKey and SignupKey namespace keys so the two limits never collide.
func LoginKey(identifier string) string { return "login:" + identifier }
func SignupKey(addr string) string      { return "signup:" + addr }

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// CheckAllowed reports whether key may attempt again.
//   - remaining: attempts left before lockout (-1 if locked)
//   - lockedUntil: when the lockout expires (nil if not locked)
//
// Lookup errors fail open.
func (s *Store) CheckAllowed(ctx context.Context, key string) (allowed bool, remaining int, lockedUntil *time.Time) {
	key = normalizeKey(key)
	now := time.Now()

	var attempt Attempt
	err := s.c.FindOne(ctx, bson.M{"key": key}).Decode(&attempt)
	if err != nil {
		return true, s.maxAttempts, nil
	}

	if attempt.LockedUntil != nil && now.Before(*attempt.LockedUntil) {
		return false, -1, attempt.LockedUntil
	}
	if now.After(attempt.WindowStart.Add(s.windowDuration)) {
		return true, s.maxAttempts, nil
	}

	remaining = s.maxAttempts - attempt.AttemptCount
	if remaining <= 0 {
		return false, 0, nil
	}
	return true, remaining, nil
}

// RecordFailure counts a failed attempt for key and reports whether it
// triggered a lockout. Counting is a single atomic increment so concurrent
// failures are never lost.
func (s *Store) RecordFailure(ctx context.Context, key string) (lockedOut bool, lockedUntil *time.Time) {
	key = normalizeKey(key)
	now := time.Now()

	// Start a fresh window when the previous one (or its lockout) is over.
	_, _ = s.c.UpdateOne(ctx,
		bson.M{
			"key":          key,
			"window_start": bson.M{"$lt": now.Add(-s.windowDuration)},
			"$or": []bson.M{
				{"locked_until": nil},
				{"locked_until": bson.M{"$lte": now}},
			},
		},
		bson.M{"$set": bson.M{"attempt_count": 0, "window_start": now, "locked_until": nil}},
	)

	update := bson.M{
		"$inc": bson.M{"attempt_count": 1},
		"$set": bson.M{"last_attempt": now, "updated_at": now},
		"$setOnInsert": bson.M{
			"window_start": now,
			"locked_until": nil,
			"created_at":   now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var attempt Attempt
	err := s.c.FindOneAndUpdate(ctx, bson.M{"key": key}, update, opts).Decode(&attempt)
	if err != nil && wafflemongo.IsDup(err) {
		// Lost an upsert race; the document exists now.
		err = s.c.FindOneAndUpdate(ctx, bson.M{"key": key}, update, opts).Decode(&attempt)
	}
	if err != nil {
		return false, nil
	}

	if attempt.AttemptCount < s.maxAttempts {
		return false, nil
	}
	if attempt.LockedUntil != nil && now.Before(*attempt.LockedUntil) {
		return true, attempt.LockedUntil
	}
	until := now.Add(s.lockoutDuration)
	_, _ = s.c.UpdateOne(ctx, bson.M{"_id": attempt.ID}, bson.M{"$set": bson.M{"locked_until": until}})
	return true, &until
}

// ClearOnSuccess removes the record for key after a successful attempt.
func (s *Store) ClearOnSuccess(ctx context.Context, key string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"key": normalizeKey(key)})
	return err
}

// GetAttempt returns the record for key, or nil if there is none.
func (s *Store) GetAttempt(ctx context.Context, key string) (*Attempt, error) {
	var attempt Attempt
	err := s.c.FindOne(ctx, bson.M{"key": normalizeKey(key)}).Decode(&attempt)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// DeleteStale removes records whose window has closed and whose lockout,
// if any, has ended. The TTL index catches the rest eventually.
func (s *Store) DeleteStale(ctx context.Context) (int64, error) {
	now := time.Now()
	res, err := s.c.DeleteMany(ctx, bson.M{
		"window_start": bson.M{"$lt": now.Add(-s.windowDuration)},
		"$or": []bson.M{
			{"locked_until": nil},
			{"locked_until": bson.M{"$lt": now}},
		},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
