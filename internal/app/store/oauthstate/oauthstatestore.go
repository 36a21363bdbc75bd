// internal/app/store/oauthstate/oauthstatestore.go
package oauthstate

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// DefaultTTL is how long a state token stays valid.
const DefaultTTL = 10 * time.Minute

// ErrInvalidState is returned for unknown, expired or already used states.
var ErrInvalidState = errors.New("invalid or expired oauth state")

// State is a single-use token tying a Google callback to the browser that
// started the flow.
type State struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	State     string             `bson:"state"`
	ReturnTo  string             `bson:"return_to,omitempty"` // local path to land on after sign-in
	ExpiresAt time.Time          `bson:"expires_at"`
	CreatedAt time.Time          `bson:"created_at"`
}

type Store struct {
	c   *mongo.Collection
	ttl time.Duration
}

// New creates a state store; ttl <= 0 uses DefaultTTL.
func New(db *mongo.Database, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{c: db.Collection("oauth_states"), ttl: ttl}
}

// Create stores a new state token.
func (s *Store) Create(ctx context.Context, state, returnTo string) error {
	now := time.Now()
	_, err := s.c.InsertOne(ctx, State{
		ID:        primitive.NewObjectID(),
		State:     state,
		ReturnTo:  returnTo,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	})
	return err
}

// Consume validates and deletes a state token in one step, returning the
// stored record.
func (s *Store) Consume(ctx context.Context, state string) (*State, error) {
	var st State
	err := s.c.FindOneAndDelete(ctx, bson.M{
		"state":      state,
		"expires_at": bson.M{"$gt": time.Now()},
	}).Decode(&st)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrInvalidState
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// DeleteExpired removes states past their expiry.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": time.Now()}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
