// internal/app/store/follows/followstore.go
package followstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	userstore "github.com/dalemusser/pinboard/internal/app/store/users"
	"github.com/dalemusser/pinboard/internal/app/system/txn"
	"github.com/dalemusser/pinboard/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	// ErrSelfFollow is returned when a user tries to follow themselves.
	ErrSelfFollow = errors.New("cannot follow yourself")
	// ErrUserNotFound is returned when the followed user does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// Store owns the follows collection and the follower/following counters
// on users.
type Store struct {
	db    *mongo.Database
	log   *zap.Logger
	c     *mongo.Collection
	users *userstore.Store
}

func New(db *mongo.Database, logger *zap.Logger) *Store {
	return &Store{db: db, log: logger, c: db.Collection("follows"), users: userstore.New(db)}
}

// Toggle follows target, or unfollows if follower already follows it.
// It reports whether follower follows target afterwards.
func (s *Store) Toggle(ctx context.Context, follower, target primitive.ObjectID) (bool, error) {
	if follower == target {
		return false, ErrSelfFollow
	}
	if _, err := s.users.GetByID(ctx, target); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, ErrUserNotFound
		}
		return false, err
	}

	var following bool
	err := txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		res, err := s.c.DeleteOne(ctx, bson.M{"follower_id": follower, "following_id": target})
		if err != nil {
			return fmt.Errorf("unfollow: %w", err)
		}
		delta := -1
		if res.DeletedCount == 0 {
			f := models.Follow{ID: primitive.NewObjectID(), FollowerID: follower, FollowingID: target, CreatedAt: time.Now().UTC()}
			if _, err := s.c.InsertOne(ctx, f); err != nil {
				return err
			}
			delta = 1
		}
		following = delta > 0
		return s.users.AdjustFollowCounts(ctx, follower, target, delta)
	})
	if err != nil && wafflemongo.IsDup(err) {
		// A concurrent toggle created the edge first.
		return true, nil
	}
	return following, err
}

// IsFollowing reports whether follower follows target.
func (s *Store) IsFollowing(ctx context.Context, follower, target primitive.ObjectID) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"follower_id": follower, "following_id": target})
	return n > 0, err
}

// FollowingIDs lists the users follower follows.
func (s *Store) FollowingIDs(ctx context.Context, follower primitive.ObjectID) ([]primitive.ObjectID, error) {
	vals, err := s.c.Distinct(ctx, "following_id", bson.M{"follower_id": follower})
	if err != nil {
		return nil, err
	}
	out := make([]primitive.ObjectID, 0, len(vals))
	for _, v := range vals {
		if oid, ok := v.(primitive.ObjectID); ok {
			out = append(out, oid)
		}
	}
	return out, nil
}
