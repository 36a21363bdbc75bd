// internal/app/store/engagement/engagementstore.go
//
// Package engagementstore records likes, reposts and shares and keeps the
// matching counters on the post in step.
package engagementstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/pinboard/internal/app/system/txn"
	"github.com/dalemusser/pinboard/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	// ErrPostNotFound is returned when the target post does not exist.
	ErrPostNotFound = errors.New("post not found")
	// ErrAlreadyReposted is returned on a second repost of the same post.
	ErrAlreadyReposted = errors.New("already reposted")
)

type Store struct {
	db      *mongo.Database
	log     *zap.Logger
	posts   *mongo.Collection
	likes   *mongo.Collection
	reposts *mongo.Collection
	shares  *mongo.Collection
}

func New(db *mongo.Database, logger *zap.Logger) *Store {
	return &Store{
		db:      db,
		log:     logger,
		posts:   db.Collection("posts"),
		likes:   db.Collection("likes"),
		reposts: db.Collection("reposts"),
		shares:  db.Collection("shares"),
	}
}

func (s *Store) exists(ctx context.Context, postID primitive.ObjectID) error {
	n, err := s.posts.CountDocuments(ctx, bson.M{"_id": postID})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPostNotFound
	}
	return nil
}

func (s *Store) bump(ctx context.Context, postID primitive.ObjectID, field string, delta int) error {
	res, err := s.posts.UpdateOne(ctx, bson.M{"_id": postID}, bson.M{"$inc": bson.M{field: delta}})
	if err != nil {
		return fmt.Errorf("update %s: %w", field, err)
	}
	if res.MatchedCount == 0 {
		return ErrPostNotFound
	}
	return nil
}

// ToggleLike likes the post, or unlikes it if the user already liked it.
// It reports whether the post is liked afterwards.
func (s *Store) ToggleLike(ctx context.Context, userID, postID primitive.ObjectID) (bool, error) {
	var liked bool
	err := txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		res, err := s.likes.DeleteOne(ctx, bson.M{"user_id": userID, "post_id": postID})
		if err != nil {
			return fmt.Errorf("unlike: %w", err)
		}
		if res.DeletedCount > 0 {
			liked = false
			return s.bump(ctx, postID, "like_count", -1)
		}
		if err := s.exists(ctx, postID); err != nil {
			return err
		}
		like := models.Like{ID: primitive.NewObjectID(), PostID: postID, UserID: userID, CreatedAt: time.Now().UTC()}
		if _, err := s.likes.InsertOne(ctx, like); err != nil {
			return err
		}
		liked = true
		return s.bump(ctx, postID, "like_count", 1)
	})
	if err != nil && wafflemongo.IsDup(err) {
		// A concurrent toggle inserted the like first.
		return true, nil
	}
	return liked, err
}

// Repost records a repost. A second repost of the same post by the same
// user returns ErrAlreadyReposted.
func (s *Store) Repost(ctx context.Context, userID, postID primitive.ObjectID) (models.Repost, error) {
	rp := models.Repost{ID: primitive.NewObjectID(), PostID: postID, UserID: userID, CreatedAt: time.Now().UTC()}
	err := txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		if err := s.exists(ctx, postID); err != nil {
			return err
		}
		if _, err := s.reposts.InsertOne(ctx, rp); err != nil {
			if wafflemongo.IsDup(err) {
				return ErrAlreadyReposted
			}
			return fmt.Errorf("repost: %w", err)
		}
		return s.bump(ctx, postID, "repost_count", 1)
	})
	if err != nil {
		return models.Repost{}, err
	}
	return rp, nil
}

// Share records a share. Users may share the same post repeatedly.
func (s *Store) Share(ctx context.Context, userID, postID primitive.ObjectID) (models.Share, error) {
	sh := models.Share{ID: primitive.NewObjectID(), PostID: postID, UserID: userID, CreatedAt: time.Now().UTC()}
	err := txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		if err := s.bump(ctx, postID, "share_count", 1); err != nil {
			return err
		}
		if _, err := s.shares.InsertOne(ctx, sh); err != nil {
			return fmt.Errorf("share: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Share{}, err
	}
	return sh, nil
}

// LikedSet reports which of postIDs the user has liked.
func (s *Store) LikedSet(ctx context.Context, userID primitive.ObjectID, postIDs []primitive.ObjectID) (map[primitive.ObjectID]bool, error) {
	return idSet(ctx, s.likes, userID, postIDs)
}

// RepostedSet reports which of postIDs the user has reposted.
func (s *Store) RepostedSet(ctx context.Context, userID primitive.ObjectID, postIDs []primitive.ObjectID) (map[primitive.ObjectID]bool, error) {
	return idSet(ctx, s.reposts, userID, postIDs)
}

func idSet(ctx context.Context, c *mongo.Collection, userID primitive.ObjectID, postIDs []primitive.ObjectID) (map[primitive.ObjectID]bool, error) {
	out := make(map[primitive.ObjectID]bool, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	ids, err := c.Distinct(ctx, "post_id", bson.M{"user_id": userID, "post_id": bson.M{"$in": postIDs}})
	if err != nil {
		return nil, err
	}
	for _, v := range ids {
		if oid, ok := v.(primitive.ObjectID); ok {
			out[oid] = true
		}
	}
	return out, nil
}
