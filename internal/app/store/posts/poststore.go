// internal/app/store/posts/poststore.go
package poststore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/pinboard/internal/app/store/storeutil"
	"github.com/dalemusser/pinboard/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Counter fields that IncCounter may adjust.
const (
	CounterLikes    = "like_count"
	CounterComments = "comment_count"
	CounterReposts  = "repost_count"
	CounterShares   = "share_count"
)

// ErrNotFound is returned when a post does not exist.
var ErrNotFound = errors.New("post not found")

var newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}

type Store struct {
	db *mongo.Database
	c  *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{db: db, c: db.Collection("posts")}
}

// Create inserts p, stamping its id and timestamps.
func (s *Store) Create(ctx context.Context, p models.Post) (models.Post, error) {
	now := time.Now().UTC()
	p.ID = primitive.NewObjectID()
	p.CreatedAt = now
	p.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, p); err != nil {
		return models.Post{}, fmt.Errorf("insert post: %w", err)
	}
	return p, nil
}

// GetByID returns ErrNotFound when no post has id.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	var p models.Post
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Delete removes the post and everything attached to it.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	for _, coll := range []string{"comments", "likes", "reposts", "shares"} {
		if _, err := s.db.Collection(coll).DeleteMany(ctx, bson.M{"post_id": id}); err != nil {
			return fmt.Errorf("delete post %s: %w", coll, err)
		}
	}
	return nil
}

// IncCounter adds delta to one of the Counter* fields.
func (s *Store) IncCounter(ctx context.Context, id primitive.ObjectID, field string, delta int) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{field: delta}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Latest returns the newest posts across the site.
func (s *Store) Latest(ctx context.Context, limit int64) ([]models.Post, error) {
	return s.find(ctx, bson.M{}, options.Find().SetSort(newestFirst).SetLimit(limit))
}

// Feed returns the user's own posts plus posts in the given boards.
func (s *Store) Feed(ctx context.Context, userID primitive.ObjectID, boardIDs []primitive.ObjectID, limit int64) ([]models.Post, error) {
	filter := bson.M{"user_id": userID}
	if len(boardIDs) > 0 {
		filter = bson.M{"$or": []bson.M{
			{"user_id": userID},
			{"board_id": bson.M{"$in": boardIDs}},
		}}
	}
	return s.find(ctx, filter, options.Find().SetSort(newestFirst).SetLimit(limit))
}

// ByUser pages through a user's posts, newest first. page is 1-based.
func (s *Store) ByUser(ctx context.Context, userID primitive.ObjectID, limit, page int64) ([]models.Post, error) {
	return s.find(ctx, bson.M{"user_id": userID}, storeutil.Paginate(limit, page).SetSort(newestFirst))
}

// ByBoard returns a board's posts, newest first.
func (s *Store) ByBoard(ctx context.Context, boardID primitive.ObjectID, limit int64) ([]models.Post, error) {
	return s.find(ctx, bson.M{"board_id": boardID}, options.Find().SetSort(newestFirst).SetLimit(limit))
}

// ByHashtag returns posts tagged with tag, which must already be lowercased.
func (s *Store) ByHashtag(ctx context.Context, tag string, limit int64) ([]models.Post, error) {
	return s.find(ctx, bson.M{"hashtags": tag}, options.Find().SetSort(newestFirst).SetLimit(limit))
}

// TopLiked returns the most liked posts.
func (s *Store) TopLiked(ctx context.Context, limit int64) ([]models.Post, error) {
	sort := bson.D{{Key: "like_count", Value: -1}, {Key: "created_at", Value: -1}}
	return s.find(ctx, bson.M{}, options.Find().SetSort(sort).SetLimit(limit))
}

// RecentHashtags returns the tag lists of the newest posts, one per post.
func (s *Store) RecentHashtags(ctx context.Context, limit int64) ([][]string, error) {
	opts := options.Find().
		SetSort(newestFirst).
		SetLimit(limit).
		SetProjection(bson.M{"hashtags": 1})
	posts, err := s.find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	out := make([][]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Hashtags)
	}
	return out, nil
}

// CountByUser returns how many posts the user has authored.
func (s *Store) CountByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"user_id": userID})
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Post, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	posts := []models.Post{}
	if err := cur.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}
