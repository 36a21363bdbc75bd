// internal/app/store/comments/commentstore.go
package commentstore

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/pinboard/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("comments")}
}

// Create inserts a comment. The caller adjusts the post's comment counter.
func (s *Store) Create(ctx context.Context, postID, userID primitive.ObjectID, content string) (models.Comment, error) {
	c := models.Comment{
		ID:        primitive.NewObjectID(),
		PostID:    postID,
		UserID:    userID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, c); err != nil {
		return models.Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return c, nil
}

// ListByPosts returns the comments of each post, oldest first, keyed by post.
func (s *Store) ListByPosts(ctx context.Context, postIDs []primitive.ObjectID) (map[primitive.ObjectID][]models.Comment, error) {
	out := make(map[primitive.ObjectID][]models.Comment, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"post_id": bson.M{"$in": postIDs}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var c models.Comment
		if err := cur.Decode(&c); err != nil {
			return nil, err
		}
		out[c.PostID] = append(out[c.PostID], c)
	}
	return out, cur.Err()
}
