// internal/app/store/messages/messagestore.go
package messagestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/pinboard/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrSelfMessage is returned when sender and receiver are the same user.
var ErrSelfMessage = errors.New("cannot message yourself")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("messages")}
}

// Send stores a new unread message.
func (s *Store) Send(ctx context.Context, from, to primitive.ObjectID, content string) (models.Message, error) {
	if from == to {
		return models.Message{}, ErrSelfMessage
	}
	m := models.Message{
		ID:         primitive.NewObjectID(),
		SenderID:   from,
		ReceiverID: to,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		return models.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}

func pair(a, b primitive.ObjectID) bson.M {
	return bson.M{"$or": []bson.M{
		{"sender_id": a, "receiver_id": b},
		{"sender_id": b, "receiver_id": a},
	}}
}

// Conversation returns the messages between me and other, oldest first.
func (s *Store) Conversation(ctx context.Context, me, other primitive.ObjectID, limit int64) ([]models.Message, error) {
	// Take the newest limit and flip them so the tail of a long thread shows.
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := s.c.Find(ctx, pair(me, other), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.Message{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// MarkRead marks every message from other to me as read.
func (s *Store) MarkRead(ctx context.Context, me, other primitive.ObjectID) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"sender_id": other, "receiver_id": me, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// UnreadCount counts messages waiting for me.
func (s *Store) UnreadCount(ctx context.Context, me primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"receiver_id": me, "read": false})
}

// Thread is one partner's latest message and unread count, before the
// partner's profile is attached.
type Thread struct {
	PartnerID   primitive.ObjectID `bson:"_id"`
	LastMessage models.Message     `bson:"last"`
	Unread      int                `bson:"unread"`
}

// Threads returns one entry per conversation partner, most recent first.
func (s *Store) Threads(ctx context.Context, me primitive.ObjectID) ([]Thread, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": []bson.M{{"sender_id": me}, {"receiver_id": me}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$sender_id", me}}, "$receiver_id", "$sender_id",
			}},
			"last": bson.M{"$first": "$$ROOT"},
			"unread": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$receiver_id", me}},
					bson.M{"$eq": bson.A{"$read", false}},
				}}, 1, 0,
			}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "last.created_at", Value: -1}, {Key: "last._id", Value: -1}}}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []Thread{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
