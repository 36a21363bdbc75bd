// internal/app/store/activity/store.go
package activity

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Event types. Each one is a qualifying activity for the streak.
const (
	EventPostCreated  = "post_created"
	EventStreakViewed = "streak_viewed"
)

// Event is one qualifying activity and what it did to the user's streak.
type Event struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"userId"`
	EventType string             `bson:"event_type" json:"type"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`

	// Outcome is the streak transition ("started", "extended", ...).
	Outcome       string `bson:"outcome,omitempty" json:"outcome,omitempty"`
	CurrentStreak int    `bson:"current_streak,omitempty" json:"currentStreak,omitempty"`

	// RefID points at the object involved, e.g. the created post.
	RefID *primitive.ObjectID `bson:"ref_id,omitempty" json:"refId,omitempty"`
}

// Label is the human-readable form of the event type.
func (e Event) Label() string {
	switch e.EventType {
	case EventPostCreated:
		return "Created a post"
	case EventStreakViewed:
		return "Checked streak"
	default:
		return e.EventType
	}
}

// Store manages activity events. Events expire through the TTL index on
// timestamp.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("activity_events")}
}

// Create records an event, stamping the id and timestamp when unset.
func (s *Store) Create(ctx context.Context, event Event) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, event)
	return err
}

// GetByUser retrieves a user's most recent events.
func (s *Store) GetByUser(ctx context.Context, userID primitive.ObjectID, limit int64) ([]Event, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit)

	cur, err := s.c.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	events := []Event{}
	if err := cur.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// CountByUserInTimeRange counts a user's events of one type in [start, end].
func (s *Store) CountByUserInTimeRange(ctx context.Context, userID primitive.ObjectID, eventType string, start, end time.Time) (int64, error) {
	filter := bson.M{
		"user_id":    userID,
		"event_type": eventType,
		"timestamp": bson.M{
			"$gte": start,
			"$lte": end,
		},
	}
	return s.c.CountDocuments(ctx, filter)
}
