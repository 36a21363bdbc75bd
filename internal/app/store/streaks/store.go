// internal/app/store/streaks/store.go
package streakstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/pinboard/internal/domain/models"
	"github.com/dalemusser/pinboard/internal/domain/streak"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// maxAttempts bounds how often RecordActivity re-reads after losing a
// compare-and-swap to a concurrent activity of the same user.
const maxAttempts = 4

// ErrContended is returned when concurrent activity for the same user kept
// winning every compare-and-swap.
var ErrContended = errors.New("streak update contended")

// Store persists one StreakRecord per user in the "streaks" collection.
type Store struct {
	c *mongo.Collection

	// beforeSwap, when set, runs between the read and the conditional
	// write of each update attempt.
	beforeSwap func(ctx context.Context, cur models.StreakRecord)
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("streaks")}
}

// Get returns the user's record, or mongo.ErrNoDocuments if the user has
// never had a qualifying activity.
func (s *Store) Get(ctx context.Context, userID primitive.ObjectID) (*models.StreakRecord, error) {
	var rec models.StreakRecord
	if err := s.c.FindOne(ctx, bson.M{"user_id": userID}).Decode(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// RecordActivity applies a qualifying activity at now to the user's record
// and returns the resulting record with what happened to it.
//
// The first activity inserts the record; the unique user_id index turns a
// concurrent first insert into a re-read. Later activities are written with
// a compare-and-swap on the previously read streak and date, so two
// activities racing on the same day count that day once.
func (s *Store) RecordActivity(ctx context.Context, userID primitive.ObjectID, now time.Time) (models.StreakRecord, streak.Outcome, error) {
	// Stored dates have millisecond precision.
	now = now.UTC().Truncate(time.Millisecond)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		cur, err := s.Get(ctx, userID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			rec := streak.Start(userID, now)
			rec.ID = primitive.NewObjectID()
			if _, err := s.c.InsertOne(ctx, rec); err != nil {
				if wafflemongo.IsDup(err) {
					continue
				}
				return models.StreakRecord{}, streak.Unchanged, fmt.Errorf("insert streak: %w", err)
			}
			return rec, streak.Started, nil
		}
		if err != nil {
			return models.StreakRecord{}, streak.Unchanged, fmt.Errorf("load streak: %w", err)
		}

		next, outcome := streak.Advance(*cur, now)
		if !outcome.Mutates() {
			return *cur, outcome, nil
		}

		if s.beforeSwap != nil {
			s.beforeSwap(ctx, *cur)
		}
		res, err := s.c.UpdateOne(ctx,
			bson.M{
				"_id":              cur.ID,
				"current_streak":   cur.CurrentStreak,
				"last_active_date": cur.LastActiveDate,
			},
			bson.M{"$set": bson.M{
				"current_streak":   next.CurrentStreak,
				"longest_streak":   next.LongestStreak,
				"last_active_date": next.LastActiveDate,
				"updated_at":       next.UpdatedAt,
			}},
		)
		if err != nil {
			return models.StreakRecord{}, streak.Unchanged, fmt.Errorf("update streak: %w", err)
		}
		if res.MatchedCount == 1 {
			return next, outcome, nil
		}
	}
	return models.StreakRecord{}, streak.Unchanged, ErrContended
}

// Leaderboard returns the top limit records by current streak, highest
// first, each joined with its owner's public card. Ties are broken by
// user id ascending. limit <= 0 yields an empty slice.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		return []models.LeaderboardEntry{}, nil
	}

	pipeline := mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "current_streak", Value: -1}, {Key: "user_id", Value: 1}}}},
		{{Key: "$limit", Value: int64(limit)}},
		{{Key: "$lookup", Value: bson.M{
			"from": "users",
			"let":  bson.M{"uid": "$user_id"},
			"pipeline": bson.A{
				bson.M{"$match": bson.M{"$expr": bson.M{"$eq": bson.A{"$_id", "$$uid"}}}},
				bson.M{"$project": bson.M{"full_name": 1, "username": 1, "image_url": 1}},
			},
			"as": "user",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$user", "preserveNullAndEmptyArrays": true}}},
	}

	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	entries := make([]models.LeaderboardEntry, 0, limit)
	if err := cur.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Rank returns the 1-based leaderboard position of the user's current
// streak, or 0 if the user has no record.
func (s *Store) Rank(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	rec, err := s.Get(ctx, userID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	ahead, err := s.c.CountDocuments(ctx, bson.M{"$or": []bson.M{
		{"current_streak": bson.M{"$gt": rec.CurrentStreak}},
		{"current_streak": rec.CurrentStreak, "user_id": bson.M{"$lt": userID}},
	}})
	if err != nil {
		return 0, err
	}
	return ahead + 1, nil
}

// CountActiveSince counts users whose last qualifying activity is at or
// after since.
func (s *Store) CountActiveSince(ctx context.Context, since time.Time) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"last_active_date": bson.M{"$gte": since.UTC()}})
}
