// Package streaktracker records qualifying activities: it advances the
// user's streak and appends the activity to the activity log.
package streaktracker

import (
	"context"
	"time"

	"github.com/dalemusser/pinboard/internal/app/store/activity"
	streakstore "github.com/dalemusser/pinboard/internal/app/store/streaks"
	"github.com/dalemusser/pinboard/internal/domain/models"
	"github.com/dalemusser/pinboard/internal/domain/streak"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Streaks is the persistence a Tracker needs. *streakstore.Store
// satisfies it.
type Streaks interface {
	Get(ctx context.Context, userID primitive.ObjectID) (*models.StreakRecord, error)
	RecordActivity(ctx context.Context, userID primitive.ObjectID, now time.Time) (models.StreakRecord, streak.Outcome, error)
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	Rank(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

// Tracker is safe for concurrent use.
type Tracker struct {
	streaks Streaks
	events  *activity.Store
	log     *zap.Logger
	now     func() time.Time
}

func New(db *mongo.Database, logger *zap.Logger) *Tracker {
	return NewWithStreaks(db, streakstore.New(db), logger)
}

// NewWithStreaks builds a Tracker over the given streak persistence; the
// activity log still lives in db.
func NewWithStreaks(db *mongo.Database, streaks Streaks, logger *zap.Logger) *Tracker {
	return &Tracker{
		streaks: streaks,
		events:  activity.New(db),
		log:     logger,
		now:     time.Now,
	}
}

// Record applies one qualifying activity of eventType at the current time.
// Failures are logged here; callers whose primary action already succeeded
// can ignore the error.
func (t *Tracker) Record(ctx context.Context, userID primitive.ObjectID, eventType string, ref *primitive.ObjectID) (models.StreakRecord, streak.Outcome, error) {
	now := t.now()

	rec, outcome, err := t.streaks.RecordActivity(ctx, userID, now)
	if err != nil {
		t.log.Warn("streak update failed",
			zap.String("user_id", userID.Hex()),
			zap.String("event", eventType),
			zap.Error(err))
		return rec, outcome, err
	}

	ev := activity.Event{
		UserID:        userID,
		EventType:     eventType,
		Timestamp:     now.UTC(),
		Outcome:       outcome.String(),
		CurrentStreak: rec.CurrentStreak,
		RefID:         ref,
	}
	if err := t.events.Create(ctx, ev); err != nil {
		t.log.Warn("activity log write failed",
			zap.String("user_id", userID.Hex()),
			zap.String("event", eventType),
			zap.Error(err))
	}

	if outcome == streak.Reset {
		t.log.Debug("streak reset",
			zap.String("user_id", userID.Hex()),
			zap.Int("longest", rec.LongestStreak))
	}
	return rec, outcome, nil
}

// Current returns the user's record as of now. A user with no record, or
// whose streak has lapsed, is reported with a current streak of 0.
func (t *Tracker) Current(ctx context.Context, userID primitive.ObjectID) (models.StreakRecord, error) {
	rec, err := t.streaks.Get(ctx, userID)
	if err == mongo.ErrNoDocuments {
		return models.StreakRecord{UserID: userID}, nil
	}
	if err != nil {
		return models.StreakRecord{}, err
	}
	if !streak.Alive(*rec, t.now()) {
		rec.CurrentStreak = 0
	}
	return *rec, nil
}

// Leaderboard returns the top limit records joined with user summaries.
// Entries carry the stored current streak, which Current would report as 0
// once it has lapsed.
func (t *Tracker) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	return t.streaks.Leaderboard(ctx, limit)
}

// Rank returns the user's 1-based leaderboard position, or 0 without a
// record.
func (t *Tracker) Rank(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return t.streaks.Rank(ctx, userID)
}

// Recent returns the user's latest logged activities.
func (t *Tracker) Recent(ctx context.Context, userID primitive.ObjectID, limit int64) ([]activity.Event, error) {
	return t.events.GetByUser(ctx, userID, limit)
}
