package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StreakRecord tracks consecutive days of qualifying activity for one user.
// There is at most one record per user; it is created on the first
// qualifying activity.
type StreakRecord struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID         primitive.ObjectID `bson:"user_id" json:"userId"`
	CurrentStreak  int                `bson:"current_streak" json:"currentStreak"`
	LongestStreak  int                `bson:"longest_streak" json:"longestStreak"`
	LastActiveDate time.Time          `bson:"last_active_date" json:"lastActiveDate"`
	CreatedAt      time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updatedAt"`
}

// LeaderboardEntry is a streak record joined with its owner's public card.
type LeaderboardEntry struct {
	StreakRecord `bson:",inline"`
	User         UserSummary `bson:"user" json:"user"`
}
