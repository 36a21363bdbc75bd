// Package streak holds the day-counting rules for activity streaks.
//
// Days are UTC calendar dates. Two activities thirty hours apart that
// straddle a single midnight are consecutive; two activities two hours
// apart that straddle two midnights are not.
package streak

import (
	"time"

	"github.com/dalemusser/pinboard/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Outcome reports what a qualifying activity did to a record.
type Outcome int

const (
	// Unchanged means the activity fell on the already-counted day.
	Unchanged Outcome = iota
	// Started means this was the user's first qualifying activity.
	Started
	// Extended means the activity landed on the day after the last one.
	Extended
	// Reset means at least one full day was missed.
	Reset
)

func (o Outcome) String() string {
	switch o {
	case Started:
		return "started"
	case Extended:
		return "extended"
	case Reset:
		return "reset"
	default:
		return "unchanged"
	}
}

// Mutates reports whether the outcome requires a write.
func (o Outcome) Mutates() bool {
	return o != Unchanged
}

// Date truncates t to midnight of its UTC calendar date.
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of UTC calendar-day boundaries crossed
// going from a to b. It is negative when b is on an earlier date.
func DaysBetween(a, b time.Time) int {
	return int(Date(b).Sub(Date(a)).Hours() / 24)
}

// Start returns the record created by a user's first qualifying activity.
func Start(userID primitive.ObjectID, now time.Time) models.StreakRecord {
	now = now.UTC()
	return models.StreakRecord{
		UserID:         userID,
		CurrentStreak:  1,
		LongestStreak:  1,
		LastActiveDate: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Advance applies a qualifying activity at now to rec and returns the new
// record. rec is never modified. An activity dated before the last active
// day is treated like a same-day activity.
func Advance(rec models.StreakRecord, now time.Time) (models.StreakRecord, Outcome) {
	days := DaysBetween(rec.LastActiveDate, now)
	if days <= 0 {
		return rec, Unchanged
	}

	next := rec
	next.LastActiveDate = now.UTC()
	next.UpdatedAt = now.UTC()

	if days == 1 {
		next.CurrentStreak = rec.CurrentStreak + 1
		if next.CurrentStreak > next.LongestStreak {
			next.LongestStreak = next.CurrentStreak
		}
		return next, Extended
	}

	next.CurrentStreak = 1
	if next.LongestStreak < 1 {
		next.LongestStreak = 1
	}
	return next, Reset
}

// Alive reports whether the streak still counts as of now: the last
// activity was today or yesterday. Expired streaks are kept in storage
// until the next activity resets them.
func Alive(rec models.StreakRecord, now time.Time) bool {
	d := DaysBetween(rec.LastActiveDate, now)
	return d >= 0 && d <= 1
}
