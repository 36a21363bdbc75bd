package streak

import (
	"testing"
	"time"

	"github.com/dalemusser/pinboard/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func record(current, longest int, last string) models.StreakRecord {
	return models.StreakRecord{
		UserID:         primitive.NewObjectID(),
		CurrentStreak:  current,
		LongestStreak:  longest,
		LastActiveDate: at(last),
	}
}

func TestDaysBetween(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"same instant", "2024-01-05T10:00:00Z", "2024-01-05T10:00:00Z", 0},
		{"same day far apart", "2024-01-05T00:00:00Z", "2024-01-05T23:59:59Z", 0},
		{"thirty hours across one midnight", "2024-01-05T00:30:00Z", "2024-01-06T06:30:00Z", 1},
		{"two hours across one midnight", "2024-01-05T23:00:00Z", "2024-01-06T01:00:00Z", 1},
		{"gap", "2024-01-06T23:00:00Z", "2024-01-09T01:00:00Z", 3},
		{"backwards", "2024-01-06T00:00:00Z", "2024-01-05T23:00:00Z", -1},
		{"non-UTC input", "2024-01-05T23:30:00-05:00", "2024-01-06T12:00:00Z", 0},
		{"leap day", "2024-02-28T12:00:00Z", "2024-03-01T12:00:00Z", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysBetween(at(tt.a), at(tt.b)))
		})
	}
}

func TestStart(t *testing.T) {
	uid := primitive.NewObjectID()
	now := at("2024-01-05T08:00:00Z")

	rec := Start(uid, now)

	assert.Equal(t, uid, rec.UserID)
	assert.Equal(t, 1, rec.CurrentStreak)
	assert.Equal(t, 1, rec.LongestStreak)
	assert.True(t, rec.LastActiveDate.Equal(now))
}

func TestAdvance_SameDayIsIdempotent(t *testing.T) {
	rec := record(3, 5, "2024-01-05T01:00:00Z")

	next, outcome := Advance(rec, at("2024-01-05T22:00:00Z"))
	assert.Equal(t, Unchanged, outcome)
	assert.False(t, outcome.Mutates())
	assert.Equal(t, rec, next)

	again, outcome := Advance(next, at("2024-01-05T23:59:59Z"))
	assert.Equal(t, Unchanged, outcome)
	assert.Equal(t, rec, again)
}

func TestAdvance_ConsecutiveDayIncrements(t *testing.T) {
	rec := record(3, 5, "2024-01-05T12:00:00Z")
	now := at("2024-01-06T09:00:00Z")

	next, outcome := Advance(rec, now)

	assert.Equal(t, Extended, outcome)
	assert.Equal(t, 4, next.CurrentStreak)
	assert.Equal(t, 5, next.LongestStreak)
	assert.True(t, next.LastActiveDate.Equal(now))
	// input untouched
	assert.Equal(t, 3, rec.CurrentStreak)
}

func TestAdvance_ConsecutiveRaisesLongest(t *testing.T) {
	rec := record(5, 5, "2024-01-05T12:00:00Z")

	next, outcome := Advance(rec, at("2024-01-06T12:00:00Z"))

	assert.Equal(t, Extended, outcome)
	assert.Equal(t, 6, next.CurrentStreak)
	assert.Equal(t, 6, next.LongestStreak)
}

func TestAdvance_GapResets(t *testing.T) {
	rec := record(3, 5, "2024-01-05T12:00:00Z")
	now := at("2024-01-07T00:00:01Z")

	next, outcome := Advance(rec, now)

	assert.Equal(t, Reset, outcome)
	assert.Equal(t, 1, next.CurrentStreak)
	assert.Equal(t, 5, next.LongestStreak)
	assert.True(t, next.LastActiveDate.Equal(now))
}

func TestAdvance_EarlierDateIsIgnored(t *testing.T) {
	rec := record(4, 4, "2024-01-05T12:00:00Z")

	next, outcome := Advance(rec, at("2024-01-03T12:00:00Z"))

	assert.Equal(t, Unchanged, outcome)
	assert.Equal(t, rec, next)
}

func TestAdvance_Scenario(t *testing.T) {
	rec := record(10, 10, "2024-01-05T15:00:00Z")

	rec, outcome := Advance(rec, at("2024-01-06T23:00:00Z"))
	require.Equal(t, Extended, outcome)
	assert.Equal(t, 11, rec.CurrentStreak)
	assert.Equal(t, 11, rec.LongestStreak)
	assert.True(t, Date(rec.LastActiveDate).Equal(at("2024-01-06T00:00:00Z")))

	rec, outcome = Advance(rec, at("2024-01-09T01:00:00Z"))
	require.Equal(t, Reset, outcome)
	assert.Equal(t, 1, rec.CurrentStreak)
	assert.Equal(t, 11, rec.LongestStreak)
	assert.True(t, Date(rec.LastActiveDate).Equal(at("2024-01-09T00:00:00Z")))
}

func TestAdvance_LongestNeverDecreases(t *testing.T) {
	rec := Start(primitive.NewObjectID(), at("2024-01-01T10:00:00Z"))
	days := []string{
		"2024-01-01T20:00:00Z", "2024-01-02T10:00:00Z", "2024-01-03T10:00:00Z",
		"2024-01-06T10:00:00Z", "2024-01-07T10:00:00Z", "2024-01-20T10:00:00Z",
		"2024-01-21T00:00:00Z", "2024-01-22T00:00:00Z", "2024-01-23T00:00:00Z",
	}

	prevLongest := rec.LongestStreak
	for _, d := range days {
		rec, _ = Advance(rec, at(d))
		assert.GreaterOrEqual(t, rec.LongestStreak, prevLongest, "at %s", d)
		assert.GreaterOrEqual(t, rec.LongestStreak, rec.CurrentStreak, "at %s", d)
		assert.GreaterOrEqual(t, rec.CurrentStreak, 1, "at %s", d)
		prevLongest = rec.LongestStreak
	}
	assert.Equal(t, 4, rec.CurrentStreak)
	assert.Equal(t, 4, rec.LongestStreak)
}

func TestAlive(t *testing.T) {
	rec := record(2, 2, "2024-01-05T23:00:00Z")

	assert.True(t, Alive(rec, at("2024-01-05T23:30:00Z")))
	assert.True(t, Alive(rec, at("2024-01-06T23:59:00Z")))
	assert.False(t, Alive(rec, at("2024-01-07T00:00:00Z")))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "started", Started.String())
	assert.Equal(t, "extended", Extended.String())
	assert.Equal(t, "reset", Reset.String())
	assert.Equal(t, "unchanged", Unchanged.String())
}
