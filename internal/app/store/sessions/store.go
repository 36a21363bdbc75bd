// Package sessions tracks signed-in sessions server-side. The cookie carries
// only a token; this store records when the session began and ended and
// lets other sessions be closed, e.g. after a password change.
package sessions

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Session end reasons
const (
	EndReasonLogout          = "logout"
	EndReasonInactive        = "inactive"
	EndReasonPasswordChanged = "password_changed"
	EndReasonRevoked         = "revoked"
)

// Session is a tracked sign-in.
type Session struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Token     string             `bson:"token"`
	UserID    primitive.ObjectID `bson:"user_id"`
	IPAddress string             `bson:"ip_address,omitempty"`
	UserAgent string             `bson:"user_agent,omitempty"`

	LoginAt      time.Time  `bson:"login_at"`
	LogoutAt     *time.Time `bson:"logout_at,omitempty"` // nil while active
	LastActivity time.Time  `bson:"last_activity"`
	EndReason    string     `bson:"end_reason,omitempty"`
	DurationSecs int64      `bson:"duration_secs,omitempty"` // set on close

	ExpiresAt time.Time `bson:"expires_at"` // TTL

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Active reports whether the session is open and unexpired at now.
func (s Session) Active(now time.Time) bool {
	return s.LogoutAt == nil && now.Before(s.ExpiresAt)
}

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("sessions")}
}

// Create stores a new session, filling in the id and timestamps.
func (s *Store) Create(ctx context.Context, session Session) error {
	if session.ID.IsZero() {
		session.ID = primitive.NewObjectID()
	}
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now
	if session.LoginAt.IsZero() {
		session.LoginAt = now
	}
	if session.LastActivity.IsZero() {
		session.LastActivity = now
	}
	_, err := s.c.InsertOne(ctx, session)
	return err
}

// GetByToken returns an open, unexpired session, or mongo.ErrNoDocuments.
func (s *Store) GetByToken(ctx context.Context, token string) (*Session, error) {
	filter := activeFilter(time.Now())
	filter["token"] = token
	var session Session
	if err := s.c.FindOne(ctx, filter).Decode(&session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Touch moves an open session's last activity to now.
func (s *Store) Touch(ctx context.Context, token string) error {
	now := time.Now()
	_, err := s.c.UpdateOne(ctx,
		bson.M{"token": token, "logout_at": nil},
		bson.M{"$set": bson.M{"last_activity": now, "updated_at": now}},
	)
	return err
}

// Close ends a session and records its duration. The record is kept for
// the audit trail until it expires.
func (s *Store) Close(ctx context.Context, token, reason string) error {
	var session Session
	if err := s.c.FindOne(ctx, bson.M{"token": token}).Decode(&session); err != nil {
		return err
	}
	if session.LogoutAt != nil {
		return nil
	}

	now := time.Now()
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": session.ID, "logout_at": nil}, bson.M{
		"$set": bson.M{
			"logout_at":     now,
			"end_reason":    reason,
			"duration_secs": int64(now.Sub(session.LoginAt).Seconds()),
			"updated_at":    now,
		},
	})
	return err
}

// closeWhere ends every open session matching filter.
func (s *Store) closeWhere(ctx context.Context, filter bson.M, reason string) (*mongo.UpdateResult, error) {
	filter["logout_at"] = nil
	now := time.Now()
	return s.c.UpdateMany(ctx, filter, bson.M{"$set": bson.M{
		"logout_at":  now,
		"end_reason": reason,
		"updated_at": now,
	}})
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]Session, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []Session{}
	err = cur.All(ctx, &out)
	return out, err
}

// activeFilter matches open, unexpired sessions.
func activeFilter(now time.Time) bson.M {
	return bson.M{"logout_at": nil, "expires_at": bson.M{"$gt": now}}
}

var byRecentActivity = bson.D{{Key: "last_activity", Value: -1}}

// CloseByID ends one of userID's open sessions. It returns
// mongo.ErrNoDocuments when no such open session belongs to the user.
func (s *Store) CloseByID(ctx context.Context, id, userID primitive.ObjectID, reason string) error {
	res, err := s.closeWhere(ctx, bson.M{"_id": id, "user_id": userID}, reason)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// CloseByUserExcept closes every open session of the user except keepToken
// and returns how many were closed.
func (s *Store) CloseByUserExcept(ctx context.Context, userID primitive.ObjectID, keepToken, reason string) (int64, error) {
	res, err := s.closeWhere(ctx, bson.M{"user_id": userID, "token": bson.M{"$ne": keepToken}}, reason)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// CloseInactive closes open sessions idle for longer than threshold.
func (s *Store) CloseInactive(ctx context.Context, threshold time.Duration) (int64, error) {
	res, err := s.closeWhere(ctx, bson.M{"last_activity": bson.M{"$lt": time.Now().Add(-threshold)}}, EndReasonInactive)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// ListActiveByUser returns the user's open sessions, most recently used first.
func (s *Store) ListActiveByUser(ctx context.Context, userID primitive.ObjectID) ([]Session, error) {
	filter := activeFilter(time.Now())
	filter["user_id"] = userID
	return s.find(ctx, filter, options.Find().SetSort(byRecentActivity))
}

// CountActive counts open, unexpired sessions across all users.
func (s *Store) CountActive(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, activeFilter(time.Now()))
}

// ListActive returns up to limit open sessions, most recently active first.
func (s *Store) ListActive(ctx context.Context, limit int64) ([]Session, error) {
	return s.find(ctx, activeFilter(time.Now()), options.Find().SetSort(byRecentActivity).SetLimit(limit))
}

// DeleteExpired removes sessions past their expiry. The TTL index does the
// same eventually; this keeps the collection tidy between TTL passes.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": time.Now()}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
