// internal/app/store/users/userstore.go
package userstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dalemusser/pinboard/internal/app/system/normalize"
	"github.com/dalemusser/pinboard/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

var (
	// ErrDuplicateUsername is returned when the handle is already taken.
	ErrDuplicateUsername = errors.New("username is already taken")
	// ErrDuplicateEmail is returned when the email is already registered.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
	errBadRole        = errors.New("invalid role")
	errBadStatus      = errors.New(`status must be "active"|"disabled"`)
)

// dupError maps a duplicate-key error to the sentinel for the index it hit.
func dupError(err error) error {
	if strings.Contains(err.Error(), "uniq_users_email") {
		return ErrDuplicateEmail
	}
	return ErrDuplicateUsername
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByIDs loads multiple users by their ObjectIDs.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Summaries returns public cards for the given ids keyed by id. Unknown ids
// are absent from the map.
func (s *Store) Summaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserSummary, error) {
	out := make(map[primitive.ObjectID]models.UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	opts := options.Find().SetProjection(bson.M{"full_name": 1, "username": 1, "image_url": 1})
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var us models.UserSummary
		if err := cur.Decode(&us); err != nil {
			return nil, err
		}
		out[us.ID] = us
	}
	return out, cur.Err()
}

// GetByUsername looks up a user by case-insensitive handle.
// Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	folded := text.Fold(normalize.Username(username))
	if err := s.c.FindOne(ctx, bson.M{"username_ci": folded}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail looks up a user by email address (case-insensitive).
// Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByLogin resolves what a user typed on the login form: an email when it
// contains "@", otherwise a username.
func (s *Store) GetByLogin(ctx context.Context, identifier string) (*models.User, error) {
	if strings.Contains(identifier, "@") && !strings.HasPrefix(strings.TrimSpace(identifier), "@") {
		return s.GetByEmail(ctx, identifier)
	}
	return s.GetByUsername(ctx, identifier)
}

// Create inserts a new user after normalizing & validating fields.
// Returns ErrDuplicateUsername or ErrDuplicateEmail on conflicts.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.FullName = normalize.Name(u.FullName)
	u.FullNameCI = text.Fold(u.FullName)
	u.Username = normalize.Username(u.Username)
	u.UsernameCI = text.Fold(u.Username)
	u.Email = normalize.Email(u.Email)

	if u.Role == "" {
		u.Role = models.RoleMember
	}
	if u.Status == "" {
		u.Status = models.StatusActive
	}
	if !models.IsValidRole(u.Role) {
		return models.User{}, errBadRole
	}
	if !models.IsValidStatus(u.Status) {
		return models.User{}, errBadStatus
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, dupError(err)
		}
		return models.User{}, err
	}
	return u, nil
}

// Exists reports whether any account already uses the email or the handle.
func (s *Store) Exists(ctx context.Context, email, username string) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"$or": []bson.M{
		{"email": normalize.Email(email)},
		{"username_ci": text.Fold(normalize.Username(username))},
	}})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UsernameTakenByOther reports whether another user already owns username.
func (s *Store) UsernameTakenByOther(ctx context.Context, username string, self primitive.ObjectID) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{
		"username_ci": text.Fold(normalize.Username(username)),
		"_id":         bson.M{"$ne": self},
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// AvailableUsername returns base, or base with a numeric suffix, that no
// user owns yet. base is reduced to handle characters first.
func (s *Store) AvailableUsername(ctx context.Context, base string) (string, error) {
	base = handleChars.ReplaceAllString(base, "")
	if len(base) > 16 {
		base = base[:16]
	}
	for len(base) < 3 {
		base += "_"
	}
	candidate := base
	for i := 1; i < 1000; i++ {
		n, err := s.c.CountDocuments(ctx, bson.M{"username_ci": text.Fold(candidate)})
		if err != nil {
			return "", err
		}
		if n == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i+1)
	}
	return "", ErrDuplicateUsername
}

var handleChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// ProfileUpdate holds the optional profile fields. nil means unchanged.
type ProfileUpdate struct {
	FullName *string
	Username *string
	Bio      *string
	ImageURL *string
}

// UpdateProfile applies upd and returns the updated user.
// Returns ErrDuplicateUsername if the handle was taken concurrently.
func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, upd ProfileUpdate) (*models.User, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.FullName != nil {
		name := normalize.Name(*upd.FullName)
		set["full_name"] = name
		set["full_name_ci"] = text.Fold(name)
	}
	if upd.Username != nil {
		un := normalize.Username(*upd.Username)
		set["username"] = un
		set["username_ci"] = text.Fold(un)
	}
	if upd.Bio != nil {
		set["bio"] = *upd.Bio
	}
	if upd.ImageURL != nil {
		set["image_url"] = *upd.ImageURL
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u models.User
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&u)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return nil, dupError(err)
		}
		return nil, err
	}
	return &u, nil
}

// SetAvatar records an uploaded avatar. url is what templates render and
// path is the storage key kept for later deletion.
func (s *Store) SetAvatar(ctx context.Context, id primitive.ObjectID, path, url string) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"image_path": path,
		"image_url":  url,
		"updated_at": time.Now().UTC(),
	}})
	return err
}

// UpdatePassword stores a new bcrypt hash.
func (s *Store) UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"password_hash": passwordHash,
		"updated_at":    time.Now().UTC(),
	}})
	return err
}

// UpdateThemePreference stores the user's colour theme.
func (s *Store) UpdateThemePreference(ctx context.Context, id primitive.ObjectID, theme string) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"theme_preference": theme,
		"updated_at":       time.Now().UTC(),
	}})
	return err
}

// AdjustFollowCounts moves the follower/following counters of a follow edge
// by delta. Call it inside the same transaction as the edge write.
func (s *Store) AdjustFollowCounts(ctx context.Context, followerID, followingID primitive.ObjectID, delta int) error {
	if _, err := s.c.UpdateOne(ctx, bson.M{"_id": followerID}, bson.M{"$inc": bson.M{"following_count": delta}}); err != nil {
		return err
	}
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": followingID}, bson.M{"$inc": bson.M{"follower_count": delta}})
	return err
}

// AdjustPostCount moves a user's post counter by delta.
func (s *Store) AdjustPostCount(ctx context.Context, id primitive.ObjectID, delta int) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"post_count": delta}})
	return err
}

// Search matches q as a case-insensitive substring of the name, handle or
// email of active users.
func (s *Store) Search(ctx context.Context, q string, limit int64) ([]models.User, error) {
	q = strings.TrimSpace(q)
	if q == "" || limit <= 0 {
		return nil, nil
	}
	folded := regexp.QuoteMeta(text.Fold(q))
	lower := regexp.QuoteMeta(strings.ToLower(q))
	filter := bson.M{
		"status": models.StatusActive,
		"$or": []bson.M{
			{"full_name_ci": bson.M{"$regex": folded}},
			{"username_ci": bson.M{"$regex": folded}},
			{"email": bson.M{"$regex": lower}},
		},
	}
	opts := options.Find().SetLimit(limit).SetSort(bson.D{{Key: "follower_count", Value: -1}, {Key: "_id", Value: 1}})
	return s.find(ctx, filter, opts)
}

// TopByFollowers returns the most-followed active users.
func (s *Store) TopByFollowers(ctx context.Context, limit int64) ([]models.User, error) {
	if limit <= 0 {
		return nil, nil
	}
	opts := options.Find().SetLimit(limit).SetSort(bson.D{{Key: "follower_count", Value: -1}, {Key: "_id", Value: 1}})
	return s.find(ctx, bson.M{"status": models.StatusActive}, opts)
}

// SetStatus enables or disables an account.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, st string) error {
	st = normalize.Status(st)
	if !models.IsValidStatus(st) {
		return errBadStatus
	}
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"status": st, "updated_at": time.Now().UTC()}})
	return err
}

// SetRole changes a user's site role.
func (s *Store) SetRole(ctx context.Context, id primitive.ObjectID, role string) error {
	role = normalize.Role(role)
	if !models.IsValidRole(role) {
		return errBadRole
	}
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"role": role, "updated_at": time.Now().UTC()}})
	return err
}

// ListFilter narrows List. Query matches name, handle or email like Search.
type ListFilter struct {
	Query  string
	Status string
	Limit  int64
	Offset int64
}

// List pages through all users, newest first, with the total match count.
// Unlike Search it includes disabled accounts.
func (s *Store) List(ctx context.Context, f ListFilter) ([]models.User, int64, error) {
	filter := bson.M{}
	if q := strings.TrimSpace(f.Query); q != "" {
		filter["$or"] = []bson.M{
			{"full_name_ci": bson.M{"$regex": regexp.QuoteMeta(text.Fold(q))}},
			{"username_ci": bson.M{"$regex": regexp.QuoteMeta(text.Fold(q))}},
			{"email": bson.M{"$regex": regexp.QuoteMeta(strings.ToLower(q))}},
		}
	}
	if st := normalize.Status(f.Status); f.Status != "" && models.IsValidStatus(st) {
		filter["status"] = st
	}

	total, err := s.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	if f.Offset > 0 {
		opts.SetSkip(f.Offset)
	}
	users, err := s.find(ctx, filter, opts)
	return users, total, err
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.User, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}
