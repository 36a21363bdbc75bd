// internal/app/store/boards/boardstore.go
package boardstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/pinboard/internal/app/system/txn"
	"github.com/dalemusser/pinboard/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/gosimple/slug"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when a board does not exist.
	ErrNotFound = errors.New("board not found")
	// ErrLastAdmin is returned when the only admin tries to leave.
	ErrLastAdmin = errors.New("the last admin cannot leave the board")
)

// slugAttempts bounds retries when concurrent creates race for a slug.
const slugAttempts = 5

type Store struct {
	db      *mongo.Database
	log     *zap.Logger
	c       *mongo.Collection
	members *mongo.Collection
}

func New(db *mongo.Database, logger *zap.Logger) *Store {
	return &Store{
		db:      db,
		log:     logger,
		c:       db.Collection("boards"),
		members: db.Collection("board_members"),
	}
}

// Create inserts a board with a unique slug derived from its name and makes
// the creator its admin.
func (s *Store) Create(ctx context.Context, name, description string, creator primitive.ObjectID) (models.Board, error) {
	for attempt := 0; attempt < slugAttempts; attempt++ {
		sl, err := s.availableSlug(ctx, name)
		if err != nil {
			return models.Board{}, err
		}
		now := time.Now().UTC()
		b := models.Board{
			ID:          primitive.NewObjectID(),
			Name:        name,
			NameCI:      text.Fold(name),
			Slug:        sl,
			Description: description,
			CreatorID:   creator,
			MemberCount: 1,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		err = txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
			if _, err := s.c.InsertOne(ctx, b); err != nil {
				return err
			}
			m := models.BoardMember{
				ID:       primitive.NewObjectID(),
				BoardID:  b.ID,
				UserID:   creator,
				Role:     models.BoardRoleAdmin,
				JoinedAt: now,
			}
			if _, err := s.members.InsertOne(ctx, m); err != nil {
				return fmt.Errorf("insert board admin: %w", err)
			}
			return nil
		})
		if err == nil {
			return b, nil
		}
		if !wafflemongo.IsDup(err) {
			return models.Board{}, fmt.Errorf("create board: %w", err)
		}
	}
	return models.Board{}, errors.New("create board: could not allocate a unique slug")
}

// availableSlug returns slug.Make(name), or that slug with the lowest free
// numeric suffix ("-2", "-3", ...).
func (s *Store) availableSlug(ctx context.Context, name string) (string, error) {
	base := slug.Make(name)
	if base == "" {
		base = "board"
	}
	vals, err := s.c.Distinct(ctx, "slug", bson.M{
		"slug": bson.M{"$regex": "^" + regexp.QuoteMeta(base) + `(-\d+)?$`},
	})
	if err != nil {
		return "", err
	}
	taken := make(map[string]bool, len(vals))
	for _, v := range vals {
		if sv, ok := v.(string); ok {
			taken[sv] = true
		}
	}
	if !taken[base] {
		return base, nil
	}
	for n := 2; ; n++ {
		cand := base + "-" + strconv.Itoa(n)
		if !taken[cand] {
			return cand, nil
		}
	}
}

func (s *Store) one(ctx context.Context, filter bson.M) (*models.Board, error) {
	var b models.Board
	err := s.c.FindOne(ctx, filter).Decode(&b)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Board, error) {
	return s.one(ctx, bson.M{"_id": id})
}

func (s *Store) GetBySlug(ctx context.Context, sl string) (*models.Board, error) {
	return s.one(ctx, bson.M{"slug": strings.ToLower(sl)})
}

// GetBySlugOrID resolves a board path segment, trying the slug first.
func (s *Store) GetBySlugOrID(ctx context.Context, key string) (*models.Board, error) {
	b, err := s.GetBySlug(ctx, key)
	if !errors.Is(err, ErrNotFound) {
		return b, err
	}
	oid, perr := primitive.ObjectIDFromHex(key)
	if perr != nil {
		return nil, ErrNotFound
	}
	return s.GetByID(ctx, oid)
}

// List returns boards newest first.
func (s *Store) List(ctx context.Context, limit int64) ([]models.Board, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	return s.find(ctx, bson.M{}, opts)
}

// TopByMembers returns the boards with the most members.
func (s *Store) TopByMembers(ctx context.Context, limit int64) ([]models.Board, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "member_count", Value: -1}, {Key: "created_at", Value: -1}}).
		SetLimit(limit)
	return s.find(ctx, bson.M{}, opts)
}

// Search matches q as a case-insensitive substring of name or description.
func (s *Store) Search(ctx context.Context, q string, limit int64) ([]models.Board, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []models.Board{}, nil
	}
	rx := primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
	filter := bson.M{"$or": []bson.M{{"name": rx}, {"description": rx}}}
	opts := options.Find().SetSort(bson.D{{Key: "member_count", Value: -1}}).SetLimit(limit)
	return s.find(ctx, filter, opts)
}

// IncPostCount moves a board's post counter by delta.
func (s *Store) IncPostCount(ctx context.Context, id primitive.ObjectID, delta int) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"post_count": delta}})
	return err
}

// ToggleMembership joins the board, or leaves it if the user is a member.
// It reports whether the user is a member afterwards.
func (s *Store) ToggleMembership(ctx context.Context, boardID, userID primitive.ObjectID) (bool, error) {
	if _, err := s.GetByID(ctx, boardID); err != nil {
		return false, err
	}

	var joined bool
	err := txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		var m models.BoardMember
		err := s.members.FindOne(ctx, bson.M{"board_id": boardID, "user_id": userID}).Decode(&m)
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			m = models.BoardMember{
				ID:       primitive.NewObjectID(),
				BoardID:  boardID,
				UserID:   userID,
				Role:     models.BoardRoleMember,
				JoinedAt: time.Now().UTC(),
			}
			if _, err := s.members.InsertOne(ctx, m); err != nil {
				return err
			}
			joined = true
			return s.bumpMembers(ctx, boardID, 1)
		case err != nil:
			return err
		}

		if m.Role == models.BoardRoleAdmin {
			admins, err := s.members.CountDocuments(ctx, bson.M{"board_id": boardID, "role": models.BoardRoleAdmin})
			if err != nil {
				return err
			}
			if admins <= 1 {
				return ErrLastAdmin
			}
		}
		if _, err := s.members.DeleteOne(ctx, bson.M{"_id": m.ID}); err != nil {
			return err
		}
		joined = false
		return s.bumpMembers(ctx, boardID, -1)
	})
	if err != nil && wafflemongo.IsDup(err) {
		return true, nil
	}
	return joined, err
}

func (s *Store) bumpMembers(ctx context.Context, id primitive.ObjectID, delta int) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$inc": bson.M{"member_count": delta},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	return err
}

// IsMember reports whether userID belongs to boardID.
func (s *Store) IsMember(ctx context.Context, boardID, userID primitive.ObjectID) (bool, error) {
	n, err := s.members.CountDocuments(ctx, bson.M{"board_id": boardID, "user_id": userID})
	return n > 0, err
}

// MemberBoardIDs lists the boards userID belongs to.
func (s *Store) MemberBoardIDs(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	vals, err := s.members.Distinct(ctx, "board_id", bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	out := make([]primitive.ObjectID, 0, len(vals))
	for _, v := range vals {
		if oid, ok := v.(primitive.ObjectID); ok {
			out = append(out, oid)
		}
	}
	return out, nil
}

// Members lists a board's members in join order.
func (s *Store) Members(ctx context.Context, boardID primitive.ObjectID) ([]models.BoardMember, error) {
	opts := options.Find().SetSort(bson.D{{Key: "joined_at", Value: 1}})
	cur, err := s.members.Find(ctx, bson.M{"board_id": boardID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.BoardMember{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByIDs loads boards keyed by id.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Board, error) {
	out := make(map[primitive.ObjectID]models.Board, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	boards, err := s.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find())
	if err != nil {
		return nil, err
	}
	for _, b := range boards {
		out[b.ID] = b
	}
	return out, nil
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Board, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.Board{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
