// Package indexes declares every MongoDB index PinBoard relies on and
// reconciles them at startup.
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// index is one desired index. Key fields prefixed with "-" sort descending.
type index struct {
	name   string
	keys   []string
	unique bool
	ttl    time.Duration // expireAfterSeconds; 0 means no TTL
	expiry bool          // TTL driven by the field's own date (expireAfterSeconds: 0)
}

const day = 24 * time.Hour

// schema lists collections in the order they are reconciled.
var schema = []struct {
	coll    string
	indexes []index
}{
	{"users", []index{
		{name: "uniq_users_username", keys: []string{"username_ci"}, unique: true},
		{name: "uniq_users_email", keys: []string{"email"}, unique: true},
		{name: "idx_users_followers", keys: []string{"-follower_count", "_id"}},
		{name: "idx_users_fullnameci", keys: []string{"full_name_ci"}},
	}},
	{"streaks", []index{
		// One record per user; also settles the first-activity insert race.
		{name: "uniq_streaks_user", keys: []string{"user_id"}, unique: true},
		{name: "idx_streaks_leaderboard", keys: []string{"-current_streak", "user_id"}},
		{name: "idx_streaks_last_active", keys: []string{"last_active_date"}},
	}},
	{"posts", []index{
		{name: "idx_posts_created", keys: []string{"-created_at"}},
		{name: "idx_posts_user_created", keys: []string{"user_id", "-created_at"}},
		{name: "idx_posts_board_created", keys: []string{"board_id", "-created_at"}},
		{name: "idx_posts_hashtags_created", keys: []string{"hashtags", "-created_at"}},
		{name: "idx_posts_likes", keys: []string{"-like_count", "-created_at"}},
	}},
	{"comments", []index{
		{name: "idx_comments_post_created", keys: []string{"post_id", "created_at"}},
	}},
	{"likes", []index{
		{name: "uniq_likes_user_post", keys: []string{"user_id", "post_id"}, unique: true},
		{name: "idx_likes_post", keys: []string{"post_id"}},
	}},
	{"reposts", []index{
		{name: "uniq_reposts_user_post", keys: []string{"user_id", "post_id"}, unique: true},
	}},
	{"shares", []index{
		{name: "idx_shares_post_created", keys: []string{"post_id", "-created_at"}},
	}},
	{"follows", []index{
		{name: "uniq_follows_pair", keys: []string{"follower_id", "following_id"}, unique: true},
		{name: "idx_follows_following", keys: []string{"following_id"}},
	}},
	{"boards", []index{
		{name: "uniq_boards_slug", keys: []string{"slug"}, unique: true},
		{name: "idx_boards_created", keys: []string{"-created_at"}},
		{name: "idx_boards_members", keys: []string{"-member_count", "_id"}},
	}},
	{"board_members", []index{
		{name: "uniq_boardmembers_board_user", keys: []string{"board_id", "user_id"}, unique: true},
		{name: "idx_boardmembers_user", keys: []string{"user_id"}},
	}},
	{"messages", []index{
		{name: "idx_messages_pair_created", keys: []string{"sender_id", "receiver_id", "created_at"}},
		{name: "idx_messages_receiver_read", keys: []string{"receiver_id", "read"}},
	}},
	{"oauth_states", []index{
		{name: "uniq_oauth_state", keys: []string{"state"}, unique: true},
		{name: "idx_oauth_expires_ttl", keys: []string{"expires_at"}, expiry: true},
	}},
	{"audit_logs", []index{
		{name: "idx_audit_created", keys: []string{"-created_at"}},
		{name: "idx_audit_category_created", keys: []string{"category", "-created_at"}},
		{name: "idx_audit_user_created", keys: []string{"user_id", "-created_at"}},
		{name: "idx_audit_actor_created", keys: []string{"actor_id", "-created_at"}},
	}},
	{"sessions", []index{
		{name: "idx_session_token", keys: []string{"token"}, unique: true},
		{name: "idx_session_user", keys: []string{"user_id"}},
		{name: "idx_session_ttl", keys: []string{"expires_at"}, expiry: true},
		{name: "idx_session_active", keys: []string{"logout_at", "-last_activity"}},
	}},
	{"activity_events", []index{
		{name: "idx_activity_user", keys: []string{"user_id", "-timestamp"}},
		{name: "idx_activity_ttl", keys: []string{"timestamp"}, ttl: 90 * day},
	}},
	{"rate_limits", []index{
		{name: "uniq_ratelimit_key", keys: []string{"key"}, unique: true},
		{name: "idx_ratelimit_ttl", keys: []string{"last_attempt"}, ttl: day},
	}},
}

// EnsureAll creates missing indexes and rebuilds any whose uniqueness or
// TTL changed. It is safe to run on every start. All failures are
// reported together.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var errs []error
	for _, c := range schema {
		if err := reconcile(ctx, db.Collection(c.coll), c.indexes); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.coll, err))
		}
	}
	return errors.Join(errs...)
}

// present is the subset of listIndexes output compared against index.
type present struct {
	Name               string `bson:"name"`
	Key                bson.D `bson:"key"`
	Unique             bool   `bson:"unique"`
	ExpireAfterSeconds *int32 `bson:"expireAfterSeconds"`
}

func reconcile(ctx context.Context, coll *mongo.Collection, want []index) error {
	have, err := listIndexes(ctx, coll)
	if err != nil {
		return err
	}

	log := zap.L().With(zap.String("collection", coll.Name()))
	var errs []error
	for _, ix := range want {
		model := ix.model()
		sig := signature(model.Keys.(bson.D))

		if cur, ok := have[sig]; ok {
			if cur.Unique == ix.unique && sameTTL(cur.ExpireAfterSeconds, ix.ttlSeconds()) {
				continue
			}
			log.Info("rebuilding index with new options", zap.String("index", cur.Name), zap.String("keys", sig))
			if _, err := coll.Indexes().DropOne(ctx, cur.Name); err != nil {
				errs = append(errs, fmt.Errorf("drop %s: %w", cur.Name, err))
				continue
			}
		}

		start := time.Now()
		if _, err := coll.Indexes().CreateOne(ctx, model); err != nil {
			if ix.unique && mongo.IsDuplicateKeyError(err) {
				err = fmt.Errorf("existing documents violate uniqueness: %w", err)
			}
			errs = append(errs, fmt.Errorf("create %s: %w", ix.name, err))
			continue
		}
		log.Info("index created", zap.String("index", ix.name), zap.String("keys", sig), zap.Duration("took", time.Since(start)))
	}
	return errors.Join(errs...)
}

func listIndexes(ctx context.Context, coll *mongo.Collection) (map[string]present, error) {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}
	var all []present
	if err := cur.All(ctx, &all); err != nil {
		return nil, fmt.Errorf("decode indexes: %w", err)
	}
	bySig := make(map[string]present, len(all))
	for _, p := range all {
		bySig[signature(p.Key)] = p
	}
	return bySig, nil
}

func (ix index) model() mongo.IndexModel {
	keys := make(bson.D, 0, len(ix.keys))
	for _, k := range ix.keys {
		if field, desc := strings.CutPrefix(k, "-"); desc {
			keys = append(keys, bson.E{Key: field, Value: -1})
		} else {
			keys = append(keys, bson.E{Key: k, Value: 1})
		}
	}
	opts := options.Index().SetName(ix.name)
	if ix.unique {
		opts.SetUnique(true)
	}
	if secs := ix.ttlSeconds(); secs != nil {
		opts.SetExpireAfterSeconds(*secs)
	}
	return mongo.IndexModel{Keys: keys, Options: opts}
}

func (ix index) ttlSeconds() *int32 {
	switch {
	case ix.expiry:
		zero := int32(0)
		return &zero
	case ix.ttl > 0:
		secs := int32(ix.ttl / time.Second)
		return &secs
	}
	return nil
}

func sameTTL(a, b *int32) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// signature renders a key pattern comparably; listIndexes may report
// directions as int32, int64 or double.
func signature(keys bson.D) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		dir := "1"
		switch v := k.Value.(type) {
		case int32:
			if v < 0 {
				dir = "-1"
			}
		case int64:
			if v < 0 {
				dir = "-1"
			}
		case int:
			if v < 0 {
				dir = "-1"
			}
		case float64:
			if v < 0 {
				dir = "-1"
			}
		default:
			dir = fmt.Sprint(v)
		}
		parts[i] = k.Key + ":" + dir
	}
	return strings.Join(parts, ",")
}
