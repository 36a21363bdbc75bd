// Package validators creates PinBoard's collections and attaches their
// JSON-Schema validators.
package validators

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// plainCollections have no validator but are created up front so indexing
// never races an implicit create.
var plainCollections = []string{
	"comments", "likes", "reposts", "shares", "follows", "board_members",
	"sessions", "oauth_states", "audit_logs", "activity_events", "rate_limits",
}

// EnsureAll creates every collection that is missing and (re)applies the
// validators. Deployments that reject collMod (DocumentDB, some managed
// tiers) keep their collections unvalidated; that is logged, not returned.
func EnsureAll(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, n := range existing {
		have[n] = true
	}

	var errs []error
	apply := func(coll string, schema bson.M) {
		if !have[coll] {
			if err := db.CreateCollection(ctx, coll); err != nil && !hasCode(err, codeNamespaceExists) {
				errs = append(errs, fmt.Errorf("create %s: %w", coll, err))
				return
			}
			logger.Info("created collection", zap.String("collection", coll))
		}
		if schema == nil {
			return
		}
		switch err := setValidator(ctx, db, coll, schema); {
		case err == nil:
		case unsupported(err):
			logger.Info("collection validator unsupported, skipped", zap.String("collection", coll))
		default:
			errs = append(errs, fmt.Errorf("validator %s: %w", coll, err))
		}
	}

	apply("users", usersSchema())
	apply("streaks", streaksSchema())
	apply("posts", postsSchema())
	apply("boards", boardsSchema())
	apply("messages", messagesSchema())
	for _, coll := range plainCollections {
		apply(coll, nil)
	}
	return errors.Join(errs...)
}

func setValidator(ctx context.Context, db *mongo.Database, coll string, schema bson.M) error {
	return db.RunCommand(ctx, bson.D{
		{Key: "collMod", Value: coll},
		{Key: "validator", Value: schema},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}).Err()
}

const (
	codeNamespaceExists = 48
	codeCommandNotFound = 59
	codeNotImplemented  = 115
)

func hasCode(err error, code int32) bool {
	var ce mongo.CommandError
	return errors.As(err, &ce) && ce.Code == code
}

// unsupported reports a server that lacks collMod or schema validation.
func unsupported(err error) bool {
	if hasCode(err, codeCommandNotFound) || hasCode(err, codeNotImplemented) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range []string{"no such command", "not implemented", "not supported"} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"full_name", "username", "username_ci", "email", "role", "status", "auth_method"},
			"properties": bson.M{
				"full_name":        bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"full_name_ci":     bson.M{"bsonType": "string"},
				"username":         bson.M{"bsonType": "string", "pattern": "^[A-Za-z0-9_]{3,20}$"},
				"username_ci":      bson.M{"bsonType": "string"},
				"email":            bson.M{"bsonType": "string", "minLength": 3},
				"role":             bson.M{"enum": bson.A{"member", "admin"}},
				"status":           bson.M{"enum": bson.A{"active", "disabled"}},
				"auth_method":      bson.M{"enum": bson.A{"password", "google"}},
				"theme_preference": bson.M{"enum": bson.A{"", "midnight", "ocean", "forest", "sunset", "nord", "highcontrast"}},
				"follower_count":   bson.M{"bsonType": "number", "minimum": 0},
				"following_count":  bson.M{"bsonType": "number", "minimum": 0},
				"post_count":       bson.M{"bsonType": "number", "minimum": 0},
			},
		},
	}
}

// streaksSchema enforces the record invariants: both counts are at least one
// and the current streak never exceeds the longest.
func streaksSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"user_id", "current_streak", "longest_streak", "last_active_date"},
			"properties": bson.M{
				"user_id":          bson.M{"bsonType": "objectId"},
				"current_streak":   bson.M{"bsonType": "number", "minimum": 1},
				"longest_streak":   bson.M{"bsonType": "number", "minimum": 1},
				"last_active_date": bson.M{"bsonType": "date"},
			},
		},
		"$expr": bson.M{"$gte": bson.A{"$longest_streak", "$current_streak"}},
	}
}

func postsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"user_id", "content", "created_at"},
			"properties": bson.M{
				"user_id":    bson.M{"bsonType": "objectId"},
				"board_id":   bson.M{"bsonType": "objectId"},
				"content":    bson.M{"bsonType": "string", "maxLength": 2000},
				"hashtags":   bson.M{"bsonType": "array", "items": bson.M{"bsonType": "string"}},
				"media_type": bson.M{"enum": bson.A{"image", "video"}},
			},
		},
	}
}

func boardsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "slug", "creator_id"},
			"properties": bson.M{
				"name":         bson.M{"bsonType": "string", "minLength": 1},
				"slug":         bson.M{"bsonType": "string", "pattern": "^[a-z0-9-]+$"},
				"creator_id":   bson.M{"bsonType": "objectId"},
				"member_count": bson.M{"bsonType": "number", "minimum": 0},
			},
		},
	}
}

func messagesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"sender_id", "receiver_id", "content", "read"},
			"properties": bson.M{
				"sender_id":   bson.M{"bsonType": "objectId"},
				"receiver_id": bson.M{"bsonType": "objectId"},
				"content":     bson.M{"bsonType": "string", "minLength": 1, "maxLength": 2000},
				"read":        bson.M{"bsonType": "bool"},
			},
		},
	}
}
