package validators

import (
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/pinboard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func TestEnsureAll_CreatesCollections(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	require.NoError(t, EnsureAll(ctx, db, zap.NewNop()))
	require.NoError(t, EnsureAll(ctx, db, zap.NewNop()), "second run is a no-op")

	names, err := db.ListCollectionNames(ctx, bson.M{})
	require.NoError(t, err)
	for _, want := range append([]string{"users", "streaks", "posts", "boards", "messages"}, plainCollections...) {
		assert.Contains(t, names, want)
	}
}

func TestEnsureAll_StreakInvariant(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	require.NoError(t, EnsureAll(ctx, db, zap.NewNop()))

	streaks := db.Collection("streaks")
	_, err := streaks.InsertOne(ctx, bson.M{
		"user_id": primitive.NewObjectID(), "current_streak": int32(5), "longest_streak": int32(3), "last_active_date": time.Now(),
	})
	assert.Error(t, err, "longest below current must be rejected")

	_, err = streaks.InsertOne(ctx, bson.M{
		"user_id": primitive.NewObjectID(), "current_streak": int32(0), "longest_streak": int32(0), "last_active_date": time.Now(),
	})
	assert.Error(t, err, "a recorded streak is at least one day")

	_, err = streaks.InsertOne(ctx, bson.M{
		"user_id": primitive.NewObjectID(), "current_streak": int32(2), "longest_streak": int32(7), "last_active_date": time.Now(),
	})
	assert.NoError(t, err)
}

func TestEnsureAll_RejectsBadUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	require.NoError(t, EnsureAll(ctx, db, zap.NewNop()))

	_, err := db.Collection("users").InsertOne(ctx, bson.M{
		"full_name": "Ada", "username": "a d a", "username_ci": "a d a", "email": "ada@example.com",
		"role": "member", "status": "active", "auth_method": "password",
	})
	assert.Error(t, err)
}

func TestUnsupported(t *testing.T) {
	cases := map[string]struct {
		err  error
		want bool
	}{
		"command not found code": {mongo.CommandError{Code: codeCommandNotFound}, true},
		"not implemented code":   {mongo.CommandError{Code: codeNotImplemented}, true},
		"message only":           {errors.New("Feature Not Supported: collMod"), true},
		"no such command":        {errors.New("no such command: 'collMod'"), true},
		"unrelated":              {mongo.CommandError{Code: 13, Message: "unauthorized"}, false},
	}
	for name, tc := range cases {
		assert.Equal(t, tc.want, unsupported(tc.err), name)
	}
}

func TestHasCode(t *testing.T) {
	assert.True(t, hasCode(mongo.CommandError{Code: codeNamespaceExists}, codeNamespaceExists))
	assert.False(t, hasCode(errors.New("namespace exists"), codeNamespaceExists))
}

func TestSchemasRequireFields(t *testing.T) {
	for name, schema := range map[string]bson.M{
		"users": usersSchema(), "streaks": streaksSchema(), "posts": postsSchema(),
		"boards": boardsSchema(), "messages": messagesSchema(),
	} {
		js, ok := schema["$jsonSchema"].(bson.M)
		require.True(t, ok, name)
		req, ok := js["required"].(bson.A)
		assert.True(t, ok && len(req) > 0, name)
	}
}
