package seeding

import (
	"testing"

	userstore "github.com/dalemusser/pinboard/internal/app/store/users"
	"github.com/dalemusser/pinboard/internal/domain/models"
	"github.com/dalemusser/pinboard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPromoteAdmin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	users := userstore.New(db)

	id := testutil.InsertUser(t, db, models.User{Username: "owner", Email: "owner@example.com"})

	require.NoError(t, PromoteAdmin(ctx, users, "Owner@Example.com", zap.NewNop()))
	u, err := users.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role)

	// Idempotent.
	require.NoError(t, PromoteAdmin(ctx, users, "owner@example.com", zap.NewNop()))
}

func TestPromoteAdmin_UnknownOrBlankEmailIsSkipped(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	users := userstore.New(db)

	assert.NoError(t, PromoteAdmin(ctx, users, "", zap.NewNop()))
	assert.NoError(t, PromoteAdmin(ctx, users, "nobody@example.com", zap.NewNop()))
}
