package userstore

import (
	"context"
	"errors"

	"github.com/dalemusser/pinboard/internal/app/system/auth"
	"github.com/dalemusser/pinboard/internal/app/system/normalize"
	"github.com/dalemusser/pinboard/internal/app/system/timeouts"
	"github.com/dalemusser/pinboard/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Fetcher refreshes the signed-in user on every request (auth.UserFetcher),
// so renames, role changes and suspensions apply without a new login.
type Fetcher struct {
	store  *Store
	logger *zap.Logger
}

func NewFetcher(db *mongo.Database, logger *zap.Logger) *Fetcher {
	return &Fetcher{store: New(db), logger: logger}
}

// FetchUser returns nil for an unknown or disabled account and when the
// lookup fails, which signs the request out.
func (f *Fetcher) FetchUser(ctx context.Context, userID string) *auth.SessionUser {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	u, err := f.store.GetByID(ctx, id)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil
	case err != nil:
		f.logger.Warn("refresh session user", zap.String("user_id", userID), zap.Error(err))
		return nil
	case normalize.Status(u.Status) == models.StatusDisabled:
		return nil
	}
	return &auth.SessionUser{
		ID:              u.ID.Hex(),
		Name:            u.FullName,
		Username:        u.Username,
		ImageURL:        u.ImageURL,
		Role:            normalize.Role(u.Role),
		ThemePreference: u.ThemePreference,
	}
}
