// internal/app/system/seeding/seeding.go
//
// Package seeding applies startup data PinBoard needs but users cannot
// create themselves.
package seeding

import (
	"context"
	"errors"

	userstore "github.com/dalemusser/pinboard/internal/app/store/users"
	"github.com/dalemusser/pinboard/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// PromoteAdmin gives the account registered with email the admin role.
// An unknown email is logged and skipped so the operator can sign up first
// and restart.
func PromoteAdmin(ctx context.Context, users *userstore.Store, email string, logger *zap.Logger) error {
	if email == "" {
		return nil
	}
	u, err := users.GetByEmail(ctx, email)
	if errors.Is(err, mongo.ErrNoDocuments) {
		logger.Warn("seed admin not found; sign up with this email and restart", zap.String("email", email))
		return nil
	}
	if err != nil {
		return err
	}
	if u.Role == models.RoleAdmin {
		logger.Debug("admin user already configured", zap.String("user_id", u.ID.Hex()))
		return nil
	}
	if err := users.SetRole(ctx, u.ID, models.RoleAdmin); err != nil {
		return err
	}
	logger.Info("promoted existing user to admin",
		zap.String("user_id", u.ID.Hex()),
		zap.String("previous_role", u.Role))
	return nil
}
