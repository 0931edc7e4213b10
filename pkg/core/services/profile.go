package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/voisinsolidaire/voisin/pkg/db"
)

// UpdateProfile validates and saves a volunteer profile. Coordinates must be
// given together.
func UpdateProfile(ctx context.Context, store db.ProfileStore, logger *zap.Logger, profile *db.Profile) error {
	if err := validate.Struct(profile); err != nil {
		return fmt.Errorf("invalid profile: %w", validationError(err))
	}
	if (profile.Latitude == nil) != (profile.Longitude == nil) {
		return fmt.Errorf("latitude and longitude must be set together: %w", db.ErrValidation)
	}

	if err := store.UpdateProfile(ctx, profile); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	logger.Info("Profile updated", zap.String("user_id", profile.ID))
	return nil
}
