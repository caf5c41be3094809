package db

import (
	"context"
	"errors"

	"github.com/geocoder89/dashboard/internal/auth"
	"github.com/geocoder89/dashboard/internal/config"
	"github.com/geocoder89/dashboard/internal/domain/user"
)

// EnsureSeedUser registers the configured bootstrap user through the normal
// registration path. An already existing user is not an error.
func EnsureSeedUser(ctx context.Context, svc *auth.Service, cfg config.Config) error {
	if cfg.SeedUsername == "" || cfg.SeedPassword == "" {
		return nil
	}

	_, err := svc.Register(ctx, auth.RegisterInput{
		Username:        cfg.SeedUsername,
		Email:           cfg.SeedEmail,
		Password:        cfg.SeedPassword,
		ConfirmPassword: cfg.SeedPassword,
	})

	if err != nil && !errors.Is(err, user.ErrAlreadyExists) {
		return err
	}

	return nil
}
