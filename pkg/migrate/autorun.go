package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/pricesync-backend/pkg/config"
	"github.com/angelmondragon/pricesync-backend/pkg/db"
	"github.com/angelmondragon/pricesync-backend/pkg/db/models"
	"github.com/angelmondragon/pricesync-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations at startup in dev when
// auto-migrate is on. SQLite dev databases get their schema from the models.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	if cfg.FeatureFlags.UseSQLite {
		logg.Info(ctx, "sqlite mode; creating schema with gorm automigrate")
		return client.DB().WithContext(ctx).AutoMigrate(models.All()...)
	}

	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	runner, err := NewRunner(sqlDB, Migrations())
	if err != nil {
		return err
	}

	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	applied, err := runner.Up(ctx)
	for _, m := range applied {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"version":     m.Version,
			"duration_ms": m.Duration.Milliseconds(),
		}), "migration applied")
	}
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "applied", len(applied)), "dev migrations complete")
	return nil
}
