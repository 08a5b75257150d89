package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/feedback-service/internal/config"
	"github.com/spec-kit/feedback-service/internal/persistence"
	"github.com/spec-kit/feedback-service/internal/repository"
)

// stores holds the repositories for the configured driver.
type stores struct {
	admins  repository.AdminRepository
	reviews repository.ReviewRepository
	close   func()
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverSQLite:
		db, err := persistence.NewSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		logger.Info("using sqlite store", zap.String("path", cfg.Store.SQLitePath))
		return &stores{
			admins:  repository.NewSQLiteAdminRepository(db),
			reviews: repository.NewSQLiteReviewRepository(db),
			close:   func() { _ = db.Close() },
		}, nil

	default:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				pg.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		pool := pg.PoolHandle()
		return &stores{
			admins:  repository.NewAdminRepository(pool),
			reviews: repository.NewReviewRepository(pool),
			close:   pg.Close,
		}, nil
	}
}
