//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/postora/postora-server/internal/config"
	domain "github.com/postora/postora-server/internal/domain/upload"
	"github.com/postora/postora-server/internal/infrastructure/auth"
	"github.com/postora/postora-server/internal/infrastructure/crontab"
	"github.com/postora/postora-server/internal/infrastructure/database"
	"github.com/postora/postora-server/internal/infrastructure/imageopt"
	"github.com/postora/postora-server/internal/infrastructure/logger"
	repo "github.com/postora/postora-server/internal/infrastructure/repository/file"
	"github.com/postora/postora-server/internal/infrastructure/storage"
	"github.com/postora/postora-server/internal/interfaces/httpserver"
)

var uploadSet = wire.NewSet(
	repo.NewRepository,
	wire.Bind(new(domain.Repository), new(*repo.Repository)),
	storage.NewLocalStorage,
	wire.Bind(new(domain.Storage), new(*storage.LocalStorage)),
	imageopt.NewOptimizer,
	wire.Bind(new(domain.Optimizer), new(*imageopt.Optimizer)),
	config.LoadPolicies,
	domain.NewService,
	crontab.NewCrontab,
	wire.Bind(new(crontab.StagingSweeper), new(*storage.LocalStorage)),
)

// BuildApplication assembles the upload API with Wire.
func BuildApplication(ctx context.Context) (*Application, error) {
	wire.Build(
		config.Load,
		logger.New,
		auth.NewValidator,
		database.ConfigFrom,
		newGormDB,
		uploadSet,
		newReadinessChecks,
		httpserver.New,
		NewApplication,
	)
	return nil, nil
}

func newGormDB(ctx context.Context, cfg database.Config, log zerolog.Logger) (*gorm.DB, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db, log); err != nil {
		return nil, err
	}
	return db, nil
}

func newReadinessChecks(db *gorm.DB, localStorage *storage.LocalStorage) httpserver.ReadinessChecks {
	return httpserver.ReadinessChecks{
		Database: func() error { return database.Ping(db) },
		Storage:  localStorage.Health,
	}
}
