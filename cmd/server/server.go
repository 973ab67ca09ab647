package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/postora/postora-server/internal/config"
	domain "github.com/postora/postora-server/internal/domain/upload"
	"github.com/postora/postora-server/internal/infrastructure/auth"
	"github.com/postora/postora-server/internal/infrastructure/crontab"
	"github.com/postora/postora-server/internal/infrastructure/database"
	"github.com/postora/postora-server/internal/infrastructure/imageopt"
	"github.com/postora/postora-server/internal/infrastructure/logger"
	"github.com/postora/postora-server/internal/infrastructure/observability"
	repo "github.com/postora/postora-server/internal/infrastructure/repository/file"
	"github.com/postora/postora-server/internal/infrastructure/storage"
	"github.com/postora/postora-server/internal/interfaces/httpserver"
)

// @title Postora Upload API
// @version 1.0
// @description File upload pipeline: validation, storage, image optimization and records
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
type Application struct {
	httpServer *httpserver.HttpServer
	crontab    *crontab.Crontab
	log        zerolog.Logger
}

func NewApplication(httpServer *httpserver.HttpServer, crontab *crontab.Crontab, log zerolog.Logger) *Application {
	return &Application{
		httpServer: httpServer,
		crontab:    crontab,
		log:        log,
	}
}

// Start runs the HTTP server and the maintenance jobs until ctx is done or
// either of them fails.
func (a *Application) Start(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return a.crontab.Run(ctx)
	})
	eg.Go(func() error {
		return a.httpServer.Run(ctx)
	})
	return eg.Wait()
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg)

	policies, err := config.LoadPolicies(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("load upload policies")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	db, err := database.Connect(database.ConfigFrom(cfg))
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Error().Err(err).Msg("close database")
		}
	}()

	if err := database.Migrate(ctx, db, log); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	localStorage, err := storage.NewLocalStorage(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize storage")
	}

	fileRepository := repo.NewRepository(db)
	uploadService := domain.NewService(cfg, policies, fileRepository, localStorage, imageopt.NewOptimizer(log), log)

	authValidator, err := auth.NewValidator(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize auth")
	}
	defer authValidator.Close()

	httpServer := httpserver.New(cfg, log, uploadService, authValidator, httpserver.ReadinessChecks{
		Database: func() error { return database.Ping(db) },
		Storage:  localStorage.Health,
	})
	app := NewApplication(httpServer, crontab.NewCrontab(cfg, localStorage, log), log)

	log.Info().
		Strs("categories", policies.Categories()).
		Str("storage_root", cfg.StorageRoot).
		Msg("upload pipeline ready")

	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
