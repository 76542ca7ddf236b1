package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"green-rewards/internal/config"
	"green-rewards/internal/db"
	"green-rewards/internal/logger"
	"green-rewards/internal/router"
	"green-rewards/internal/seed"
	"green-rewards/internal/store"
	"green-rewards/internal/store/memory"
	"green-rewards/internal/store/mongo"
	"green-rewards/internal/store/mysql"
)

func main() {
	cfg := config.LoadConfig()

	log := logger.InitLogger(cfg.LogLevel, cfg.LogPretty)
	log.Info().Str("driver", cfg.StoreDriver).Msg("Starting green-rewards")
	if cfg.UsesDefaultSecret() {
		log.Warn().Msg("JWT_SECRET not set, using default key")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open directory")
	}
	defer st.Close()

	seedFile := seed.Defaults()
	if cfg.SeedFile != "" {
		if seedFile, err = seed.Load(cfg.SeedFile); err != nil {
			log.Fatal().Err(err).Msg("Failed to load seed file")
		}
	}
	if err := seed.Run(ctx, st, seedFile, log); err != nil {
		log.Fatal().Err(err).Msg("Seeding failed")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.SetupRouter(st, cfg, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Msgf("Server listening on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}

	log.Info().Msg("Server stopped")
}

func openStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMySQL:
		if cfg.DBUrl == "" {
			return nil, fmt.Errorf("DB_URL is required for the %s driver", cfg.StoreDriver)
		}
		database, err := db.InitDB(ctx, cfg.DBUrl, log)
		if err != nil {
			return nil, err
		}
		if err := db.RunMigrations(ctx, database, log); err != nil {
			database.Close()
			return nil, err
		}
		return mysql.New(database, log), nil
	case config.DriverMongo:
		ms, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDB, log)
		if err != nil {
			return nil, err
		}
		return ms, nil
	case config.DriverMemory:
		log.Warn().Msg("Using in-memory directory, data is lost on exit")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}
