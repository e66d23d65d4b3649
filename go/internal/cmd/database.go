package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/battlescore/go/internal/dbconfig"
	"github.com/mcdev12/battlescore/go/internal/match/config"
	"github.com/mcdev12/battlescore/go/internal/match/storage"
)

func setupDatabase(ctx context.Context) (*pgxpool.Pool, error) {
	dbConfig := dbconfig.NewConfigFromEnv()

	poolConfig, err := dbConfig.PoolConfig()
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("host", poolConfig.ConnConfig.Host).
		Uint16("port", poolConfig.ConnConfig.Port).
		Str("database", poolConfig.ConnConfig.Database).
		Msg("connected to database")
	return pool, nil
}

// loadSettings overlays the stored settings on cfg. On first start the file
// settings are written as the seed.
func loadSettings(ctx context.Context, repo *storage.Repository, cfg *config.Config) (*config.Config, error) {
	stored, ok, err := repo.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := repo.SaveSettings(ctx, cfg.Settings); err != nil {
			return nil, err
		}
		log.Info().Msg("seeded settings")
		return cfg, nil
	}

	next, err := cfg.WithSettings(stored)
	if err != nil {
		return nil, fmt.Errorf("stored settings: %w", err)
	}
	log.Info().Strs("gifts", next.GiftKeys()).Msg("loaded stored settings")
	return next, nil
}
