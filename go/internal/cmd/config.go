package main

import (
	"os"

	"github.com/mcdev12/battlescore/go/internal/match/config"
	"github.com/rs/zerolog/log"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("path", path).
		Str("port", cfg.Port).
		Int("tick_ms", cfg.TickMs).
		Strs("gifts", cfg.GiftKeys()).
		Bool("database", cfg.Database.Enabled).
		Bool("result_feed", cfg.NATS.ResultFeed).
		Msg("config loaded")
	return cfg, nil
}
