// Command outbox relays match_outbox rows written by the match server to the
// MATCH_EVENTS JetStream stream.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/battlescore/go/internal/dbconfig"
	"github.com/mcdev12/battlescore/go/internal/match/outbox"
	"github.com/mcdev12/battlescore/go/internal/match/stream"
)

type relayConfig struct {
	db         dbconfig.Config
	stream     stream.Config
	listener   outbox.ListenerConfig
	healthAddr string
}

func loadRelayConfig() relayConfig {
	cfg := relayConfig{
		db:         dbconfig.NewConfigFromEnv(),
		stream:     stream.Default(),
		listener:   outbox.DefaultListenerConfig(),
		healthAddr: getEnv("OUTBOX_HEALTH_ADDR", ":9091"),
	}
	cfg.listener.DatabaseURL = cfg.db.DSN()
	cfg.stream.URL = getEnv("NATS_URL", cfg.stream.URL)
	cfg.stream.Name = getEnv("NATS_STREAM", cfg.stream.Name)

	if v := os.Getenv("FALLBACK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.listener.FallbackInterval = d
		} else {
			log.Warn().Str("value", v).Msg("ignoring invalid FALLBACK_INTERVAL")
		}
	}
	if v := os.Getenv("OUTBOX_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.listener.BatchSize = int32(n)
		}
	}
	return cfg
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout}).With().Str("service", "outbox-relay").Logger()
	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	cfg := loadRelayConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.listener.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Str("host", cfg.db.Host).Msg("database unreachable")
	}

	publisher, err := outbox.NewJetStreamPublisher(ctx, cfg.stream)
	if err != nil {
		log.Fatal().Err(err).Msg("create JetStream publisher")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("close publisher")
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := outbox.NewPrometheusMetrics(registry)

	repo := outbox.NewRepository(db)
	listener, err := outbox.NewListener(repo, publisher, metrics, cfg.listener)
	if err != nil {
		log.Fatal().Err(err).Msg("create outbox listener")
	}

	mux := http.NewServeMux()
	mux.Handle("/health", outbox.NewHealthChecker(listener, db, repo, publisher, metrics, 2*cfg.listener.FallbackInterval))
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	healthServer := &http.Server{
		Addr:              cfg.healthAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server failed")
		}
	}()

	log.Info().
		Str("database", cfg.db.Database).
		Str("stream", cfg.stream.Name).
		Str("health_addr", cfg.healthAddr).
		Msg("outbox relay running")

	// Start returns once ctx is cancelled and the in-flight relay finishes.
	if err := listener.Start(ctx); err != nil {
		log.Error().Err(err).Msg("listener stopped with error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server shutdown")
	}
	log.Info().Msg("outbox relay stopped")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
