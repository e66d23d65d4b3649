// Package gateway delivers match events to the admin, hud and input audiences
// over websockets and routes their messages back to the engine.
package gateway

import (
	"context"
	"net/http"

	"github.com/mcdev12/battlescore/go/internal/match/events"
	"github.com/rs/zerolog/log"
)

// Service owns the connection manager, its HTTP routes and the optional
// result feed.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	resultFeedConfig  *ResultFeedConfig
	resultFeed        *ResultFeed
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	// ResultFeed is nil when results are not consumed from JetStream.
	ResultFeed *ResultFeedConfig
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
	}
}

// NewService creates a new gateway service.
func NewService(config Config, state StateProvider, commands CommandHandler) *Service {
	connectionManager := NewConnectionManager(config.ConnectionConfig, state, commands)

	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
		resultFeedConfig:  config.ResultFeed,
	}
}

// Start runs the gateway until ctx is done. A result feed that cannot be bound
// is logged and skipped; live match traffic does not depend on it.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting match gateway service")

	go s.connectionManager.Start(ctx)

	if s.resultFeedConfig != nil {
		feed, err := NewResultFeed(ctx, s.connectionManager, *s.resultFeedConfig)
		if err != nil {
			log.Warn().Err(err).Msg("match result feed disabled")
		} else {
			s.resultFeed = feed
			go func() {
				if err := feed.Start(ctx); err != nil {
					log.Error().Err(err).Msg("match result feed failed")
				}
			}()
		}
	}

	<-ctx.Done()

	log.Info().Msg("match gateway service shutting down")
	return s.Stop()
}

// Stop releases the result feed connection.
func (s *Service) Stop() error {
	if s.resultFeed != nil {
		if err := s.resultFeed.Stop(); err != nil {
			log.Error().Err(err).Msg("failed to stop match result feed")
		}
	}
	log.Info().Msg("match gateway service stopped")
	return nil
}

// Broadcast implements the engine sink.
func (s *Service) Broadcast(audiences []events.Audience, event *events.Event) {
	s.connectionManager.Broadcast(audiences, event)
}

// SetCommandHandler replaces the handler for client messages. It must be
// called before Start.
func (s *Service) SetCommandHandler(commands CommandHandler) {
	s.connectionManager.commands = commands
}

// SetStateProvider replaces the provider of the connect-time projection. It
// must be called before Start.
func (s *Service) SetStateProvider(state StateProvider) {
	s.connectionManager.state = state
}

// RegisterRoutes registers the WebSocket HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	log.Info().Msg("match gateway routes registered")
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
