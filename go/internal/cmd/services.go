package main

import (
	"github.com/mcdev12/battlescore/go/internal/match/config"
	"github.com/mcdev12/battlescore/go/internal/match/control"
	"github.com/mcdev12/battlescore/go/internal/match/engine"
	"github.com/mcdev12/battlescore/go/internal/match/gateway"
	"github.com/mcdev12/battlescore/go/internal/match/storage"
)

type Services struct {
	Engine  *engine.Engine
	Gateway *gateway.Service
	Control *control.Service
}

func setupServices(cfg *config.Config, repo *storage.Repository) *Services {
	// Gateway → Engine (gateway is its sink) → Control → back into the gateway

	gatewayConfig := gateway.DefaultConfig()
	if cfg.NATS.ResultFeed {
		feed := gateway.DefaultResultFeedConfig()
		feed.Stream.URL = cfg.NATS.URL
		gatewayConfig.ResultFeed = &feed
	}
	gatewayService := gateway.NewService(gatewayConfig, nil, nil)

	var (
		engineOpts []engine.Option
		store      control.Store
	)
	if repo != nil {
		engineOpts = append(engineOpts, engine.WithResultStore(repo))
		store = repo
	}
	matchEngine := engine.New(cfg, gatewayService, engineOpts...)

	controlService := control.NewService(matchEngine, store)

	gatewayService.SetStateProvider(matchEngine)
	gatewayService.SetCommandHandler(control.NewCommands(controlService))

	return &Services{
		Engine:  matchEngine,
		Gateway: gatewayService,
		Control: controlService,
	}
}
