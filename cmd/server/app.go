package main

import (
	"context"
	"fmt"

	"ops-console/internal/api"
	"ops-console/internal/api/handlers"
	"ops-console/internal/service"
	"ops-console/internal/store/factory"
	"ops-console/internal/store/types"
	"ops-console/pkg/config"
	"ops-console/pkg/logger"
	"ops-console/pkg/server"

	"github.com/gin-gonic/gin"
)

type App struct {
	server *server.Server
	store  types.Store
	logger *logger.Logger
}

// NewApp 按配置装配存储、业务层、路由与服务器
func NewApp(cfg *config.ServerConfig) (*App, error) {
	logger := provideLogger(cfg)
	log := logger.GetLogger("app")

	if !cfg.Log.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := factory.NewStore(provideStoreConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}

	for _, t := range cfg.Auth.NodeTokens {
		if t.Token == config.PlaceholderNodeToken {
			log.Warn().Str("project_key", t.ProjectKey).Msg("Placeholder node token configured, replace it before production use")
		}
	}

	// Services
	nodeService := service.NewNodeService(store, provideNodeSettings(cfg), logger)
	taskService := service.NewTaskService(store, nodeService, logger)
	statusService := service.NewStatusService(store, nodeService)

	// Handlers
	production := cfg.IsProduction()
	nodeHandler := handlers.NewNodeHandler(nodeService, taskService, logger, production)
	taskHandler := handlers.NewTaskHandler(taskService, logger, production)
	statusHandler := handlers.NewStatusHandler(statusService, logger, production)
	uiHandler := handlers.NewUIHandler(nodeService, taskService, handlers.ConnectionSettings{
		PublicURL:        cfg.Server.PublicURL,
		TokenForProject:  cfg.TokenForProject,
		PlaceholderToken: config.PlaceholderNodeToken,
	}, logger)

	router, err := api.NewRouter(nodeHandler, taskHandler, statusHandler, uiHandler, api.RouterOptions{
		NodeTokens: cfg.TokenProjects(),
		Admin:      provideAdminCredentials(cfg),
		Production: production,
	}, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating router: %w", err)
	}

	srv, err := server.New(cfg, router, statusService, nil, logger.GetLogger("server"))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating server: %w", err)
	}

	return &App{
		server: srv,
		store:  store,
		logger: logger,
	}, nil
}

// Run 启动服务并阻塞到 ctx 取消
func (a *App) Run(ctx context.Context) error {
	log := a.logger.GetLogger("app")

	if err := a.server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	log.Info().Str("address", a.server.Addr().String()).Msg("Ops console running")

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	if err := a.server.Stop(); err != nil {
		log.Error().Err(err).Msg("Error stopping server")
	}
	if err := a.store.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing store")
	}
	return nil
}
