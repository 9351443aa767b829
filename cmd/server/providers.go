package main

import (
	"ops-console/internal/api/middleware"
	"ops-console/internal/service"
	"ops-console/internal/store/types"
	"ops-console/pkg/config"
	"ops-console/pkg/logger"
)

func provideStoreConfig(cfg *config.ServerConfig) *types.Config {
	return &types.Config{
		Type:     cfg.Storage.Type,
		SQLite:   types.SQLiteConfig(cfg.Storage.SQLite),
		Postgres: types.PostgresConfig(cfg.Storage.Postgres),
		MySQL:    types.MySQLConfig(cfg.Storage.MySQL),
	}
}

func provideLogger(cfg *config.ServerConfig) *logger.Logger {
	logger := logger.NewLogger(cfg.Log.Debug)
	if cfg.Log.File != "" {
		logger.SetLogOutput(cfg.Log.File)
	}
	return logger
}

func provideNodeSettings(cfg *config.ServerConfig) service.NodeSettings {
	return service.NodeSettings{
		HeartbeatInterval: cfg.HeartbeatInterval(),
		OfflineThreshold:  cfg.OfflineThreshold(),
		DefaultProjectKey: cfg.Auth.DefaultProjectKey,
	}
}

func provideAdminCredentials(cfg *config.ServerConfig) middleware.AdminCredentials {
	return middleware.AdminCredentials{
		Username:     cfg.Auth.Admin.Username,
		Password:     cfg.Auth.Admin.Password,
		PasswordHash: cfg.Auth.Admin.PasswordHash,
	}
}
