package factory

import (
	"fmt"

	"ops-console/internal/store/memory"
	"ops-console/internal/store/mysql"
	"ops-console/internal/store/postgres"
	"ops-console/internal/store/sqlite"
	"ops-console/internal/store/types"
)

// NewStore 创建新的存储实例
func NewStore(cfg *types.Config) (types.Store, error) {
	switch cfg.Type {
	case "memory":
		return memory.NewStore(), nil
	case "sqlite":
		return sqlite.NewStore(cfg.SQLite)
	case "postgres":
		return postgres.NewStore(cfg.Postgres)
	case "mysql":
		return mysql.NewStore(cfg.MySQL)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
