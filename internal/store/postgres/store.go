package postgres

import (
	"fmt"

	"ops-console/internal/store/gormstore"
	"ops-console/internal/store/types"

	"gorm.io/driver/postgres"
)

// NewStore 创建PostgreSQL存储实例
func NewStore(cfg types.PostgresConfig) (*gormstore.Store, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
		cfg.Host, cfg.User, cfg.Password, cfg.DBName, cfg.Port, sslMode)

	return gormstore.New(postgres.Open(dsn))
}
