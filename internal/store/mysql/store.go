package mysql

import (
	"fmt"

	"ops-console/internal/store/gormstore"
	"ops-console/internal/store/types"

	"gorm.io/driver/mysql"
)

// NewStore 创建MySQL存储实例
func NewStore(cfg types.MySQLConfig) (*gormstore.Store, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)

	return gormstore.New(mysql.Open(dsn))
}
