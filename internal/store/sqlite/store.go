package sqlite

import (
	"fmt"
	"os"
	"path/filepath"

	"ops-console/internal/store/gormstore"
	"ops-console/internal/store/types"

	"github.com/glebarez/sqlite"
)

// NewStore 打开 SQLite 数据库（纯 Go 驱动）
//
// SQLite 只允许单写者，这里把连接池限制为一个连接，事务之间自然串行。
func NewStore(cfg types.SQLiteConfig) (*gormstore.Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	// 确保目录存在
	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	dsn := cfg.Path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	store, err := gormstore.New(sqlite.Open(dsn))
	if err != nil {
		return nil, err
	}

	sqlDB, err := store.DB().DB()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("getting database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return store, nil
}
