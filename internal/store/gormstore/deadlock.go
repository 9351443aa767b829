package gormstore

import (
	"context"
	"errors"
	"time"

	"ops-console/pkg/retry"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	mysqlDeadlock      = 1213
	postgresDeadlock   = "40P01"
	deadlockRetryDelay = 20 * time.Millisecond
)

// isDeadlock 数据库回滚了本事务，重新执行即可
func isDeadlock(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDeadlock
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == postgresDeadlock
	}
	return false
}

// transaction 执行事务，因死锁被回滚时重试一次。fn 可能执行两次，不能累积外部状态
func (s *Store) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return retry.Do(ctx, retry.Config{
		MaxAttempts: 2,
		Delay:       deadlockRetryDelay,
		Retryable:   isDeadlock,
	}, func() error {
		return s.db.WithContext(ctx).Transaction(fn)
	})
}
