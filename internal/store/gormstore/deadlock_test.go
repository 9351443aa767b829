package gormstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIsDeadlock(t *testing.T) {
	assert.True(t, isDeadlock(fmt.Errorf("inserting node: %w", &mysql.MySQLError{Number: 1213, Message: "Deadlock found"})))
	assert.True(t, isDeadlock(&pgconn.PgError{Code: "40P01"}))
	assert.False(t, isDeadlock(&mysql.MySQLError{Number: 1062}))
	assert.False(t, isDeadlock(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isDeadlock(errors.New("connection reset")))
	assert.False(t, isDeadlock(nil))
}

func TestTransactionRetriesDeadlock(t *testing.T) {
	s, err := New(sqlite.Open(filepath.Join(t.TempDir(), "console.db")))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	t.Run("Deadlock Retried Once", func(t *testing.T) {
		calls := 0
		err := s.transaction(ctx, func(tx *gorm.DB) error {
			calls++
			if calls == 1 {
				return fmt.Errorf("inserting node: %w", &mysql.MySQLError{Number: 1213})
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("Gives Up After Second Deadlock", func(t *testing.T) {
		calls := 0
		err := s.transaction(ctx, func(tx *gorm.DB) error {
			calls++
			return &pgconn.PgError{Code: "40P01"}
		})
		require.Error(t, err)
		assert.True(t, isDeadlock(err))
		assert.Equal(t, 2, calls)
	})

	t.Run("Other Errors Not Retried", func(t *testing.T) {
		calls := 0
		err := s.transaction(ctx, func(tx *gorm.DB) error {
			calls++
			return errors.New("constraint failed")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}
