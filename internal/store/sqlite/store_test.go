package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"ops-console/internal/store/storetest"
	"ops-console/internal/store/types"
)

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) types.Store {
		s, err := NewStore(types.SQLiteConfig{Path: filepath.Join(t.TempDir(), "console.db")})
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestSQLiteStoreRequiresPath(t *testing.T) {
	_, err := NewStore(types.SQLiteConfig{})
	require.Error(t, err)
}
