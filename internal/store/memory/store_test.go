package memory

import (
	"testing"

	"ops-console/internal/store/storetest"
	"ops-console/internal/store/types"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) types.Store {
		return NewStore()
	})
}
