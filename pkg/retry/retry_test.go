package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("connection refused")

func TestDo(t *testing.T) {
	t.Run("Stops On Success", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), Config{MaxAttempts: 3, Delay: time.Millisecond}, func() error {
			calls++
			if calls < 2 {
				return errTransient
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("Returns Last Error", func(t *testing.T) {
		calls := 0
		var retried []int
		err := Do(context.Background(), Config{
			MaxAttempts: 3,
			Delay:       time.Millisecond,
			OnRetry:     func(attempt int, err error) { retried = append(retried, attempt) },
		}, func() error {
			calls++
			return errTransient
		})
		assert.ErrorIs(t, err, errTransient)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []int{1, 2}, retried)
	})

	t.Run("Non Retryable Error", func(t *testing.T) {
		permanent := errors.New("bad request")
		calls := 0
		err := Do(context.Background(), Config{
			MaxAttempts: 3,
			Delay:       time.Millisecond,
			Retryable:   func(err error) bool { return !errors.Is(err, permanent) },
		}, func() error {
			calls++
			return permanent
		})
		assert.ErrorIs(t, err, permanent)
		assert.Equal(t, 1, calls)
	})

	t.Run("Context Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		defer cancel()

		err := Do(ctx, Config{MaxAttempts: 10, Delay: time.Second}, func() error {
			return errTransient
		})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
