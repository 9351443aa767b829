package handlers

import (
	"context"
	"errors"
	"testing"

	"ops-console/pkg/types"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type failingExecutor struct{}

func (failingExecutor) CanHandle(taskType string) bool { return taskType == "BROKEN" }

func (failingExecutor) Handle(ctx context.Context, task *types.Task) (*types.TaskResult, error) {
	return nil, errors.New("disk full")
}

func TestTaskHandler(t *testing.T) {
	h := NewTaskHandler(zerolog.Nop(), NewPingHandler(zerolog.Nop()))
	h.Register(failingExecutor{})
	ctx := context.Background()

	t.Run("Ping Succeeds", func(t *testing.T) {
		result := h.HandleTask(ctx, &types.Task{TaskID: "task-1", Type: "PING"})
		assert.Equal(t, types.TaskStateSucceeded, result.State)
		assert.Equal(t, "{}", result.Result)
	})

	t.Run("Unsupported Type Fails", func(t *testing.T) {
		result := h.HandleTask(ctx, &types.Task{TaskID: "task-2", Type: "REBOOT"})
		assert.Equal(t, types.TaskStateFailed, result.State)
		assert.JSONEq(t, `{"error": "unsupported type"}`, result.Result)
	})

	t.Run("Type Match Is Case Sensitive", func(t *testing.T) {
		result := h.HandleTask(ctx, &types.Task{TaskID: "task-4", Type: "ping"})
		assert.Equal(t, types.TaskStateFailed, result.State)
		assert.JSONEq(t, `{"error": "unsupported type"}`, result.Result)
	})

	t.Run("Executor Error Fails", func(t *testing.T) {
		result := h.HandleTask(ctx, &types.Task{TaskID: "task-3", Type: "BROKEN"})
		assert.Equal(t, types.TaskStateFailed, result.State)
		assert.JSONEq(t, `{"error": "disk full"}`, result.Result)
	})
}
