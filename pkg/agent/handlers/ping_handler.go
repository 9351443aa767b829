package handlers

import (
	"context"

	"ops-console/pkg/types"

	"github.com/rs/zerolog"
)

// TaskTypePing 连通性探测任务
const TaskTypePing = "PING"

// PingHandler 收到即成功，用于验证下发链路
type PingHandler struct {
	logger zerolog.Logger
}

func NewPingHandler(logger zerolog.Logger) *PingHandler {
	return &PingHandler{
		logger: logger.With().Str("handler", "ping").Logger(),
	}
}

func (h *PingHandler) CanHandle(taskType string) bool {
	return taskType == TaskTypePing
}

func (h *PingHandler) Handle(ctx context.Context, task *types.Task) (*types.TaskResult, error) {
	h.logger.Debug().Str("task_id", task.TaskID).Msg("Pong")
	return &types.TaskResult{State: types.TaskStateSucceeded, Result: "{}"}, nil
}
