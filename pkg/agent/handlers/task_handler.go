package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"ops-console/pkg/types"

	"github.com/rs/zerolog"
)

// Executor 某一类任务的执行器
type Executor interface {
	CanHandle(taskType string) bool
	Handle(ctx context.Context, task *types.Task) (*types.TaskResult, error)
}

// TaskHandler 按任务类型分发到已注册的执行器
type TaskHandler struct {
	logger    zerolog.Logger
	executors []Executor
}

// NewTaskHandler 创建任务处理器
func NewTaskHandler(logger zerolog.Logger, executors ...Executor) *TaskHandler {
	return &TaskHandler{
		logger:    logger,
		executors: executors,
	}
}

// Register 追加执行器，先注册的优先
func (h *TaskHandler) Register(executor Executor) {
	h.executors = append(h.executors, executor)
}

// HandleTask 执行单个任务，总是返回终态结果
func (h *TaskHandler) HandleTask(ctx context.Context, task *types.Task) *types.TaskResult {
	logger := h.logger.With().Str("task_id", task.TaskID).Str("type", task.Type).Logger()
	logger.Info().Msg("Processing task")

	for _, executor := range h.executors {
		if !executor.CanHandle(task.Type) {
			continue
		}

		result, err := executor.Handle(ctx, task)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to process task")
			return Failure(err.Error())
		}
		if result == nil || (result.State != types.TaskStateSucceeded && result.State != types.TaskStateFailed) {
			return Failure("executor returned no terminal result")
		}
		if result.Result == "" {
			result.Result = "{}"
		}
		return result
	}

	logger.Warn().Msg("No executor for task type")
	return Failure("unsupported type")
}

// Failure 构造 FAILED 结果，result 形如 {"error": "..."}
func Failure(message string) *types.TaskResult {
	data, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		data = []byte(fmt.Sprintf(`{"error": %q}`, message))
	}
	return &types.TaskResult{State: types.TaskStateFailed, Result: string(data)}
}
