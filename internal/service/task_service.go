package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ops-console/internal/models"
	"ops-console/internal/store/types"
	"ops-console/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type TaskService struct {
	store types.Store
	nodes *NodeService
	log   zerolog.Logger
	now   func() time.Time
}

func NewTaskService(store types.Store, nodes *NodeService, logger *logger.Logger) *TaskService {
	return &TaskService{
		store: store,
		nodes: nodes,
		log:   logger.GetLogger("task-service"),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// NewTaskID 生成 task-<12位十六进制> 格式的任务ID
func NewTaskID() string {
	return "task-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// TaskDetail 任务及其完整事件轨迹
type TaskDetail struct {
	Task   *models.Task
	Events []*models.TaskEvent
}

// CreateTask 节点侧创建任务，节点必须属于调用方项目
func (s *TaskService) CreateTask(ctx context.Context, authProject, nodeID, taskType, payload string) (*models.Task, error) {
	if _, err := s.nodes.ResolveNode(ctx, authProject, nodeID); err != nil {
		return nil, err
	}
	return s.createTask(ctx, nodeID, taskType, payload)
}

// CreateTaskAsOperator 运维侧创建任务，不做项目归属校验
func (s *TaskService) CreateTaskAsOperator(ctx context.Context, nodeID, taskType, payload string) (*models.Task, error) {
	if _, err := s.nodes.GetNode(ctx, nodeID); err != nil {
		return nil, err
	}
	return s.createTask(ctx, nodeID, taskType, payload)
}

func (s *TaskService) createTask(ctx context.Context, nodeID, taskType, payload string) (*models.Task, error) {
	taskType = strings.TrimSpace(taskType)
	if taskType == "" {
		taskType = models.TaskTypePing
	}
	if strings.TrimSpace(payload) == "" {
		payload = models.EmptyPayload
	}

	now := s.now()
	task := &models.Task{
		ID:        NewTaskID(),
		NodeID:    nodeID,
		Type:      taskType,
		Payload:   payload,
		State:     models.TaskStateCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateTask(ctx, task, nil); err != nil {
		return nil, NewInternalError(fmt.Errorf("creating task: %w", err))
	}

	s.log.Info().
		Str("task_id", task.ID).
		Str("node_id", nodeID).
		Str("type", taskType).
		Msg("Task created")
	return task, nil
}

// PullTasks 认领节点下处于 stateFilter 的任务并置为 RUNNING
func (s *TaskService) PullTasks(ctx context.Context, authProject, nodeID, stateFilter string) ([]*models.Task, error) {
	from := models.TaskState(strings.ToUpper(strings.TrimSpace(stateFilter)))
	if from == "" {
		from = models.TaskStateCreated
	}
	if from != models.TaskStateCreated && from != models.TaskStateRunning {
		return nil, NewValidationError(CodeBadRequest, fmt.Sprintf("unsupported state filter: %s", stateFilter))
	}

	if _, err := s.nodes.ResolveNode(ctx, authProject, nodeID); err != nil {
		return nil, err
	}

	tasks, err := s.store.ClaimTasks(ctx, nodeID, from, s.now())
	if err != nil {
		return nil, NewInternalError(fmt.Errorf("claiming tasks: %w", err))
	}

	if len(tasks) > 0 {
		s.log.Info().
			Str("node_id", nodeID).
			Str("from", string(from)).
			Int("count", len(tasks)).
			Msg("Tasks dispatched")
	}
	return tasks, nil
}

// ReportTask 写入任务终态
//
// 与当前终态相同的重复上报直接确认，不重复记录事件；
// 其他越界变更（终态改写、未领取即上报）返回冲突。
func (s *TaskService) ReportTask(ctx context.Context, authProject, taskID, status, result string) error {
	state := models.TaskState(status)
	if !state.IsTerminal() {
		return NewValidationError(CodeInvalidStatus, "status must be SUCCEEDED or FAILED")
	}

	task, err := s.store.FinishTask(ctx, taskID, authProject, state, result, s.now())
	switch {
	case err == nil:
		s.log.Info().
			Str("task_id", taskID).
			Str("state", string(state)).
			Msg("Task finished")
		return nil
	case errors.Is(err, types.ErrTaskNotFound):
		return NewNotFoundError(CodeTaskNotFound, "task not found")
	case errors.Is(err, types.ErrAlreadyInState):
		s.log.Debug().Str("task_id", taskID).Str("state", string(state)).Msg("Duplicate task report acknowledged")
		return nil
	case errors.Is(err, types.ErrInvalidTransition):
		current := ""
		if task != nil {
			current = string(task.State)
		}
		s.log.Warn().
			Str("task_id", taskID).
			Str("current", current).
			Str("reported", string(state)).
			Msg("Rejected task report")
		return NewConflictError(CodeTaskConflict, fmt.Sprintf("task is %s and cannot move to %s", current, state))
	default:
		return NewInternalError(fmt.Errorf("reporting task: %w", err))
	}
}

func (s *TaskService) ListTasks(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error) {
	tasks, err := s.store.ListTasks(ctx, filter)
	if err != nil {
		return nil, NewInternalError(fmt.Errorf("listing tasks: %w", err))
	}
	return tasks, nil
}

func (s *TaskService) GetTask(ctx context.Context, taskID string) (*TaskDetail, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if errors.Is(err, types.ErrTaskNotFound) {
		return nil, NewNotFoundError(CodeTaskNotFound, "task not found")
	}
	if err != nil {
		return nil, NewInternalError(fmt.Errorf("querying task: %w", err))
	}

	events, err := s.store.ListTaskEvents(ctx, taskID)
	if err != nil {
		return nil, NewInternalError(fmt.Errorf("listing task events: %w", err))
	}
	return &TaskDetail{Task: task, Events: events}, nil
}
