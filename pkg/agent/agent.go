package agent

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"ops-console/pkg/agent/handlers"
	"ops-console/pkg/config"
	"ops-console/pkg/types"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/host"
)

// State Agent 生命周期状态
type State string

const (
	StateStarting State = "STARTING"
	StateRunning  State = "RUNNING"
	StateStopped  State = "STOPPED"
)

const (
	registerTimeout = 30 * time.Second
	// reportTimeout 关闭过程中回传在途任务的最长等待
	reportTimeout = 20 * time.Second
)

// Agent 代表一个受控节点
type Agent struct {
	config  *config.AgentConfig
	logger  zerolog.Logger
	client  *Client
	version string

	// 任务处理
	taskHandler *handlers.TaskHandler

	mu    sync.RWMutex
	state State
	wg    sync.WaitGroup
}

// New 创建新的 Agent 实例，默认注册 PING 执行器
func New(cfg *config.AgentConfig, logger zerolog.Logger, version string) *Agent {
	logger = logger.With().Str("node_id", cfg.NodeID).Logger()
	return &Agent{
		config:      cfg,
		logger:      logger,
		client:      NewClient(cfg.ConsoleBaseURL, cfg.NodeToken, logger),
		version:     version,
		taskHandler: handlers.NewTaskHandler(logger, handlers.NewPingHandler(logger)),
		state:       StateStarting,
	}
}

// RegisterHandler 注册额外的任务执行器
func (a *Agent) RegisterHandler(executor handlers.Executor) {
	a.taskHandler.Register(executor)
}

func (a *Agent) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

func (a *Agent) setState(state State) {
	a.mu.Lock()
	a.state = state
	a.mu.Unlock()
	a.logger.Debug().Str("state", string(state)).Msg("Agent state changed")
}

// Run 注册后运行心跳与任务循环，直到 ctx 取消
//
// 注册失败直接返回错误；其余请求失败只记录日志，在下一个周期重试。
func (a *Agent) Run(ctx context.Context) error {
	a.setState(StateStarting)
	a.logger.Info().Str("console", a.config.ConsoleBaseURL).Msg("Agent starting")

	if err := a.register(ctx); err != nil {
		a.setState(StateStopped)
		return fmt.Errorf("registering node: %w", err)
	}
	a.setState(StateRunning)

	// 上次退出时未回传的任务
	a.processTasks(ctx, types.TaskStateRunning)

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.heartbeatLoop(ctx)
	}()
	go func() {
		defer a.wg.Done()
		a.workLoop(ctx)
	}()

	a.wg.Wait()
	a.setState(StateStopped)
	a.logger.Info().Msg("Agent stopped")
	return nil
}

func (a *Agent) register(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, registerTimeout)
	defer cancel()

	version := a.version
	resp, err := a.client.Register(ctx, &types.RegisterRequest{
		NodeID:     a.config.NodeID,
		ProjectKey: a.config.ProjectKey,
		Name:       a.config.NodeName,
		Tags:       hostTags(),
		Version:    &version,
	})
	if err != nil {
		return err
	}

	a.logger.Info().
		Int("suggested_heartbeat_sec", resp.HeartbeatIntervalSec).
		Time("server_time", resp.ServerTime).
		Msg("Node registered")
	return nil
}

// heartbeatLoop 先等待一个周期再发送心跳
func (a *Agent) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(a.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.client.Heartbeat(ctx, a.config.NodeID, "online"); err != nil {
				if ctx.Err() != nil {
					return
				}
				a.logger.Error().Err(err).Msg("Heartbeat failed")
				continue
			}
			a.logger.Debug().Msg("Heartbeat ok")
		}
	}
}

// workLoop 周期拉取 CREATED 任务并逐个执行、回传
func (a *Agent) workLoop(ctx context.Context) {
	ticker := time.NewTicker(a.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.processTasks(ctx, types.TaskStateCreated)
		}
	}
}

func (a *Agent) processTasks(ctx context.Context, state types.TaskState) {
	tasks, err := a.client.PullTasks(ctx, a.config.NodeID, state)
	if err != nil {
		if ctx.Err() == nil {
			a.logger.Error().Err(err).Str("state", string(state)).Msg("Pulling tasks failed")
		}
		return
	}
	if len(tasks) > 0 {
		a.logger.Info().Int("count", len(tasks)).Str("state", string(state)).Msg("Tasks pulled")
	}

	for _, task := range tasks {
		if task.TaskID == "" {
			continue
		}
		// 收到退出信号后不再开始新任务，剩余任务保持 RUNNING，由下次启动恢复
		if ctx.Err() != nil {
			a.logger.Info().Str("task_id", task.TaskID).Msg("Shutting down, task left for recovery")
			return
		}
		a.executeAndReport(ctx, task)
	}
}

func (a *Agent) executeAndReport(ctx context.Context, task *types.Task) {
	detached := context.WithoutCancel(ctx)
	result := a.taskHandler.HandleTask(detached, task)

	reportCtx, cancel := context.WithTimeout(detached, reportTimeout)
	defer cancel()

	logger := a.logger.With().Str("task_id", task.TaskID).Str("status", string(result.State)).Logger()
	if err := a.client.ReportTask(reportCtx, task.TaskID, result); err != nil {
		logger.Error().Err(err).Msg("Reporting task failed")
		return
	}
	logger.Info().Msg("Task reported")
}

// hostTags 注册时上报的主机标签
func hostTags() []string {
	info, err := host.Info()
	if err != nil || info == nil {
		return []string{"os:" + runtime.GOOS, "arch:" + runtime.GOARCH}
	}

	arch := info.KernelArch
	if arch == "" {
		arch = runtime.GOARCH
	}
	tags := []string{"os:" + info.OS}
	if info.Platform != "" {
		tags = append(tags, "platform:"+info.Platform)
	}
	return append(tags, "arch:"+arch)
}
