package service

import (
	"context"
	"fmt"

	"ops-console/internal/models"
	"ops-console/internal/store/types"
)

type StatusService struct {
	store types.Store
	nodes *NodeService
}

func NewStatusService(store types.Store, nodes *NodeService) *StatusService {
	return &StatusService{store: store, nodes: nodes}
}

// GetSystemStatus 汇总节点在线数（按心跳推导）与各状态任务数
func (s *StatusService) GetSystemStatus(ctx context.Context) (*models.SystemStatus, error) {
	nodes, err := s.nodes.ListNodes(ctx)
	if err != nil {
		return nil, err
	}

	counts, err := s.store.CountTasksByState(ctx)
	if err != nil {
		return nil, NewInternalError(fmt.Errorf("counting tasks: %w", err))
	}

	onlineCount := 0
	for _, node := range nodes {
		if node.Liveness == models.NodeStatusOnline {
			onlineCount++
		}
	}

	return &models.SystemStatus{
		TotalNodes:   len(nodes),
		OnlineNodes:  onlineCount,
		PendingTasks: counts[models.TaskStateCreated] + counts[models.TaskStateRunning],
		TasksByState: counts,
	}, nil
}

// Ping 检查存储可用性
func (s *StatusService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
