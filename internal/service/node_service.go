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

	"github.com/rs/zerolog"
)

// NodeSettings 节点相关的服务端参数
type NodeSettings struct {
	HeartbeatInterval time.Duration
	OfflineThreshold  time.Duration
	// DefaultProjectKey 运维新建节点未填项目时使用
	DefaultProjectKey string
}

type NodeService struct {
	store    types.Store
	settings NodeSettings
	log      zerolog.Logger
	now      func() time.Time
}

func NewNodeService(store types.Store, settings NodeSettings, logger *logger.Logger) *NodeService {
	if settings.OfflineThreshold <= 0 {
		settings.OfflineThreshold = models.DefaultOfflineThreshold
	}
	return &NodeService{
		store:    store,
		settings: settings,
		log:      logger.GetLogger("node-service"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type RegisterNodeInput struct {
	NodeID     string
	ProjectKey string
	Name       string
	Tags       []string
	Version    *string
}

type RegisterNodeResult struct {
	HeartbeatIntervalSec int
	ServerTime           time.Time
	Created              bool
}

// NodeView 节点及其推导出的在线状态
type NodeView struct {
	*models.Node
	Liveness      models.NodeStatus
	DisplayStatus string
}

// Register 节点注册，同一项目内幂等
func (s *NodeService) Register(ctx context.Context, authProject string, in RegisterNodeInput) (*RegisterNodeResult, error) {
	if in.ProjectKey != authProject {
		return nil, NewForbiddenError(CodeProjectKeyMismatch, "project_key does not match token")
	}
	if strings.TrimSpace(in.NodeID) == "" {
		return nil, NewValidationError(CodeBadRequest, "node_id is required")
	}

	now := s.now()
	name := in.Name
	if name == "" {
		name = in.NodeID
	}
	node := &models.Node{
		ID:         in.NodeID,
		ProjectKey: in.ProjectKey,
		Name:       name,
		Tags:       models.Tags(in.Tags),
		Version:    in.Version,
		LastSeen:   &now,
		Status:     string(models.NodeStatusOnline),
	}
	if node.Tags == nil {
		node.Tags = models.Tags{}
	}

	created, err := s.store.RegisterNode(ctx, node)
	if errors.Is(err, types.ErrProjectMismatch) {
		s.log.Warn().
			Str("node_id", in.NodeID).
			Str("project_key", authProject).
			Msg("Rejected registration for node owned by another project")
		return nil, NewForbiddenError(CodeForbidden, "node_id is registered under another project")
	}
	if err != nil {
		return nil, NewInternalError(fmt.Errorf("registering node: %w", err))
	}

	s.log.Info().
		Str("node_id", in.NodeID).
		Str("project_key", in.ProjectKey).
		Bool("created", created).
		Msg("Node registered")

	return &RegisterNodeResult{
		HeartbeatIntervalSec: int(s.settings.HeartbeatInterval / time.Second),
		ServerTime:           now,
		Created:              created,
	}, nil
}

// Heartbeat 刷新 last_seen 与上报状态；其他项目的节点按不存在处理
func (s *NodeService) Heartbeat(ctx context.Context, authProject, nodeID, status string) error {
	if status == "" {
		status = string(models.NodeStatusOnline)
	}

	err := s.store.TouchNode(ctx, nodeID, authProject, status, s.now())
	if errors.Is(err, types.ErrNodeNotFound) {
		return NewNotFoundError(CodeNodeNotFound, "node not found")
	}
	if err != nil {
		return NewInternalError(fmt.Errorf("recording heartbeat: %w", err))
	}

	s.log.Debug().Str("node_id", nodeID).Str("status", status).Msg("Heartbeat received")
	return nil
}

// ResolveNode 返回属于 authProject 的节点
func (s *NodeService) ResolveNode(ctx context.Context, authProject, nodeID string) (*models.Node, error) {
	node, err := s.GetNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if node.ProjectKey != authProject {
		return nil, NewNotFoundError(CodeNodeNotFound, "node not found")
	}
	return node, nil
}

func (s *NodeService) GetNode(ctx context.Context, nodeID string) (*models.Node, error) {
	node, err := s.store.GetNode(ctx, nodeID)
	if errors.Is(err, types.ErrNodeNotFound) {
		return nil, NewNotFoundError(CodeNodeNotFound, "node not found")
	}
	if err != nil {
		return nil, NewInternalError(fmt.Errorf("querying node: %w", err))
	}
	return node, nil
}

// View 为节点附加在线状态
func (s *NodeService) View(node *models.Node) NodeView {
	now := s.now()
	return NodeView{
		Node:          node,
		Liveness:      node.Liveness(s.settings.OfflineThreshold, now),
		DisplayStatus: node.DisplayStatus(s.settings.OfflineThreshold, now),
	}
}

// ListNodes 按最近心跳倒序列出节点
func (s *NodeService) ListNodes(ctx context.Context) ([]NodeView, error) {
	nodes, err := s.store.ListNodes(ctx)
	if err != nil {
		return nil, NewInternalError(fmt.Errorf("listing nodes: %w", err))
	}

	views := make([]NodeView, 0, len(nodes))
	for _, node := range nodes {
		views = append(views, s.View(node))
	}
	return views, nil
}

type CreateNodeInput struct {
	NodeID     string
	Name       string
	ProjectKey string
}

// CreateNode 运维侧预建节点，首次心跳前保持离线
func (s *NodeService) CreateNode(ctx context.Context, in CreateNodeInput) (*models.Node, error) {
	id := strings.TrimSpace(in.NodeID)
	if id == "" {
		return nil, NewValidationError(CodeBadRequest, "node_id is required")
	}
	project := strings.TrimSpace(in.ProjectKey)
	if project == "" {
		project = s.settings.DefaultProjectKey
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = id
	}

	node := &models.Node{
		ID:         id,
		ProjectKey: project,
		Name:       name,
		Tags:       models.Tags{},
		Status:     string(models.NodeStatusOffline),
	}
	err := s.store.CreateNode(ctx, node)
	if errors.Is(err, types.ErrNodeExists) {
		return nil, NewConflictError(CodeNodeExists, fmt.Sprintf("node id already exists: %s", id))
	}
	if err != nil {
		return nil, NewInternalError(fmt.Errorf("creating node: %w", err))
	}

	s.log.Info().Str("node_id", id).Str("project_key", project).Msg("Node created by operator")
	return node, nil
}

// UpdateNode 修改名称与标签；project_key 创建后不可修改
func (s *NodeService) UpdateNode(ctx context.Context, nodeID, name string, tags []string) (*models.Node, error) {
	node, err := s.GetNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if name = strings.TrimSpace(name); name != "" {
		node.Name = name
	}
	if tags != nil {
		node.Tags = models.Tags(tags)
	}

	err = s.store.UpdateNode(ctx, node)
	if errors.Is(err, types.ErrNodeNotFound) {
		return nil, NewNotFoundError(CodeNodeNotFound, "node not found")
	}
	if err != nil {
		return nil, NewInternalError(fmt.Errorf("updating node: %w", err))
	}
	return node, nil
}

// DeleteNode 删除节点及其全部任务和事件
func (s *NodeService) DeleteNode(ctx context.Context, nodeID string) error {
	err := s.store.DeleteNode(ctx, nodeID)
	if errors.Is(err, types.ErrNodeNotFound) {
		return NewNotFoundError(CodeNodeNotFound, "node not found")
	}
	if err != nil {
		return NewInternalError(fmt.Errorf("deleting node: %w", err))
	}

	s.log.Info().Str("node_id", nodeID).Msg("Node deleted")
	return nil
}

func (s *NodeService) OfflineThreshold() time.Duration {
	return s.settings.OfflineThreshold
}

func (s *NodeService) DefaultProjectKey() string {
	return s.settings.DefaultProjectKey
}
