package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ops-console/internal/models"
	"ops-console/internal/store/types"
)

// Store 内存存储，单把锁保证每个操作的原子性，主要用于测试和本地调试
type Store struct {
	nodes  map[string]*models.Node
	tasks  map[string]*models.Task
	events []*models.TaskEvent
	lastID int64 // 事件自增ID
	mu     sync.RWMutex
}

func NewStore() *Store {
	return &Store{
		nodes: make(map[string]*models.Node),
		tasks: make(map[string]*models.Task),
	}
}

func copyNode(n *models.Node) *models.Node {
	c := *n
	c.Tags = append(models.Tags{}, n.Tags...)
	if n.LastSeen != nil {
		ts := *n.LastSeen
		c.LastSeen = &ts
	}
	if n.Version != nil {
		v := *n.Version
		c.Version = &v
	}
	return &c
}

func copyTask(t *models.Task) *models.Task {
	c := *t
	if t.Result != nil {
		r := *t.Result
		c.Result = &r
	}
	return &c
}

// appendEvent 调用方需持有写锁
func (s *Store) appendEvent(taskID string, state models.TaskState, message *string, ts time.Time) {
	s.lastID++
	s.events = append(s.events, &models.TaskEvent{
		ID:      s.lastID,
		TaskID:  taskID,
		State:   state,
		Message: message,
		TS:      ts,
	})
}

// Node 操作
func (s *Store) RegisterNode(ctx context.Context, node *models.Node) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.nodes[node.ID]
	if !ok {
		s.nodes[node.ID] = copyNode(node)
		return true, nil
	}
	if existing.ProjectKey != node.ProjectKey {
		return false, types.ErrProjectMismatch
	}

	existing.Name = node.Name
	existing.Tags = append(models.Tags{}, node.Tags...)
	existing.Version = node.Version
	existing.Status = node.Status
	existing.LastSeen = node.LastSeen
	return false, nil
}

func (s *Store) TouchNode(ctx context.Context, id, projectKey, status string, seenAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok || node.ProjectKey != projectKey {
		return types.ErrNodeNotFound
	}
	node.Status = status
	node.LastSeen = &seenAt
	return nil
}

func (s *Store) CreateNode(ctx context.Context, node *models.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.nodes[node.ID]; exists {
		return types.ErrNodeExists
	}
	s.nodes[node.ID] = copyNode(node)
	return nil
}

func (s *Store) GetNode(ctx context.Context, id string) (*models.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if node, exists := s.nodes[id]; exists {
		return copyNode(node), nil
	}
	return nil, types.ErrNodeNotFound
}

func (s *Store) ListNodes(ctx context.Context) ([]*models.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]*models.Node, 0, len(s.nodes))
	for _, node := range s.nodes {
		nodes = append(nodes, copyNode(node))
	}
	// 最近心跳在前，从未上线的排最后
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i].LastSeen, nodes[j].LastSeen
		switch {
		case a == nil && b == nil:
			return nodes[i].ID < nodes[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.After(*b)
	})
	return nodes, nil
}

func (s *Store) UpdateNode(ctx context.Context, node *models.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.nodes[node.ID]
	if !ok {
		return types.ErrNodeNotFound
	}
	existing.Name = node.Name
	existing.Tags = append(models.Tags{}, node.Tags...)
	return nil
}

func (s *Store) DeleteNode(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[id]; !ok {
		return types.ErrNodeNotFound
	}

	owned := make(map[string]struct{})
	for taskID, task := range s.tasks {
		if task.NodeID == id {
			owned[taskID] = struct{}{}
		}
	}

	kept := s.events[:0]
	for _, ev := range s.events {
		if _, drop := owned[ev.TaskID]; !drop {
			kept = append(kept, ev)
		}
	}
	s.events = kept

	for taskID := range owned {
		delete(s.tasks, taskID)
	}
	delete(s.nodes, id)
	return nil
}

// Task 操作
func (s *Store) CreateTask(ctx context.Context, task *models.Task, message *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks[task.ID] = copyTask(task)
	s.appendEvent(task.ID, task.State, message, task.CreatedAt)
	return nil
}

func (s *Store) GetTask(ctx context.Context, id string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, types.ErrTaskNotFound
	}
	return copyTask(task), nil
}

func (s *Store) ListTasks(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]*models.Task, 0)
	for _, task := range s.tasks {
		if filter.NodeID != "" && task.NodeID != filter.NodeID {
			continue
		}
		if filter.State != "" && task.State != filter.State {
			continue
		}
		tasks = append(tasks, copyTask(task))
	}

	sortKey := func(t *models.Task) time.Time {
		if filter.RecentlyUpdated {
			return t.UpdatedAt
		}
		return t.CreatedAt
	}
	sort.Slice(tasks, func(i, j int) bool {
		ki, kj := sortKey(tasks[i]), sortKey(tasks[j])
		if ki.Equal(kj) {
			return tasks[i].ID > tasks[j].ID
		}
		return ki.After(kj)
	})
	if filter.Limit > 0 && len(tasks) > filter.Limit {
		tasks = tasks[:filter.Limit]
	}
	return tasks, nil
}

func (s *Store) ClaimTasks(ctx context.Context, nodeID string, from models.TaskState, now time.Time) ([]*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var message *string
	if from == models.TaskStateRunning {
		msg := types.RedeliveredMessage
		message = &msg
	}

	claimed := make([]*models.Task, 0)
	for _, task := range s.tasks {
		if task.NodeID != nodeID || task.State != from {
			continue
		}
		task.State = models.TaskStateRunning
		task.UpdatedAt = now
		s.appendEvent(task.ID, models.TaskStateRunning, message, now)
		claimed = append(claimed, copyTask(task))
	}

	sort.Slice(claimed, func(i, j int) bool {
		return claimed[i].CreatedAt.Before(claimed[j].CreatedAt)
	})
	return claimed, nil
}

func (s *Store) FinishTask(ctx context.Context, taskID, projectKey string, state models.TaskState, result string, now time.Time) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, types.ErrTaskNotFound
	}
	node, ok := s.nodes[task.NodeID]
	if !ok || node.ProjectKey != projectKey {
		return nil, types.ErrTaskNotFound
	}

	if task.State == state {
		return copyTask(task), types.ErrAlreadyInState
	}
	if !task.State.CanTransitionTo(state) {
		return copyTask(task), types.ErrInvalidTransition
	}

	task.State = state
	task.Result = &result
	task.UpdatedAt = now
	s.appendEvent(task.ID, state, nil, now)
	return copyTask(task), nil
}

func (s *Store) ListTaskEvents(ctx context.Context, taskID string) ([]*models.TaskEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]*models.TaskEvent, 0)
	for _, ev := range s.events {
		if ev.TaskID == taskID {
			c := *ev
			events = append(events, &c)
		}
	}
	return events, nil
}

func (s *Store) CountTasksByState(ctx context.Context) (map[models.TaskState]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[models.TaskState]int64)
	for _, task := range s.tasks {
		counts[task.State]++
	}
	return counts, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close 实现 Store 接口
func (s *Store) Close() error {
	return nil
}

var _ types.Store = (*Store)(nil)
