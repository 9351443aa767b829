package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ops-console/internal/models"
	"ops-console/internal/store/types"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store 通用GORM存储实现，SQLite/PostgreSQL/MySQL 共用
type Store struct {
	db *gorm.DB
	// 方言支持 SELECT ... FOR UPDATE 时启用行锁
	rowLocking bool
}

// New 创建GORM存储实例并迁移表结构
func New(dialector gorm.Dialector) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	switch db.Dialector.Name() {
	case "postgres", "mysql":
		s.rowLocking = true
	}

	if err := s.initialize(); err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}
	return s, nil
}

// DB 暴露底层连接，供具体驱动调整连接池
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) initialize() error {
	if err := s.db.AutoMigrate(&models.Node{}, &models.Task{}, &models.TaskEvent{}); err != nil {
		return fmt.Errorf("auto migrating tables: %w", err)
	}
	return nil
}

func (s *Store) forUpdate(tx *gorm.DB, table string) *gorm.DB {
	if !s.rowLocking {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: table}})
}

// RegisterNode 幂等注册：不存在则创建，存在且同项目则更新元数据
func (s *Store) RegisterNode(ctx context.Context, node *models.Node) (bool, error) {
	created := false
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		created = false
		var existing models.Node
		err := s.forUpdate(tx, "nodes").Where("id = ?", node.ID).Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(node)
			if res.Error != nil {
				return fmt.Errorf("inserting node: %w", res.Error)
			}
			if res.RowsAffected == 1 {
				created = true
				return nil
			}
			// 并发注册抢先插入，按已存在节点处理
			if err := s.forUpdate(tx, "nodes").Where("id = ?", node.ID).Take(&existing).Error; err != nil {
				return fmt.Errorf("querying node: %w", err)
			}
		case err != nil:
			return fmt.Errorf("querying node: %w", err)
		}

		if existing.ProjectKey != node.ProjectKey {
			return types.ErrProjectMismatch
		}

		err = tx.Model(&models.Node{}).Where("id = ?", node.ID).Updates(map[string]interface{}{
			"name":      node.Name,
			"tags_json": node.Tags,
			"version":   node.Version,
			"status":    node.Status,
			"last_seen": node.LastSeen,
		}).Error
		if err != nil {
			return fmt.Errorf("updating node: %w", err)
		}
		return nil
	})
	return created, err
}

func (s *Store) TouchNode(ctx context.Context, id, projectKey, status string, seenAt time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Node{}).
		Where("id = ? AND project_key = ?", id, projectKey).
		Updates(map[string]interface{}{"status": status, "last_seen": seenAt})
	if res.Error != nil {
		return fmt.Errorf("updating heartbeat: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return types.ErrNodeNotFound
	}
	return nil
}

func (s *Store) CreateNode(ctx context.Context, node *models.Node) error {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(node)
	if res.Error != nil {
		return fmt.Errorf("inserting node: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return types.ErrNodeExists
	}
	return nil
}

func (s *Store) GetNode(ctx context.Context, id string) (*models.Node, error) {
	var node models.Node
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&node).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.ErrNodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying node: %w", err)
	}
	return &node, nil
}

func (s *Store) ListNodes(ctx context.Context) ([]*models.Node, error) {
	var nodes []*models.Node
	err := s.db.WithContext(ctx).
		Order("CASE WHEN last_seen IS NULL THEN 1 ELSE 0 END").
		Order("last_seen DESC").
		Order("id").
		Find(&nodes).Error
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}
	return nodes, nil
}

// UpdateNode 运维侧修改节点，project_key 不可变
func (s *Store) UpdateNode(ctx context.Context, node *models.Node) error {
	res := s.db.WithContext(ctx).Model(&models.Node{}).Where("id = ?", node.ID).
		Updates(map[string]interface{}{"name": node.Name, "tags_json": node.Tags})
	if res.Error != nil {
		return fmt.Errorf("updating node: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return types.ErrNodeNotFound
	}
	return nil
}

// DeleteNode 级联删除：先事件、再任务、最后节点，同一事务
func (s *Store) DeleteNode(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Node{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("querying node: %w", err)
		}
		if count == 0 {
			return types.ErrNodeNotFound
		}

		var taskIDs []string
		if err := tx.Model(&models.Task{}).Where("node_id = ?", id).Pluck("id", &taskIDs).Error; err != nil {
			return fmt.Errorf("listing node tasks: %w", err)
		}
		if len(taskIDs) > 0 {
			if err := tx.Where("task_id IN ?", taskIDs).Delete(&models.TaskEvent{}).Error; err != nil {
				return fmt.Errorf("deleting task events: %w", err)
			}
		}
		if err := tx.Where("node_id = ?", id).Delete(&models.Task{}).Error; err != nil {
			return fmt.Errorf("deleting tasks: %w", err)
		}
		if err := tx.Where("id = ?", id).Delete(&models.Node{}).Error; err != nil {
			return fmt.Errorf("deleting node: %w", err)
		}
		return nil
	})
}

// CreateTask 任务与 CREATED 事件同一事务写入
func (s *Store) CreateTask(ctx context.Context, task *models.Task, message *string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(task).Error; err != nil {
			return fmt.Errorf("inserting task: %w", err)
		}
		event := &models.TaskEvent{TaskID: task.ID, State: task.State, Message: message, TS: task.CreatedAt}
		if err := tx.Create(event).Error; err != nil {
			return fmt.Errorf("inserting task event: %w", err)
		}
		return nil
	})
}

func (s *Store) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying task: %w", err)
	}
	return &task, nil
}

func (s *Store) ListTasks(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error) {
	q := s.db.WithContext(ctx).Model(&models.Task{})
	if filter.NodeID != "" {
		q = q.Where("node_id = ?", filter.NodeID)
	}
	if filter.State != "" {
		q = q.Where("state = ?", filter.State)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	order := "created_at DESC"
	if filter.RecentlyUpdated {
		order = "updated_at DESC"
	}

	var tasks []*models.Task
	if err := q.Order(order).Order("id DESC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	return tasks, nil
}

// ClaimTasks 将节点下处于 from 状态的任务批量置为 RUNNING 并返回
//
// 先加行锁读取，再逐条带原状态条件更新；只有真正更新成功的任务才会返回，
// 并发拉取不会拿到同一任务。
func (s *Store) ClaimTasks(ctx context.Context, nodeID string, from models.TaskState, now time.Time) ([]*models.Task, error) {
	var message *string
	if from == models.TaskStateRunning {
		msg := types.RedeliveredMessage
		message = &msg
	}

	var claimed []*models.Task
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		claimed = make([]*models.Task, 0)
		var candidates []*models.Task
		err := s.forUpdate(tx, "tasks").
			Where("node_id = ? AND state = ?", nodeID, from).
			Order("created_at").
			Find(&candidates).Error
		if err != nil {
			return fmt.Errorf("selecting tasks: %w", err)
		}

		for _, task := range candidates {
			res := tx.Model(&models.Task{}).
				Where("id = ? AND state = ?", task.ID, from).
				Updates(map[string]interface{}{"state": models.TaskStateRunning, "updated_at": now})
			if res.Error != nil {
				return fmt.Errorf("claiming task %s: %w", task.ID, res.Error)
			}
			if res.RowsAffected == 0 {
				continue
			}

			event := &models.TaskEvent{TaskID: task.ID, State: models.TaskStateRunning, Message: message, TS: now}
			if err := tx.Create(event).Error; err != nil {
				return fmt.Errorf("inserting task event: %w", err)
			}
			task.State = models.TaskStateRunning
			task.UpdatedAt = now
			claimed = append(claimed, task)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// FinishTask 写入终态与结果，任务必须属于 projectKey 下的节点
func (s *Store) FinishTask(ctx context.Context, taskID, projectKey string, state models.TaskState, result string, now time.Time) (*models.Task, error) {
	var task models.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := s.forUpdate(tx, "tasks").
			Select("tasks.*").
			Joins("JOIN nodes ON nodes.id = tasks.node_id").
			Where("tasks.id = ? AND nodes.project_key = ?", taskID, projectKey).
			Take(&task).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.ErrTaskNotFound
		}
		if err != nil {
			return fmt.Errorf("querying task: %w", err)
		}

		if task.State == state {
			return types.ErrAlreadyInState
		}
		if !task.State.CanTransitionTo(state) {
			return types.ErrInvalidTransition
		}

		res := tx.Model(&models.Task{}).
			Where("id = ? AND state = ?", task.ID, task.State).
			Updates(map[string]interface{}{"state": state, "result_json": result, "updated_at": now})
		if res.Error != nil {
			return fmt.Errorf("updating task: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return types.ErrInvalidTransition
		}

		if err := tx.Create(&models.TaskEvent{TaskID: task.ID, State: state, TS: now}).Error; err != nil {
			return fmt.Errorf("inserting task event: %w", err)
		}

		task.State = state
		task.Result = &result
		task.UpdatedAt = now
		return nil
	})

	switch {
	case err == nil:
		return &task, nil
	case errors.Is(err, types.ErrAlreadyInState), errors.Is(err, types.ErrInvalidTransition):
		return &task, err
	default:
		return nil, err
	}
}

func (s *Store) ListTaskEvents(ctx context.Context, taskID string) ([]*models.TaskEvent, error) {
	var events []*models.TaskEvent
	if err := s.db.WithContext(ctx).Where("task_id = ?", taskID).Order("id").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("listing task events: %w", err)
	}
	return events, nil
}

func (s *Store) CountTasksByState(ctx context.Context) (map[models.TaskState]int64, error) {
	var rows []struct {
		State models.TaskState
		Total int64
	}
	err := s.db.WithContext(ctx).Model(&models.Task{}).
		Select("state, COUNT(*) AS total").
		Group("state").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("counting tasks: %w", err)
	}

	counts := make(map[models.TaskState]int64, len(rows))
	for _, r := range rows {
		counts[r.State] = r.Total
	}
	return counts, nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting database handle: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting database handle: %w", err)
	}
	return sqlDB.Close()
}

var _ types.Store = (*Store)(nil)
