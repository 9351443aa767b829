package types

import (
	"context"
	"errors"
	"time"

	"ops-console/internal/models"
)

var (
	ErrNodeNotFound    = errors.New("node not found")
	ErrNodeExists      = errors.New("node already exists")
	ErrTaskNotFound    = errors.New("task not found")
	ErrProjectMismatch = errors.New("node belongs to another project")
	// ErrAlreadyInState 上报的终态与任务当前状态一致（重复上报）
	ErrAlreadyInState    = errors.New("task already in requested state")
	ErrInvalidTransition = errors.New("invalid task state transition")
)

// Store 定义了存储层接口
//
// 每个写操作在实现内部作为一个事务提交：要么全部生效，要么全部回滚。
type Store interface {
	// Node operations
	RegisterNode(ctx context.Context, node *models.Node) (created bool, err error)
	TouchNode(ctx context.Context, id, projectKey, status string, seenAt time.Time) error
	CreateNode(ctx context.Context, node *models.Node) error
	GetNode(ctx context.Context, id string) (*models.Node, error)
	ListNodes(ctx context.Context) ([]*models.Node, error)
	UpdateNode(ctx context.Context, node *models.Node) error
	DeleteNode(ctx context.Context, id string) error

	// Task operations
	CreateTask(ctx context.Context, task *models.Task, message *string) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	ListTasks(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error)
	ClaimTasks(ctx context.Context, nodeID string, from models.TaskState, now time.Time) ([]*models.Task, error)
	FinishTask(ctx context.Context, taskID, projectKey string, state models.TaskState, result string, now time.Time) (*models.Task, error)
	ListTaskEvents(ctx context.Context, taskID string) ([]*models.TaskEvent, error)
	CountTasksByState(ctx context.Context) (map[models.TaskState]int64, error)

	Ping(ctx context.Context) error

	// Close releases any resources held by the store
	Close() error
}

// RedeliveredMessage 重新拉取 RUNNING 任务时写入事件的说明
const RedeliveredMessage = "redelivered"

// Config 存储配置
type Config struct {
	Type     string         `yaml:"type"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
	MySQL    MySQLConfig    `yaml:"mysql"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}
