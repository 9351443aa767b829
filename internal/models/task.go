package models

import (
	"time"
)

type TaskState string

const (
	TaskStateCreated   TaskState = "CREATED"
	TaskStateRunning   TaskState = "RUNNING"
	TaskStateSucceeded TaskState = "SUCCEEDED"
	TaskStateFailed    TaskState = "FAILED"
)

const TaskTypePing = "PING"

// EmptyPayload 任务未携带负载时的默认值
const EmptyPayload = "{}"

// IsTerminal reports whether no further transition is allowed.
func (s TaskState) IsTerminal() bool {
	return s == TaskStateSucceeded || s == TaskStateFailed
}

func (s TaskState) IsValid() bool {
	switch s {
	case TaskStateCreated, TaskStateRunning, TaskStateSucceeded, TaskStateFailed:
		return true
	}
	return false
}

// CanTransitionTo 任务状态只能单向推进：CREATED -> RUNNING -> SUCCEEDED/FAILED
func (s TaskState) CanTransitionTo(next TaskState) bool {
	switch s {
	case TaskStateCreated:
		return next == TaskStateRunning
	case TaskStateRunning:
		return next == TaskStateSucceeded || next == TaskStateFailed
	}
	return false
}

type Task struct {
	ID        string    `gorm:"primaryKey;size:64" json:"task_id"`
	NodeID    string    `gorm:"size:64;not null;index" json:"node_id"`
	Type      string    `gorm:"size:32;not null" json:"type"`
	Payload   string    `gorm:"column:payload_json;type:text;not null" json:"payload"`
	Result    *string   `gorm:"column:result_json;type:text" json:"result,omitempty"`
	State     TaskState `gorm:"size:16;not null;index" json:"state"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Task) TableName() string { return "tasks" }

// TaskEvent 任务状态变更审计记录，只追加不修改
type TaskEvent struct {
	ID      int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskID  string    `gorm:"size:64;not null;index" json:"task_id"`
	State   TaskState `gorm:"size:16;not null" json:"state"`
	Message *string   `gorm:"type:text" json:"message,omitempty"`
	TS      time.Time `gorm:"column:ts;not null" json:"ts"`
}

func (TaskEvent) TableName() string { return "task_events" }

type TaskFilter struct {
	NodeID string
	State  TaskState
	Limit  int
	// RecentlyUpdated 为 true 时按 updated_at 倒序，否则按 created_at 倒序
	RecentlyUpdated bool
}
