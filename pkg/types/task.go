package types

import "time"

// TaskState 任务状态，与控制台保持一致
type TaskState string

const (
	TaskStateCreated   TaskState = "CREATED"
	TaskStateRunning   TaskState = "RUNNING"
	TaskStateSucceeded TaskState = "SUCCEEDED"
	TaskStateFailed    TaskState = "FAILED"
)

// Task 拉取接口返回的任务条目
type Task struct {
	TaskID    string    `json:"task_id"`
	NodeID    string    `json:"node_id"`
	Type      string    `json:"type"`
	Payload   string    `json:"payload"`
	State     TaskState `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TaskResult 执行器输出：终态与结果 JSON
type TaskResult struct {
	State  TaskState `json:"status"`
	Result string    `json:"result"`
}
