package types

import "time"

// RegisterRequest 节点注册请求
type RegisterRequest struct {
	NodeID     string   `json:"node_id" binding:"required"`
	ProjectKey string   `json:"project_key" binding:"required"`
	Name       string   `json:"name"`
	Tags       []string `json:"tags"`
	Version    *string  `json:"version,omitempty"`
}

// RegisterResponse 注册响应，heartbeat_interval_sec 为服务端建议值
type RegisterResponse struct {
	OK                   bool      `json:"ok"`
	HeartbeatIntervalSec int       `json:"heartbeat_interval_sec"`
	ServerTime           time.Time `json:"server_time"`
}

type HeartbeatRequest struct {
	Status string `json:"status"`
}

type PullTasksResponse struct {
	OK    bool    `json:"ok"`
	Tasks []*Task `json:"tasks"`
}

type CreateTaskRequest struct {
	NodeID  string `json:"node_id" binding:"required"`
	Type    string `json:"type"`
	Payload string `json:"payload"`
}

type CreateTaskResponse struct {
	OK     bool   `json:"ok"`
	TaskID string `json:"task_id"`
}

type ReportTaskRequest struct {
	Status string `json:"status"`
	Result string `json:"result"`
}

// OKResponse 无数据的成功确认
type OKResponse struct {
	OK bool `json:"ok"`
}

// ErrorResponse 统一错误结构
type ErrorResponse struct {
	OK        bool   `json:"ok"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}
