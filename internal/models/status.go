package models

type SystemStatus struct {
	TotalNodes   int                 `json:"nodes"`
	OnlineNodes  int                 `json:"online_nodes"`
	PendingTasks int64               `json:"tasks_pending"`
	TasksByState map[TaskState]int64 `json:"tasks_by_state"`
}
