package handlers

import (
	"net/http"

	"ops-console/internal/api/middleware"
	"ops-console/internal/models"
	"ops-console/internal/service"
	"ops-console/pkg/logger"
	"ops-console/pkg/types"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type TaskHandler struct {
	taskService *service.TaskService
	log         zerolog.Logger
	errors      errorWriter
}

func NewTaskHandler(
	taskService *service.TaskService,
	logger *logger.Logger,
	production bool,
) *TaskHandler {
	log := logger.GetLogger("task-handler")
	return &TaskHandler{
		taskService: taskService,
		log:         log,
		errors:      errorWriter{log: log, production: production},
	}
}

// CreateTask POST /api/tasks/create
func (h *TaskHandler) CreateTask(c *gin.Context) {
	var req types.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errors.badRequest(c, "invalid create request: "+err.Error())
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), middleware.ProjectKey(c), req.NodeID, req.Type, req.Payload)
	if err != nil {
		h.errors.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, types.CreateTaskResponse{OK: true, TaskID: task.ID})
}

// ReportTask POST /api/tasks/:task_id/report
func (h *TaskHandler) ReportTask(c *gin.Context) {
	var req types.ReportTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errors.badRequest(c, "invalid report request: "+err.Error())
		return
	}
	if req.Result == "" {
		req.Result = models.EmptyPayload
	}

	err := h.taskService.ReportTask(c.Request.Context(), middleware.ProjectKey(c), c.Param("task_id"), req.Status, req.Result)
	if err != nil {
		h.errors.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, types.OKResponse{OK: true})
}
