package handlers

import (
	"errors"
	"io"
	"net/http"

	"ops-console/internal/api/middleware"
	"ops-console/internal/service"
	"ops-console/pkg/logger"
	"ops-console/pkg/types"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type NodeHandler struct {
	nodeService *service.NodeService
	taskService *service.TaskService
	log         zerolog.Logger
	errors      errorWriter
}

func NewNodeHandler(
	nodeService *service.NodeService,
	taskService *service.TaskService,
	logger *logger.Logger,
	production bool,
) *NodeHandler {
	log := logger.GetLogger("node-handler")
	return &NodeHandler{
		nodeService: nodeService,
		taskService: taskService,
		log:         log,
		errors:      errorWriter{log: log, production: production},
	}
}

// Register POST /api/nodes/register
func (h *NodeHandler) Register(c *gin.Context) {
	var req types.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("Failed to decode register request")
		h.errors.badRequest(c, "invalid register request: "+err.Error())
		return
	}

	res, err := h.nodeService.Register(c.Request.Context(), middleware.ProjectKey(c), service.RegisterNodeInput{
		NodeID:     req.NodeID,
		ProjectKey: req.ProjectKey,
		Name:       req.Name,
		Tags:       req.Tags,
		Version:    req.Version,
	})
	if err != nil {
		h.errors.respond(c, err)
		return
	}

	c.JSON(http.StatusOK, types.RegisterResponse{
		OK:                   true,
		HeartbeatIntervalSec: res.HeartbeatIntervalSec,
		ServerTime:           res.ServerTime,
	})
}

// Heartbeat POST /api/nodes/:node_id/heartbeat
func (h *NodeHandler) Heartbeat(c *gin.Context) {
	var req types.HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.errors.badRequest(c, "invalid heartbeat request: "+err.Error())
		return
	}

	if err := h.nodeService.Heartbeat(c.Request.Context(), middleware.ProjectKey(c), c.Param("node_id"), req.Status); err != nil {
		h.errors.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, types.OKResponse{OK: true})
}

// PullTasks GET /api/nodes/:node_id/tasks?state=CREATED
func (h *NodeHandler) PullTasks(c *gin.Context) {
	tasks, err := h.taskService.PullTasks(c.Request.Context(), middleware.ProjectKey(c), c.Param("node_id"), c.Query("state"))
	if err != nil {
		h.errors.respond(c, err)
		return
	}

	items := make([]*types.Task, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, toWireTask(t))
	}
	c.JSON(http.StatusOK, types.PullTasksResponse{OK: true, Tasks: items})
}
