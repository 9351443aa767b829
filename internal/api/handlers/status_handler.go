package handlers

import (
	"context"
	"net/http"
	"time"

	"ops-console/internal/service"
	"ops-console/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	healthTimeout    = 3 * time.Second
	healthErrorLimit = 200
)

type StatusHandler struct {
	statusService *service.StatusService
	log           zerolog.Logger
	errors        errorWriter
}

func NewStatusHandler(
	statusService *service.StatusService,
	logger *logger.Logger,
	production bool,
) *StatusHandler {
	log := logger.GetLogger("status-handler")
	return &StatusHandler{
		statusService: statusService,
		log:           log,
		errors:        errorWriter{log: log, production: production},
	}
}

// Health GET /health，包含数据库连通性检查
func (h *StatusHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if err := h.statusService.Ping(ctx); err != nil {
		msg := truncate(err.Error(), healthErrorLimit)
		h.log.Warn().Err(err).Msg("Health check failed")
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "db": "fail", "error": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "db": "ok"})
}

// GetSystemStatus GET /api/admin/status
func (h *StatusHandler) GetSystemStatus(c *gin.Context) {
	h.log.Debug().Msg("Retrieving system status")

	status, err := h.statusService.GetSystemStatus(c.Request.Context())
	if err != nil {
		h.errors.respond(c, err)
		return
	}

	h.log.Debug().
		Int("total_nodes", status.TotalNodes).
		Int("online_nodes", status.OnlineNodes).
		Int64("pending_tasks", status.PendingTasks).
		Msg("System status retrieved successfully")

	c.JSON(http.StatusOK, gin.H{"ok": true, "status": status})
}
