package handlers

import (
	"net/http"
	"unicode/utf8"

	"ops-console/internal/models"
	"ops-console/internal/service"
	"ops-console/pkg/types"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// errorWriter 把业务错误转换为统一错误结构
type errorWriter struct {
	log        zerolog.Logger
	production bool
}

func httpStatus(kind service.Kind) int {
	switch kind {
	case service.KindUnauthorized:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (w errorWriter) respond(c *gin.Context, err error) {
	e := service.AsError(err)
	status := httpStatus(e.Kind)

	message := e.Message
	if e.Kind == service.KindInternal {
		w.log.Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("Request failed")
		if !w.production && e.Err != nil {
			message = e.Err.Error()
		}
	}

	c.JSON(status, types.ErrorResponse{OK: false, ErrorCode: e.Code, Message: message})
}

func (w errorWriter) badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, types.ErrorResponse{OK: false, ErrorCode: service.CodeBadRequest, Message: message})
}

func toWireTask(t *models.Task) *types.Task {
	payload := t.Payload
	if payload == "" {
		payload = models.EmptyPayload
	}
	return &types.Task{
		TaskID:    t.ID,
		NodeID:    t.NodeID,
		Type:      t.Type,
		Payload:   payload,
		State:     types.TaskState(t.State),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// truncate 按字符截断，保证结果仍是合法 UTF-8
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
