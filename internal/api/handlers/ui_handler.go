package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"ops-console/internal/models"
	"ops-console/internal/service"
	"ops-console/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	nodeDetailTaskLimit = 20
	taskListLimit       = 50
)

// ConnectionSettings 节点详情页展示的 Agent 接入参数来源
type ConnectionSettings struct {
	// PublicURL 为空时使用请求的 scheme + host
	PublicURL string
	// TokenForProject 返回项目对应的 node token
	TokenForProject func(projectKey string) string
	// PlaceholderToken 示例配置中的占位 token，视为未配置
	PlaceholderToken string
}

// ConnectionInfo 节点 Agent 的连接信息及完整性检查
type ConnectionInfo struct {
	ConsoleBaseURL string
	NodeID         string
	NodeName       string
	ProjectKey     string
	NodeToken      string
	MaskedToken    string
	TokenOK        bool
	URLOK          bool
	NodeOK         bool
	AllOK          bool
}

type UIHandler struct {
	nodeService *service.NodeService
	taskService *service.TaskService
	connection  ConnectionSettings
	log         zerolog.Logger
}

func NewUIHandler(
	nodeService *service.NodeService,
	taskService *service.TaskService,
	connection ConnectionSettings,
	logger *logger.Logger,
) *UIHandler {
	return &UIHandler{
		nodeService: nodeService,
		taskService: taskService,
		connection:  connection,
		log:         logger.GetLogger("ui-handler"),
	}
}

// Index GET /
func (h *UIHandler) Index(c *gin.Context) {
	c.Redirect(http.StatusFound, "/ui/nodes")
}

// ListNodes GET /ui/nodes
func (h *UIHandler) ListNodes(c *gin.Context) {
	nodes, err := h.nodeService.ListNodes(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.HTML(http.StatusOK, "nodes.html", gin.H{"title": "Nodes", "nodes": nodes})
}

// NewNodeForm GET /ui/nodes/new
func (h *UIHandler) NewNodeForm(c *gin.Context) {
	c.HTML(http.StatusOK, "node_new.html", gin.H{
		"title":             "New node",
		"projectKeyDefault": h.nodeService.DefaultProjectKey(),
	})
}

// CreateNode POST /ui/nodes/new
func (h *UIHandler) CreateNode(c *gin.Context) {
	in := service.CreateNodeInput{
		NodeID:     strings.TrimSpace(c.PostForm("node_id")),
		Name:       strings.TrimSpace(c.PostForm("name")),
		ProjectKey: strings.TrimSpace(c.PostForm("project_key")),
	}

	if _, err := h.nodeService.CreateNode(c.Request.Context(), in); err != nil {
		e := service.AsError(err)
		if e.Kind == service.KindInternal {
			h.renderError(c, err)
			return
		}
		c.HTML(http.StatusOK, "node_new.html", gin.H{
			"title":             "New node",
			"projectKeyDefault": h.nodeService.DefaultProjectKey(),
			"error":             e.Message,
			"form":              in,
		})
		return
	}
	c.Redirect(http.StatusSeeOther, "/ui/nodes")
}

// NodeDetail GET /ui/nodes/:node_id
func (h *UIHandler) NodeDetail(c *gin.Context) {
	ctx := c.Request.Context()
	node, err := h.nodeService.GetNode(ctx, c.Param("node_id"))
	if err != nil {
		h.renderError(c, err)
		return
	}

	tasks, err := h.taskService.ListTasks(ctx, models.TaskFilter{
		NodeID:          node.ID,
		Limit:           nodeDetailTaskLimit,
		RecentlyUpdated: true,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.HTML(http.StatusOK, "node_detail.html", gin.H{
		"title":      "Node " + node.ID,
		"node":       h.nodeService.View(node),
		"tasks":      tasks,
		"connection": h.connectionInfo(c, node),
	})
}

// EditNodeForm GET /ui/nodes/:node_id/edit
func (h *UIHandler) EditNodeForm(c *gin.Context) {
	node, err := h.nodeService.GetNode(c.Request.Context(), c.Param("node_id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.HTML(http.StatusOK, "node_edit.html", gin.H{
		"title": "Edit " + node.ID,
		"node":  node,
		"tags":  strings.Join(node.Tags, ", "),
	})
}

// UpdateNode POST /ui/nodes/:node_id/edit，project_key 只读
func (h *UIHandler) UpdateNode(c *gin.Context) {
	nodeID := c.Param("node_id")
	_, err := h.nodeService.UpdateNode(c.Request.Context(), nodeID, c.PostForm("name"), parseTags(c.PostForm("tags")))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/ui/nodes/"+nodeID)
}

// DeleteNode POST /ui/nodes/:node_id/delete
func (h *UIHandler) DeleteNode(c *gin.Context) {
	if err := h.nodeService.DeleteNode(c.Request.Context(), c.Param("node_id")); err != nil {
		h.renderError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/ui/nodes")
}

// ListTasks GET /ui/tasks
func (h *UIHandler) ListTasks(c *gin.Context) {
	tasks, err := h.taskService.ListTasks(c.Request.Context(), models.TaskFilter{Limit: taskListLimit})
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.HTML(http.StatusOK, "tasks.html", gin.H{"title": "Tasks", "tasks": tasks})
}

// NewTaskForm GET /ui/tasks/new
func (h *UIHandler) NewTaskForm(c *gin.Context) {
	h.renderTaskForm(c, "", c.Query("node_id"))
}

// CreateTask POST /ui/tasks/new，运维侧直接调用业务层
func (h *UIHandler) CreateTask(c *gin.Context) {
	nodeID := strings.TrimSpace(c.PostForm("node_id"))
	if nodeID == "" {
		h.renderTaskForm(c, "node_id required", "")
		return
	}

	task, err := h.taskService.CreateTaskAsOperator(c.Request.Context(), nodeID,
		strings.TrimSpace(c.PostForm("task_type")), strings.TrimSpace(c.PostForm("payload")))
	if err != nil {
		if e := service.AsError(err); e.Kind != service.KindInternal {
			h.renderTaskForm(c, e.Message, nodeID)
			return
		}
		h.renderError(c, err)
		return
	}

	h.log.Info().Str("task_id", task.ID).Str("node_id", nodeID).Msg("Task created from console")
	c.Redirect(http.StatusSeeOther, "/ui/tasks")
}

// TaskDetail GET /ui/tasks/:task_id
func (h *UIHandler) TaskDetail(c *gin.Context) {
	detail, err := h.taskService.GetTask(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.HTML(http.StatusOK, "task_detail.html", gin.H{
		"title":  "Task " + detail.Task.ID,
		"task":   detail.Task,
		"events": detail.Events,
	})
}

func (h *UIHandler) renderTaskForm(c *gin.Context, formError, selected string) {
	nodes, err := h.nodeService.ListNodes(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.HTML(http.StatusOK, "task_new.html", gin.H{
		"title":    "New task",
		"nodes":    nodes,
		"selected": selected,
		"error":    formError,
	})
}

func (h *UIHandler) renderError(c *gin.Context, err error) {
	e := service.AsError(err)
	status := httpStatus(e.Kind)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("UI request failed")
	}
	c.HTML(status, "error.html", gin.H{"title": "Error", "message": e.Message})
}

func (h *UIHandler) connectionInfo(c *gin.Context, node *models.Node) ConnectionInfo {
	baseURL := strings.TrimRight(strings.TrimSpace(h.connection.PublicURL), "/")
	if baseURL == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, c.Request.Host)
	}

	var token string
	if h.connection.TokenForProject != nil {
		token = h.connection.TokenForProject(node.ProjectKey)
	}

	info := ConnectionInfo{
		ConsoleBaseURL: baseURL,
		NodeID:         node.ID,
		NodeName:       node.Name,
		ProjectKey:     node.ProjectKey,
		NodeToken:      token,
		MaskedToken:    MaskToken(token),
		TokenOK:        token != "" && token != h.connection.PlaceholderToken,
		URLOK:          baseURL != "",
		NodeOK:         node.ID != "" && node.Name != "" && node.ProjectKey != "",
	}
	info.AllOK = info.TokenOK && info.URLOK && info.NodeOK
	return info
}

// MaskToken 保留首尾各 4 位，过短时整体隐藏
func MaskToken(token string) string {
	if len(token) < 8 {
		return "***"
	}
	return token[:4] + "***" + token[len(token)-4:]
}

func parseTags(raw string) []string {
	tags := make([]string, 0)
	for _, tag := range strings.Split(raw, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
