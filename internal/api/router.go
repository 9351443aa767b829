package api

import (
	"net/http"

	"ops-console/internal/api/handlers"
	"ops-console/internal/api/middleware"
	"ops-console/pkg/logger"
	"ops-console/pkg/server/static"

	"github.com/gin-gonic/gin"
)

// RouterOptions 路由依赖的鉴权与运行参数
type RouterOptions struct {
	// NodeTokens token -> project_key
	NodeTokens map[string]string
	Admin      middleware.AdminCredentials
	Production bool
}

func NewRouter(
	nodeHandler *handlers.NodeHandler,
	taskHandler *handlers.TaskHandler,
	statusHandler *handlers.StatusHandler,
	uiHandler *handlers.UIHandler,
	opts RouterOptions,
	logger *logger.Logger,
) (http.Handler, error) {
	log := logger.GetLogger("router")

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.Recovery(logger.GetLogger("recovery"), opts.Production))
	r.Use(middleware.Logger(logger.GetLogger("http")))

	if err := static.Register(r); err != nil {
		return nil, err
	}

	r.NoRoute(middleware.NotFound())
	r.NoMethod(middleware.MethodNotAllowed())

	r.GET("/", uiHandler.Index)
	r.GET("/health", statusHandler.Health)

	nodeAuth := middleware.NewNodeAuthenticator(logger.GetLogger("node_auth"), opts.NodeTokens)
	adminAuth := middleware.AdminAuth(opts.Admin, logger.GetLogger("admin_auth"))

	// 节点 API
	api := r.Group("/api", nodeAuth.NodeAuth())
	{
		api.POST("/nodes/register", nodeHandler.Register)
		api.POST("/nodes/:node_id/heartbeat", nodeHandler.Heartbeat)
		api.GET("/nodes/:node_id/tasks", nodeHandler.PullTasks)
		api.POST("/tasks/create", taskHandler.CreateTask)
		api.POST("/tasks/:task_id/report", taskHandler.ReportTask)
	}

	admin := r.Group("/api/admin", adminAuth)
	{
		admin.GET("/status", statusHandler.GetSystemStatus)
	}

	// 运维界面
	ui := r.Group("/ui", adminAuth)
	{
		ui.GET("/nodes", uiHandler.ListNodes)
		ui.GET("/nodes/new", uiHandler.NewNodeForm)
		ui.POST("/nodes/new", uiHandler.CreateNode)
		ui.GET("/nodes/:node_id", uiHandler.NodeDetail)
		ui.GET("/nodes/:node_id/edit", uiHandler.EditNodeForm)
		ui.POST("/nodes/:node_id/edit", uiHandler.UpdateNode)
		ui.POST("/nodes/:node_id/delete", uiHandler.DeleteNode)
		ui.GET("/tasks", uiHandler.ListTasks)
		ui.GET("/tasks/new", uiHandler.NewTaskForm)
		ui.POST("/tasks/new", uiHandler.CreateTask)
		ui.GET("/tasks/:task_id", uiHandler.TaskDetail)
	}

	log.Debug().Msg("Router initialized")
	return r, nil
}
