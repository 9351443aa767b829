package middleware

import (
	"net/http"

	"ops-console/internal/service"

	"github.com/gin-gonic/gin"
)

// NotFound 未匹配路由
func NotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		abort(c, http.StatusNotFound, service.CodeNotFound, "route not found")
	}
}

// MethodNotAllowed 路径存在但方法不匹配
func MethodNotAllowed() gin.HandlerFunc {
	return func(c *gin.Context) {
		abort(c, http.StatusMethodNotAllowed, service.CodeMethodNotAllowed, "method not allowed")
	}
}
