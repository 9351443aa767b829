package middleware

import (
	"fmt"
	"net/http"

	"ops-console/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Recovery 捕获 panic 并返回统一错误结构；非生产模式附带 panic 信息
func Recovery(log zerolog.Logger, production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("panic", r).
					Str("method", c.Request.Method).
					Str("path", c.Request.URL.Path).
					Msg("Recovered from panic")

				message := "internal error"
				if !production {
					message = fmt.Sprint(r)
				}
				abort(c, http.StatusInternalServerError, service.CodeInternal, message)
			}
		}()
		c.Next()
	}
}
