package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"ops-console/internal/service"
	"ops-console/pkg/types"
	"ops-console/pkg/utils/password"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const projectKeyContextKey = "project_key"

// NodeAuthenticator 校验节点 bearer token，并解析出所属项目
type NodeAuthenticator struct {
	logger zerolog.Logger
	tokens map[string]string
}

// NewNodeAuthenticator 创建节点认证器，tokens 为 token -> project_key
func NewNodeAuthenticator(logger zerolog.Logger, tokens map[string]string) *NodeAuthenticator {
	copied := make(map[string]string, len(tokens))
	for token, project := range tokens {
		copied[token] = project
	}
	return &NodeAuthenticator{
		logger: logger,
		tokens: copied,
	}
}

// ResolveProject 返回 token 对应的项目；逐个常量时间比较
func (a *NodeAuthenticator) ResolveProject(token string) (string, bool) {
	project, found := "", false
	for candidate, p := range a.tokens {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
			project, found = p, true
		}
	}
	return project, found
}

// NodeAuth 节点认证中间件
func (a *NodeAuthenticator) NodeAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if header == "" || !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			abort(c, http.StatusUnauthorized, service.CodeMissingToken, "Authorization header required")
			return
		}

		project, ok := a.ResolveProject(strings.TrimSpace(token))
		if !ok {
			a.logger.Debug().
				Str("path", c.FullPath()).
				Str("client_ip", c.ClientIP()).
				Msg("Rejected invalid node token")
			abort(c, http.StatusUnauthorized, service.CodeInvalidToken, "Invalid or expired token")
			return
		}

		c.Set(projectKeyContextKey, project)
		c.Next()
	}
}

// ProjectKey 返回认证中间件写入的项目
func ProjectKey(c *gin.Context) string {
	return c.GetString(projectKeyContextKey)
}

// AdminCredentials 运维界面 Basic 认证配置
type AdminCredentials struct {
	Username string
	// Password 明文密码，PasswordHash 为空时使用
	Password string
	// PasswordHash argon2id 编码哈希
	PasswordHash string
}

// AdminAuth 运维界面 Basic 认证中间件
func AdminAuth(creds AdminCredentials, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, pass, ok := c.Request.BasicAuth()
		if !ok {
			c.Header("WWW-Authenticate", `Basic realm="ops-console"`)
			abort(c, http.StatusUnauthorized, service.CodeMissingCredentials, "Authentication required")
			return
		}

		if !checkAdmin(creds, user, pass, log) {
			log.Warn().Str("user", user).Str("client_ip", c.ClientIP()).Msg("Rejected admin credentials")
			c.Header("WWW-Authenticate", `Basic realm="ops-console"`)
			abort(c, http.StatusUnauthorized, service.CodeInvalidCredentials, "Invalid credentials")
			return
		}
		c.Next()
	}
}

func checkAdmin(creds AdminCredentials, user, pass string, log zerolog.Logger) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(creds.Username)) == 1
	if creds.PasswordHash != "" {
		match, err := password.VerifyPassword(pass, creds.PasswordHash)
		if err != nil {
			log.Error().Err(err).Msg("Invalid admin password hash")
			return false
		}
		return userOK && match
	}
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(creds.Password)) == 1
	return userOK && passOK
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, types.ErrorResponse{OK: false, ErrorCode: code, Message: message})
}
