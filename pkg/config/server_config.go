package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ops-console/pkg/utils/password"
)

// PlaceholderNodeToken 示例配置中的占位 token，不应在生产使用
const PlaceholderNodeToken = "changeme_node_token_project_a"

// ServerConfig 服务端配置
type ServerConfig struct {
	// 服务器配置
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		// Mode 为 production 时内部错误不返回细节
		Mode string `yaml:"mode"`
		// PublicURL 展示给 Agent 的 CONSOLE_BASE_URL，为空时取请求地址
		PublicURL string `yaml:"public_url"`
		TLS       struct {
			Enabled bool   `yaml:"enabled"`
			Cert    string `yaml:"cert"`
			Key     string `yaml:"key"`
		} `yaml:"tls"`
	} `yaml:"server"`

	// 日志配置
	Log struct {
		Debug bool   `yaml:"debug"`
		File  string `yaml:"file"`
	} `yaml:"log"`

	// 存储配置
	Storage struct {
		Type   string `yaml:"type"`
		SQLite struct {
			Path string `yaml:"path"`
		} `yaml:"sqlite"`
		Postgres struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			User     string `yaml:"user"`
			Password string `yaml:"password"`
			DBName   string `yaml:"dbname"`
			SSLMode  string `yaml:"sslmode"`
		} `yaml:"postgres"`
		MySQL struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			User     string `yaml:"user"`
			Password string `yaml:"password"`
			DBName   string `yaml:"dbname"`
		} `yaml:"mysql"`
	} `yaml:"storage"`

	// 鉴权配置
	Auth struct {
		Admin struct {
			Username string `yaml:"username"`
			Password string `yaml:"password"`
			// PasswordHash argon2id 哈希，设置后优先于明文密码
			PasswordHash string `yaml:"password_hash"`
		} `yaml:"admin"`
		NodeTokens        []NodeToken `yaml:"node_tokens"`
		DefaultProjectKey string      `yaml:"default_project_key"`
	} `yaml:"auth"`

	// 节点配置
	Node struct {
		HeartbeatIntervalSec int `yaml:"heartbeat_interval_sec"`
		OfflineThresholdSec  int `yaml:"offline_threshold_sec"`
	} `yaml:"node"`
}

// NodeToken 一个 bearer token 对应一个项目
type NodeToken struct {
	Token      string `yaml:"token"`
	ProjectKey string `yaml:"project_key"`
}

// LoadServerConfig 加载服务端配置，未配置的字段使用默认值
func LoadServerConfig(path string, workspaceRoot string) (*ServerConfig, error) {
	cfg := DefaultServerConfig()
	if err := LoadConfig(path, cfg); err != nil {
		return nil, err
	}

	// 处理相对路径
	if err := cfg.resolveRelativePaths(workspaceRoot); err != nil {
		return nil, fmt.Errorf("resolving paths: %w", err)
	}

	return cfg, nil
}

// Validate 实现Config接口
func (c *ServerConfig) Validate() error {
	if c.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	if c.Server.TLS.Enabled && (c.Server.TLS.Cert == "" || c.Server.TLS.Key == "") {
		return fmt.Errorf("server.tls.cert and server.tls.key are required when tls is enabled")
	}
	switch c.Storage.Type {
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path is required")
		}
	case "postgres", "mysql", "memory":
	case "":
		return fmt.Errorf("storage.type is required")
	default:
		return fmt.Errorf("unknown storage.type: %s", c.Storage.Type)
	}
	if c.Auth.Admin.Username == "" {
		return fmt.Errorf("auth.admin.username is required")
	}
	if c.Auth.Admin.Password == "" && c.Auth.Admin.PasswordHash == "" {
		return fmt.Errorf("auth.admin.password or auth.admin.password_hash is required")
	}
	if c.Auth.Admin.PasswordHash != "" && !password.IsHash(c.Auth.Admin.PasswordHash) {
		return fmt.Errorf("auth.admin.password_hash is not a valid argon2id hash")
	}
	if c.Auth.DefaultProjectKey == "" {
		return fmt.Errorf("auth.default_project_key is required")
	}
	seen := make(map[string]bool, len(c.Auth.NodeTokens))
	for i, t := range c.Auth.NodeTokens {
		if t.Token == "" || t.ProjectKey == "" {
			return fmt.Errorf("auth.node_tokens[%d]: token and project_key are required", i)
		}
		if seen[t.Token] {
			return fmt.Errorf("auth.node_tokens[%d]: duplicate token", i)
		}
		seen[t.Token] = true
	}
	if c.Node.HeartbeatIntervalSec <= 0 {
		return fmt.Errorf("invalid node.heartbeat_interval_sec: %d", c.Node.HeartbeatIntervalSec)
	}
	if c.Node.OfflineThresholdSec <= 0 {
		return fmt.Errorf("invalid node.offline_threshold_sec: %d", c.Node.OfflineThresholdSec)
	}
	return nil
}

// IsProduction 生产模式下隐藏内部错误细节
func (c *ServerConfig) IsProduction() bool {
	return c.Server.Mode == "production"
}

// TokenProjects 返回 token -> project_key 映射
func (c *ServerConfig) TokenProjects() map[string]string {
	m := make(map[string]string, len(c.Auth.NodeTokens))
	for _, t := range c.Auth.NodeTokens {
		m[t.Token] = t.ProjectKey
	}
	return m
}

// TokenForProject 返回项目的第一个 token，用于节点接入信息展示
func (c *ServerConfig) TokenForProject(projectKey string) string {
	for _, t := range c.Auth.NodeTokens {
		if t.ProjectKey == projectKey {
			return t.Token
		}
	}
	return ""
}

func (c *ServerConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.Node.HeartbeatIntervalSec) * time.Second
}

func (c *ServerConfig) OfflineThreshold() time.Duration {
	return time.Duration(c.Node.OfflineThresholdSec) * time.Second
}

// resolveRelativePaths 处理相对路径
func (c *ServerConfig) resolveRelativePaths(baseDir string) error {
	// 处理日志文件路径
	if c.Log.File != "" && !filepath.IsAbs(c.Log.File) {
		c.Log.File = filepath.Join(baseDir, c.Log.File)
	}

	// 处理SQLite数据库路径
	if c.Storage.Type == "sqlite" && !filepath.IsAbs(c.Storage.SQLite.Path) {
		c.Storage.SQLite.Path = filepath.Join(baseDir, c.Storage.SQLite.Path)
		// 确保数据库目录存在
		if err := os.MkdirAll(filepath.Dir(c.Storage.SQLite.Path), 0755); err != nil {
			return fmt.Errorf("creating sqlite directory: %w", err)
		}
	}

	return nil
}

// DefaultServerConfig 返回默认服务端配置
func DefaultServerConfig() *ServerConfig {
	cfg := &ServerConfig{}

	// 服务器配置
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 8000
	cfg.Server.Mode = "dev"

	// 日志配置
	cfg.Log.Debug = false
	cfg.Log.File = "data/ops-console.log"

	// 存储配置
	cfg.Storage.Type = "sqlite"
	cfg.Storage.SQLite.Path = "data/ops-console.db"
	cfg.Storage.Postgres.Port = 5432
	cfg.Storage.Postgres.SSLMode = "disable"
	cfg.Storage.MySQL.Port = 3306

	// 鉴权配置
	cfg.Auth.Admin.Username = "admin"
	cfg.Auth.DefaultProjectKey = "project_a"

	// 节点配置
	cfg.Node.HeartbeatIntervalSec = 10
	cfg.Node.OfflineThresholdSec = 30

	return cfg
}
