package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func validAgentEnv() map[string]string {
	return map[string]string{
		"CONSOLE_BASE_URL":       "http://console:8000/",
		"NODE_ID":                "n1",
		"PROJECT_KEY":            "p1",
		"NODE_TOKEN":             "secret-token",
		"HEARTBEAT_INTERVAL_SEC": "10",
	}
}

func TestLoadAgentConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadAgentConfigFrom(envMap(validAgentEnv()))
		require.NoError(t, err)
		assert.Equal(t, "http://console:8000", cfg.ConsoleBaseURL)
		assert.Equal(t, "Node", cfg.NodeName)
		assert.Equal(t, 10*time.Second, cfg.HeartbeatInterval)
		assert.Equal(t, 5*time.Second, cfg.PollInterval)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("optional overrides", func(t *testing.T) {
		env := validAgentEnv()
		env["NODE_NAME"] = "edge"
		env["TASK_POLL_INTERVAL_SEC"] = "2"
		cfg, err := LoadAgentConfigFrom(envMap(env))
		require.NoError(t, err)
		assert.Equal(t, "edge", cfg.NodeName)
		assert.Equal(t, 2*time.Second, cfg.PollInterval)
	})

	t.Run("missing required", func(t *testing.T) {
		env := validAgentEnv()
		delete(env, "NODE_TOKEN")
		delete(env, "NODE_ID")
		_, err := LoadAgentConfigFrom(envMap(env))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "NODE_ID")
		assert.Contains(t, err.Error(), "NODE_TOKEN")
	})

	t.Run("malformed interval", func(t *testing.T) {
		env := validAgentEnv()
		env["HEARTBEAT_INTERVAL_SEC"] = "ten"
		_, err := LoadAgentConfigFrom(envMap(env))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "HEARTBEAT_INTERVAL_SEC must be integer")

		env["HEARTBEAT_INTERVAL_SEC"] = "0"
		_, err = LoadAgentConfigFrom(envMap(env))
		require.Error(t, err)
	})

	t.Run("malformed poll interval", func(t *testing.T) {
		env := validAgentEnv()
		env["TASK_POLL_INTERVAL_SEC"] = "soon"
		_, err := LoadAgentConfigFrom(envMap(env))
		require.Error(t, err)
	})

	t.Run("bad url", func(t *testing.T) {
		env := validAgentEnv()
		env["CONSOLE_BASE_URL"] = "console:8000"
		_, err := LoadAgentConfigFrom(envMap(env))
		require.Error(t, err)
	})
}

func TestLoadServerConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
server:
  port: 9000
  mode: production
storage:
  type: sqlite
  sqlite:
    path: db/console.db
auth:
  admin:
    password: secret
  node_tokens:
    - token: tok-a
      project_key: project_a
    - token: tok-b
      project_key: project_b
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadServerConfig(path, dir)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, filepath.Join(dir, "db/console.db"), cfg.Storage.SQLite.Path)
	assert.Equal(t, 10*time.Second, cfg.HeartbeatInterval())
	assert.Equal(t, 30*time.Second, cfg.OfflineThreshold())
	assert.Equal(t, map[string]string{"tok-a": "project_a", "tok-b": "project_b"}, cfg.TokenProjects())
	assert.Equal(t, "tok-b", cfg.TokenForProject("project_b"))
	assert.Empty(t, cfg.TokenForProject("project_c"))
	assert.DirExists(t, filepath.Join(dir, "db"))
}

func TestServerConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *ServerConfig)
	}{
		{"no password", func(c *ServerConfig) {}},
		{"unknown storage", func(c *ServerConfig) { c.Auth.Admin.Password = "x"; c.Storage.Type = "redis" }},
		{"duplicate token", func(c *ServerConfig) {
			c.Auth.Admin.Password = "x"
			c.Auth.NodeTokens = []NodeToken{{"t", "a"}, {"t", "b"}}
		}},
		{"token without project", func(c *ServerConfig) {
			c.Auth.Admin.Password = "x"
			c.Auth.NodeTokens = []NodeToken{{Token: "t"}}
		}},
		{"bad heartbeat", func(c *ServerConfig) { c.Auth.Admin.Password = "x"; c.Node.HeartbeatIntervalSec = 0 }},
		{"malformed password hash", func(c *ServerConfig) { c.Auth.Admin.PasswordHash = "not-a-hash" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultServerConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := DefaultServerConfig()
	cfg.Auth.Admin.Password = "x"
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("OPS_TEST_NODE_ID=from-file\nOPS_TEST_PRESET=from-file\n"), 0644))

	t.Setenv("OPS_TEST_PRESET", "from-env")
	t.Setenv("OPS_TEST_NODE_ID", "")
	os.Unsetenv("OPS_TEST_NODE_ID")

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("OPS_TEST_NODE_ID"))
	assert.Equal(t, "from-env", os.Getenv("OPS_TEST_PRESET"))

	assert.NoError(t, LoadEnvFile(filepath.Join(dir, "missing.env")))
	assert.NoError(t, LoadEnvFile(""))
}
