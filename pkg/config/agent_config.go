package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AgentConfig 代理配置，全部来自环境变量
type AgentConfig struct {
	ConsoleBaseURL    string
	NodeID            string
	ProjectKey        string
	NodeToken         string
	NodeName          string
	HeartbeatInterval time.Duration
	PollInterval      time.Duration

	// 运行时配置
	LogLevel string
	LogFile  string
}

var requiredAgentEnv = []string{
	"CONSOLE_BASE_URL",
	"NODE_ID",
	"PROJECT_KEY",
	"NODE_TOKEN",
	"HEARTBEAT_INTERVAL_SEC",
}

// LoadAgentConfig 从进程环境变量加载
func LoadAgentConfig() (*AgentConfig, error) {
	return LoadAgentConfigFrom(os.LookupEnv)
}

// LoadAgentConfigFrom 从 lookup 读取配置，缺失或格式错误的必填项直接报错
func LoadAgentConfigFrom(lookup func(string) (string, bool)) (*AgentConfig, error) {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	var missing []string
	for _, key := range requiredAgentEnv {
		if get(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required env: %s", strings.Join(missing, ", "))
	}

	heartbeat, err := positiveSeconds("HEARTBEAT_INTERVAL_SEC", get("HEARTBEAT_INTERVAL_SEC"))
	if err != nil {
		return nil, err
	}

	poll := 5 * time.Second
	if v := get("TASK_POLL_INTERVAL_SEC"); v != "" {
		if poll, err = positiveSeconds("TASK_POLL_INTERVAL_SEC", v); err != nil {
			return nil, err
		}
	}

	cfg := &AgentConfig{
		ConsoleBaseURL:    strings.TrimRight(get("CONSOLE_BASE_URL"), "/"),
		NodeID:            get("NODE_ID"),
		ProjectKey:        get("PROJECT_KEY"),
		NodeToken:         get("NODE_TOKEN"),
		NodeName:          get("NODE_NAME"),
		HeartbeatInterval: heartbeat,
		PollInterval:      poll,
		LogLevel:          get("LOG_LEVEL"),
		LogFile:           get("LOG_FILE"),
	}
	if cfg.NodeName == "" {
		cfg.NodeName = "Node"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func positiveSeconds(key, raw string) (time.Duration, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be integer: %q", key, raw)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive: %d", key, n)
	}
	return time.Duration(n) * time.Second, nil
}

// Validate 实现Config接口
func (c *AgentConfig) Validate() error {
	if !strings.HasPrefix(c.ConsoleBaseURL, "http://") && !strings.HasPrefix(c.ConsoleBaseURL, "https://") {
		return fmt.Errorf("CONSOLE_BASE_URL must start with http:// or https://: %q", c.ConsoleBaseURL)
	}
	if c.NodeID == "" {
		return fmt.Errorf("NODE_ID is required")
	}
	if c.NodeToken == "" {
		return fmt.Errorf("NODE_TOKEN is required")
	}
	return nil
}
