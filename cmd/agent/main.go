package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ops-console/pkg/agent"
	"ops-console/pkg/config"
	"ops-console/pkg/logger"
)

var (
	Version   = "0.1.0"
	BuildTime = "unknown"
)

func main() {
	// 命令行参数
	envFile := flag.String("env-file", ".env", "环境变量文件路径，不存在时忽略")
	version := flag.Bool("version", false, "显示版本信息")
	flag.Parse()

	// 显示版本信息
	if *version {
		fmt.Printf("ops-node-agent version %s (built at %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	if err := config.LoadEnvFile(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading env file: %v\n", err)
		os.Exit(1)
	}

	// 加载配置
	cfg, err := config.LoadAgentConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logs := logger.NewFromLevel(cfg.LogLevel)
	if cfg.LogFile != "" {
		logs.SetLogOutput(cfg.LogFile)
	}
	log := logs.GetLogger("agent")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := agent.New(cfg, log, Version)

	log.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Msg("Agent started")

	if err := a.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Agent exited")
		stop()
		os.Exit(1)
	}
}
