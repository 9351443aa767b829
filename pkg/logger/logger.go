package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 封装了 zerolog.Logger 并包含同步机制
type Logger struct {
	logger  zerolog.Logger
	console io.Writer
	mutex   sync.RWMutex
}

// consoleWriter 用于控制台输出
var consoleWriter = zerolog.ConsoleWriter{
	Out:        os.Stdout,
	TimeFormat: time.RFC3339,
}

// NewLogger 初始化日志系统
func NewLogger(debug bool) *Logger {
	return newLogger(consoleWriter, debug)
}

// NewWithWriter 输出到指定 writer，测试中用于丢弃或捕获日志
func NewWithWriter(w io.Writer, debug bool) *Logger {
	return newLogger(w, debug)
}

// NewFromLevel 按级别名初始化，"debug" 之外一律按 info 处理
func NewFromLevel(level string) *Logger {
	return NewLogger(strings.EqualFold(strings.TrimSpace(level), "debug"))
}

func newLogger(console io.Writer, debug bool) *Logger {
	l := &Logger{console: console}

	// 设置全局日志级别
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	l.logger = build(zerolog.MultiLevelWriter(console))

	// 设置全局 logger
	log.Logger = l.logger

	return l
}

func build(w io.Writer) zerolog.Logger {
	return zerolog.New(w).
		With().
		Timestamp().
		Caller().
		Logger()
}

// GetLogger 返回带有上下文的日志记录器
func (l *Logger) GetLogger(component string) zerolog.Logger {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return l.logger.With().
		Str("component", component).
		Logger()
}

// SetLogOutput 设置额外的日志输出（如文件）
func (l *Logger) SetLogOutput(logFilePath string) {
	// 使用 lumberjack 进行日志轮转
	fileWriter := &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    100, // megabytes
		MaxBackups: 3,
		MaxAge:     28,   // days
		Compress:   true, // 压缩旧文件
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	// 更新 logger 的输出
	l.logger = build(zerolog.MultiLevelWriter(l.console, fileWriter))

	// 更新全局 logger
	log.Logger = l.logger
}
