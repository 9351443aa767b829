package retry

import (
	"context"
	"fmt"
	"time"
)

// Config 重试参数
type Config struct {
	// MaxAttempts 包含首次调用在内的总次数
	MaxAttempts int
	// Delay 两次尝试之间的固定间隔
	Delay time.Duration
	// Retryable 返回 false 的错误立即返回，为空时所有错误都重试
	Retryable func(err error) bool
	// OnRetry 在一次失败之后、等待之前调用，attempt 从 1 开始
	OnRetry func(attempt int, err error)
}

// Do 调用 fn 直到成功、遇到不可重试错误或次数用尽，返回最后一次的错误
func Do(ctx context.Context, cfg Config, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt >= cfg.MaxAttempts {
			return err
		}
		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return err
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}

		timer := time.NewTimer(cfg.Delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled after attempt %d: %w", attempt, ctx.Err())
		}
	}
}
