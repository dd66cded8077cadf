package retry

import (
	"context"
	"errors"
	"math"
	"net"
	"net/url"
	"strings"
	"syscall"
	"time"
)

// Config 重试配置
type Config struct {
	// MaxAttempts 最大尝试次数，含首次
	MaxAttempts int `json:"max_attempts"`

	// InitialDelay 初始延迟时间
	InitialDelay time.Duration `json:"initial_delay"`

	// MaxDelay 最大延迟时间
	MaxDelay time.Duration `json:"max_delay"`

	// BackoffFactor 退避因子（指数退避）
	BackoffFactor float64 `json:"backoff_factor"`
}

// DefaultConfig 返回默认重试配置
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   3,
		InitialDelay:  1 * time.Second,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
	}
}

// Retrier 通用重试器
type Retrier struct {
	config      Config
	isRetryable func(error) bool
}

// New 创建重试器，classify 为空时按网络瞬时错误判断
func New(config Config, classify func(error) bool) *Retrier {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if classify == nil {
		classify = IsNetworkError
	}
	return &Retrier{config: config, isRetryable: classify}
}

// Do 执行函数直到成功、错误不可重试或尝试次数耗尽
func (r *Retrier) Do(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < r.config.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.Delay(attempt)):
			}
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !r.isRetryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// Delay 第 attempt 次重试前的等待时间，指数退避并封顶
func (r *Retrier) Delay(attempt int) time.Duration {
	factor := r.config.BackoffFactor
	if factor <= 1.0 {
		factor = 2.0
	}
	delay := time.Duration(float64(r.config.InitialDelay) * math.Pow(factor, float64(attempt-1)))
	if delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}
	if delay < 0 {
		delay = r.config.MaxDelay
	}
	return delay
}

// IsNetworkError 判断是否为网络瞬时错误
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return IsNetworkError(urlErr.Err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	networkPatterns := []string{
		"connection refused",
		"connection reset",
		"connection timed out",
		"timeout",
		"temporary failure",
		"network is unreachable",
		"no such host",
		"broken pipe",
		"i/o timeout",
		"eof",
	}
	for _, pattern := range networkPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
