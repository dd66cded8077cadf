package translation

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// 预定义错误
var (
	// ErrNoProvider 翻译提供者未设置
	ErrNoProvider = errors.New("translation provider not configured")

	// ErrEmptyText 空文本错误
	ErrEmptyText = errors.New("empty text provided")

	// ErrInvalidConfig 无效配置
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrCacheFailed 缓存操作失败
	ErrCacheFailed = errors.New("cache operation failed")

	// ErrTimeout 超时错误
	ErrTimeout = errors.New("translation timeout")

	// ErrRateLimited 速率限制错误
	ErrRateLimited = errors.New("rate limited")

	// ErrCanceled 任务被取消
	ErrCanceled = errors.New("translation canceled")
)

// 错误代码常量
const (
	ErrCodeConfig     = "CONFIG_ERROR"
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeProvider   = "PROVIDER_ERROR"
	ErrCodeNetwork    = "NETWORK_ERROR"
	ErrCodeTimeout    = "TIMEOUT_ERROR"
	ErrCodeRateLimit  = "RATE_LIMIT_ERROR"
	ErrCodeCache      = "CACHE_ERROR"
	ErrCodeParse      = "PARSE_ERROR"
	ErrCodeExport     = "EXPORT_ERROR"
	ErrCodeCanceled   = "CANCELED"
	ErrCodeUnknown    = "UNKNOWN_ERROR"
)

// TranslationError 翻译错误
type TranslationError struct {
	Code    string // 错误代码
	Message string // 错误消息
	Cause   error  // 原因
	BlockID string // 发生错误的块
	Retry   bool   // 是否可重试
}

// Error 实现error接口
func (e *TranslationError) Error() string {
	if e.BlockID != "" {
		return fmt.Sprintf("[%s] %s (block %s)", e.Code, e.Message, e.BlockID)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回原因错误
func (e *TranslationError) Unwrap() error {
	return e.Cause
}

// IsRetryable 是否可重试
func (e *TranslationError) IsRetryable() bool {
	return e.Retry
}

// NewTranslationError 创建翻译错误
func NewTranslationError(code, message string, cause error) *TranslationError {
	return &TranslationError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Retry:   false,
	}
}

// NewRetryableError 创建可重试错误
func NewRetryableError(code, message string, cause error) *TranslationError {
	return &TranslationError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Retry:   true,
	}
}

// WrapError 包装错误
func WrapError(err error, code, message string) *TranslationError {
	if err == nil {
		return nil
	}

	// 如果已经是TranslationError，保留原有信息
	var te *TranslationError
	if errors.As(err, &te) {
		te.Message = message + ": " + te.Message
		return te
	}

	return &TranslationError{
		Code:    code,
		Message: message,
		Cause:   err,
		Retry:   IsRetryableError(err),
	}
}

// IsRetryableError 判断错误是否可重试
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var te *TranslationError
	if errors.As(err, &te) {
		return te.Retry
	}

	switch {
	case errors.Is(err, ErrTimeout),
		errors.Is(err, ErrRateLimited),
		errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.Is(err, context.Canceled), errors.Is(err, ErrCanceled):
		return false
	}

	errStr := err.Error()
	retryablePatterns := []string{
		"timeout",
		"deadline exceeded",
		"connection refused",
		"temporary failure",
		"rate limit",
		"429",
		"502",
		"503",
		"504",
		"connection reset",
		"broken pipe",
		"no such host",
		"network is unreachable",
		"i/o timeout",
	}

	for _, pattern := range retryablePatterns {
		if containsFold(errStr, pattern) {
			return true
		}
	}

	return false
}

// containsFold 检查字符串是否包含子串（不区分大小写）
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
