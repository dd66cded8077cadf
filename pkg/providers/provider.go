package providers

import (
	"strings"
	"time"

	"golang.org/x/text/language"
)

// BaseConfig 提供商基础配置
type BaseConfig struct {
	// API配置
	APIKey      string `json:"api_key,omitempty"`
	APIEndpoint string `json:"api_endpoint,omitempty"`

	// 超时和重试
	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"max_retries"`
	RetryDelay time.Duration `json:"retry_delay"`

	// 自定义头部
	Headers map[string]string `json:"headers,omitempty"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() BaseConfig {
	return BaseConfig{
		Timeout:    2 * time.Minute,
		MaxRetries: 3,
		RetryDelay: time.Second,
		Headers:    make(map[string]string),
	}
}

// NormalizeLang 把语言标识规范化为 BCP47 标签，无法解析时原样返回
func NormalizeLang(lang string) string {
	aliases := map[string]string{
		"chinese":             "zh",
		"chinese_simplified":  "zh-CN",
		"chinese_traditional": "zh-TW",
		"english":             "en",
		"japanese":            "ja",
		"korean":              "ko",
		"french":              "fr",
		"german":              "de",
		"spanish":             "es",
		"russian":             "ru",
	}
	if v, ok := aliases[strings.ToLower(lang)]; ok {
		lang = v
	}
	lang = strings.Replace(lang, "_", "-", 1)
	tag, err := language.Parse(lang)
	if err != nil {
		return lang
	}
	return tag.String()
}
