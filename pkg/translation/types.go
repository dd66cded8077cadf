package translation

import (
	"context"
)

// TranslateMeta 一次翻译调用的参数化元信息，参与缓存键计算
type TranslateMeta struct {
	// SourceLang 源语言，BCP47 标签
	SourceLang string `json:"lang_in"`
	// TargetLang 目标语言，BCP47 标签
	TargetLang string `json:"lang_out"`
	// Glossary 术语表，key 为源术语
	Glossary map[string]string `json:"glossary,omitempty"`
	// Model 模型名，LLM 提供者使用
	Model string `json:"model,omitempty"`
	// Temperature 采样温度，LLM 提供者使用
	Temperature float64 `json:"temperature,omitempty"`
}

// Provider 翻译提供者
type Provider interface {
	// Translate 翻译一段文本，失败时返回错误而不是部分结果
	Translate(ctx context.Context, text string, meta TranslateMeta) (string, error)
	// Name 提供者名称，参与缓存键计算
	Name() string
}

// Embedder 可选的向量化能力，术语一致性上下文选择使用
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// CacheStats 缓存统计
type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Sets    int64 `json:"sets"`
	Entries int   `json:"entries"`
}

// Cache 翻译记忆缓存
type Cache interface {
	// Get 按键取缓存，未命中返回 false
	Get(key string) (string, bool)
	// Set 写入缓存
	Set(key string, value string) error
	// Delete 删除缓存项
	Delete(key string) error
	// Clear 清空缓存
	Clear() error
	// Stats 统计信息
	Stats() CacheStats
}
