package openai

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/providers"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/translation"
)

// Config OpenAI配置
type Config struct {
	providers.BaseConfig
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		BaseConfig:  providers.DefaultConfig(),
		Model:       "gpt-4o-mini",
		Temperature: 0.3,
		MaxTokens:   4096,
	}
}

// Provider OpenAI提供商
type Provider struct {
	config Config
	client *openai.Client
}

// New 创建新的OpenAI提供商
func New(config Config) *Provider {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.APIEndpoint != "" {
		clientConfig.BaseURL = config.APIEndpoint
	}
	clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}

	return &Provider{
		config: config,
		client: openai.NewClientWithConfig(clientConfig),
	}
}

// Name 提供商名称
func (p *Provider) Name() string {
	return "openai"
}

// Translate 执行翻译
func (p *Provider) Translate(ctx context.Context, text string, meta translation.TranslateMeta) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", translation.ErrEmptyText
	}

	model := p.config.Model
	if meta.Model != "" {
		model = meta.Model
	}
	temperature := p.config.Temperature
	if meta.Temperature > 0 {
		temperature = float32(meta.Temperature)
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: temperature,
		MaxTokens:   p.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: buildSystemPrompt(meta)},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", translation.WrapError(err, translation.ErrCodeProvider, "openai chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", translation.NewRetryableError(translation.ErrCodeProvider, "openai returned no choices", nil)
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// buildSystemPrompt 构建翻译系统提示，术语表按键排序保证稳定
func buildSystemPrompt(meta translation.TranslateMeta) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a professional translator. Translate the user's text from %s to %s.\n",
		meta.SourceLang, meta.TargetLang)
	sb.WriteString("Preserve all placeholders of the form {v1}, {v2}, ... exactly as they appear.\n")
	sb.WriteString("Output only the translated text without explanations.")

	if len(meta.Glossary) > 0 {
		keys := make([]string, 0, len(meta.Glossary))
		for k := range meta.Glossary {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("\nUse the following glossary:\n")
		for _, k := range keys {
			fmt.Fprintf(&sb, "- %s => %s\n", k, meta.Glossary[k])
		}
	}
	return sb.String()
}
