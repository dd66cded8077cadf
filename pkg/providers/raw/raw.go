package raw

import (
	"context"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/translation"
)

// Provider Raw 提供商实现（跳过翻译，直接返回原文），用于干跑和测试
type Provider struct{}

// New 创建新的 Raw 提供商
func New() *Provider {
	return &Provider{}
}

// Name 提供商名称
func (p *Provider) Name() string {
	return "raw"
}

// Translate 直接返回原文，不进行任何翻译
func (p *Provider) Translate(ctx context.Context, text string, meta translation.TranslateMeta) (string, error) {
	return text, nil
}
