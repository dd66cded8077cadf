package translator

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/providers"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/translation"
)

// Strategy 一次文档翻译的策略开关
type Strategy struct {
	// Provider 使用的翻译服务名
	Provider string `mapstructure:"provider" json:"provider" yaml:"provider"`
	// UseCache 启用翻译记忆
	UseCache bool `mapstructure:"use_cache" json:"use_cache" yaml:"use_cache"`
	// UseTermConsistency 启用术语一致性
	UseTermConsistency bool `mapstructure:"use_term_consistency" json:"use_term_consistency" yaml:"use_term_consistency"`
	// UsePriority 按块类别优先级调度
	UsePriority bool `mapstructure:"use_priority" json:"use_priority" yaml:"use_priority"`
}

// ProgressFunc 报告已完成与总块数
type ProgressFunc func(done, total int)

// Orchestrator 文档翻译编排器：数学保护、翻译记忆、批量调度与术语统一
type Orchestrator struct {
	registry *providers.Registry
	cache    translation.Cache
	batchCfg BatchConfig
	unifier  *TermUnifier
	control  *Control
	logger   *zap.Logger
}

// NewOrchestrator 创建编排器，cache、unifier、control 均可为 nil
func NewOrchestrator(registry *providers.Registry, cache translation.Cache, batchCfg BatchConfig, unifier *TermUnifier, control *Control, logger *zap.Logger) *Orchestrator {
	if cache == nil {
		cache = translation.NewMemoryCache()
	}
	if control == nil {
		control = NewControl()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if unifier == nil {
		unifier = NewTermUnifier(DefaultTermConfig(), nil, logger)
	}
	return &Orchestrator{
		registry: registry,
		cache:    cache,
		batchCfg: batchCfg,
		unifier:  unifier,
		control:  control,
		logger:   logger,
	}
}

// Control 当前控制令牌
func (o *Orchestrator) Control() *Control {
	return o.control
}

// TranslateText 翻译单段文本：保护公式、查翻译记忆、缺失时调用服务并回写
func (o *Orchestrator) TranslateText(ctx context.Context, provider translation.Provider, text string, meta translation.TranslateMeta, useCache bool) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", translation.ErrEmptyText
	}
	protected, mapping := translation.ProtectMath(text)

	key := translation.GenerateCacheKey(provider.Name(), meta, protected)
	if useCache {
		if cached, ok := o.cache.Get(key); ok {
			return translation.RestoreMath(cached, mapping), nil
		}
	}

	out, err := provider.Translate(ctx, protected, meta)
	if err != nil {
		return "", err
	}
	if useCache {
		if err := o.cache.Set(key, out); err != nil {
			o.logger.Warn("translation cache write failed", zap.Error(err))
		}
	}
	return translation.RestoreMath(out, mapping), nil
}

// TranslateDocument 翻译文档中全部可译块，结果写回各块的 Translation 字段，
// 返回失败块数
func (o *Orchestrator) TranslateDocument(ctx context.Context, doc *document.Document, strategy Strategy, progress ProgressFunc) (int, error) {
	provider, err := o.registry.Get(strategy.Provider)
	if err != nil {
		return 0, err
	}
	meta := translation.TranslateMeta{
		SourceLang: doc.SourceLang,
		TargetLang: doc.TargetLang,
	}

	type pending struct {
		block   *document.Block
		key     string
		mapping map[string]string
	}

	blocks := translatableBlocks(doc)
	total := len(blocks)
	done := 0
	report := func() {
		if progress != nil {
			progress(done, total)
		}
	}
	report()

	var tasks []Task
	var waiting []pending
	for _, b := range blocks {
		protected, mapping := translation.ProtectMath(b.Text)
		key := translation.GenerateCacheKey(provider.Name(), meta, protected)
		if strategy.UseCache {
			if cached, ok := o.cache.Get(key); ok {
				b.Translation = translation.RestoreMath(cached, mapping)
				done++
				report()
				continue
			}
		}
		tasks = append(tasks, Task{
			BlockID: b.ID,
			Text:    protected,
			Kind:    blockKind(b),
			Meta:    meta,
		})
		waiting = append(waiting, pending{block: b, key: key, mapping: mapping})
	}

	batchCfg := o.batchCfg
	batchCfg.UsePriority = strategy.UsePriority
	batch := NewSmartBatchTranslator(provider, batchCfg, o.control, o.logger)
	results := batch.TranslateAll(ctx, tasks)

	failed := 0
	for i, res := range results {
		b := waiting[i].block
		if res.Err != nil {
			b.Translation = fmt.Sprintf("[翻译失败: %v]", res.Err)
			b.TranslationError = res.Err.Error()
			failed++
		} else {
			if strategy.UseCache {
				if err := o.cache.Set(waiting[i].key, res.Translation); err != nil {
					o.logger.Warn("translation cache write failed", zap.Error(err))
				}
			}
			b.Translation = translation.RestoreMath(res.Translation, waiting[i].mapping)
		}
		done++
		report()
	}

	if strategy.UseTermConsistency {
		o.unifyDocumentTerms(ctx, doc, provider, meta, strategy.UseCache)
	}

	o.logger.Info("document translation finished",
		zap.String("provider", provider.Name()),
		zap.Int("blocks", total),
		zap.Int("failed", failed))
	return failed, nil
}

// unifyDocumentTerms 提取高频术语，逐个独立翻译取得候选译法，
// 再把译文中残留的原文术语与非规范译法统一
func (o *Orchestrator) unifyDocumentTerms(ctx context.Context, doc *document.Document, provider translation.Provider, meta translation.TranslateMeta, useCache bool) {
	terms := o.unifier.ExtractTerms(doc)
	if len(terms) == 0 {
		return
	}

	variants := make(map[string][]string, len(terms))
	for _, t := range terms {
		out, err := o.TranslateText(ctx, provider, t.Source, meta, useCache)
		if err != nil {
			o.logger.Warn("term translation failed",
				zap.String("term", t.Source), zap.Error(err))
			continue
		}
		variants[t.Source] = append(variants[t.Source], out)
		// 译文中原样残留的术语也作为一种候选译法参与统一
		for _, b := range doc.AllBlocks() {
			if b.Translation != "" && strings.Contains(b.Translation, t.Source) {
				variants[t.Source] = append(variants[t.Source], t.Source)
				break
			}
		}
	}

	resolved := o.unifier.ResolveTranslations(ctx, terms, variants)
	o.unifier.UnifyTerms(doc, resolved, variants)
}

// translatableBlocks 按阅读顺序收集可译块
func translatableBlocks(doc *document.Document) []*document.Block {
	var out []*document.Block
	for _, b := range doc.AllBlocks() {
		if b.IsTranslatable() {
			out = append(out, b)
		}
	}
	return out
}

// blockKind 块类型到调度类别的映射，一级标题视为题目
func blockKind(b *document.Block) TaskKind {
	switch b.Type {
	case document.BlockTypeHeading:
		if b.SectionLevel == 1 {
			return KindTitle
		}
		return KindHeading
	case document.BlockTypeCaption:
		return KindCaption
	default:
		if b.IsFootnote {
			return KindFootnote
		}
		return KindParagraph
	}
}
