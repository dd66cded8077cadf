package pdfparse

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-pdf-translator/internal/layout"
	"github.com/nerdneilsfield/go-pdf-translator/internal/structure"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
)

// ProgressFunc 解析进度回调，按页上报
type ProgressFunc func(done, total int)

// Config 结构化解析配置
type Config struct {
	// UseFeatures 区域检测走特征分类路径，关闭时使用纯启发式
	UseFeatures bool `json:"use_features"`
	// VFontPattern 用户数学字体名模式，空则用内置模式
	VFontPattern string `json:"vfont_pattern"`
	// VCharPattern 用户数学字符模式
	VCharPattern string `json:"vchar_pattern"`
	// UseCache 启用解析结果缓存
	UseCache bool `json:"use_cache"`
	// CacheDir 缓存目录
	CacheDir string `json:"cache_dir"`

	Rules     layout.RuleConfig        `json:"rules"`
	Enhance   layout.EnhancementConfig `json:"enhance"`
	Structure structure.AnalyzerConfig `json:"structure"`
	Classify  layout.ClassifierConfig  `json:"classify"`
}

// DefaultConfig 返回默认解析配置
func DefaultConfig() Config {
	return Config{
		UseFeatures: true,
		Rules:       layout.DefaultRuleConfig(),
		Enhance:     layout.DefaultEnhancementConfig(),
		Structure:   structure.DefaultAnalyzerConfig(),
		Classify:    layout.DefaultClassifierConfig(),
	}
}

// Parser PDF 结构化解析器，串联提取、分类、区域融合、增强与结构分析
type Parser struct {
	config    Config
	extractor Extractor
	detector  *layout.FormulaDetector
	regions   *layout.RegionDetector
	enhancer  *layout.Enhancer
	analyzer  *structure.Analyzer
	cache     *parseCache
	logger    *zap.Logger
}

// New 创建解析器，classifier 传 nil 时使用未训练分类器（规则回退）
func New(extractor Extractor, classifier *layout.Classifier, cfg Config, logger *zap.Logger) (*Parser, error) {
	detector, err := layout.NewFormulaDetector(cfg.VFontPattern, cfg.VCharPattern)
	if err != nil {
		return nil, fmt.Errorf("create formula detector: %w", err)
	}
	if classifier == nil {
		classifier = layout.NewClassifier(cfg.Classify)
	}

	extractorFeat := layout.NewExtractor(detector)
	p := &Parser{
		config:    cfg,
		extractor: extractor,
		detector:  detector,
		regions:   layout.NewRegionDetector(extractorFeat, classifier, detector, cfg.Rules, cfg.UseFeatures),
		enhancer:  layout.NewEnhancer(cfg.Enhance),
		analyzer:  structure.NewAnalyzer(cfg.Structure),
		logger:    logger,
	}
	if cfg.UseCache && cfg.CacheDir != "" {
		p.cache = newParseCache(cfg.CacheDir, logger)
	}
	return p, nil
}

// Parse 解析 PDF 为结构化文档。解析错误对整个文档是致命的，直接返回。
func (p *Parser) Parse(ctx context.Context, path, langIn, langOut string, progress ProgressFunc) (*document.Document, error) {
	report := safeProgress(progress, p.logger)

	var cacheKey string
	if p.cache != nil {
		if key, err := p.cache.key(path, p.config); err == nil {
			cacheKey = key
			if doc, ok := p.cache.load(cacheKey); ok {
				p.logger.Info("parse cache hit",
					zap.String("path", filepath.Base(path)),
					zap.Int("pages", len(doc.Pages)))
				doc.SourceLang, doc.TargetLang = langIn, langOut
				report(len(doc.Pages), len(doc.Pages))
				return doc, nil
			}
		}
	}

	start := time.Now()
	pages, err := p.extractor.Extract(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("extract pdf %s: %w", filepath.Base(path), err)
	}

	doc := &document.Document{
		ID:         uuid.NewString(),
		SourcePath: path,
		SourceLang: langIn,
		TargetLang: langOut,
		Metadata: document.Metadata{
			PageCount: len(pages),
			ParsedAt:  time.Now(),
		},
	}

	readingOrder := 0
	for i, pd := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := p.buildPage(i, pd)
		p.mergeParagraphs(page)
		p.enhancer.FlagHeaderFooterBands(page)

		regions := p.regions.DetectPage(page)
		page.Regions = regions
		layout.ApplyRegions(page, regions)

		p.enhancer.ScoreFootnotes(page)
		readingOrder = layout.AssignReadingOrder(page, readingOrder)

		doc.Pages = append(doc.Pages, page)
		report(i+1, len(pages))
	}

	p.enhancer.DedupHeaderFooters(doc)
	p.analyzer.Analyze(doc)

	p.logger.Info("pdf parsed",
		zap.String("path", filepath.Base(path)),
		zap.Int("pages", len(doc.Pages)),
		zap.Int("blocks", len(doc.AllBlocks())),
		zap.Int("sections", len(doc.Sections)),
		zap.Duration("elapsed", time.Since(start)))

	if p.cache != nil && cacheKey != "" {
		p.cache.store(cacheKey, doc)
	}
	return doc, nil
}

// buildPage 把原始块转成带临时类型的文档块，并按（y0, x0）排序
func (p *Parser) buildPage(index int, pd PageData) *document.Page {
	page := &document.Page{
		Index:  index,
		Width:  pd.Width,
		Height: pd.Height,
	}
	for _, rb := range pd.Blocks {
		b := &document.Block{
			ID:        uuid.NewString(),
			PageIndex: index,
			Text:      rb.Text,
			BBox:      rb.BBox,
			FontName:  rb.FontName,
			FontSize:  rb.FontSize,
			Bold:      rb.Bold,
			Italic:    rb.Italic,
			Type:      provisionalType(rb),
		}
		b.IsFormula, b.FormulaConfidence = p.detector.Detect(rb.Text, rb.FontName)
		page.Blocks = append(page.Blocks, b)
	}
	sort.SliceStable(page.Blocks, func(i, j int) bool {
		a, b := page.Blocks[i], page.Blocks[j]
		if a.BBox.Y0 != b.BBox.Y0 {
			return a.BBox.Y0 < b.BBox.Y0
		}
		return a.BBox.X0 < b.BBox.X0
	})
	return page
}

// provisionalType 解析初期的粗分类，区域融合阶段可能覆盖
func provisionalType(rb RawBlock) document.BlockType {
	if layout.IsCaptionText(rb.Text) {
		return document.BlockTypeCaption
	}
	runes := []rune(rb.Text)
	if len(runes) < 60 && strings.Count(rb.Text, "\n") == 0 && upperLetterRatio(rb.Text) > 0.6 {
		return document.BlockTypeHeading
	}
	return document.BlockTypeParagraph
}

// mergeParagraphs 合并同栏相邻的段落行。
// 行距阈值取 6pt 和页高 1.2% 的较大者，负间隙容忍到 -2pt 处理行框重叠。
func (p *Parser) mergeParagraphs(page *document.Page) {
	if len(page.Blocks) < 2 {
		return
	}
	gapThreshold := math.Max(6.0, 0.012*page.Height)

	merged := page.Blocks[:1]
	for _, b := range page.Blocks[1:] {
		prev := merged[len(merged)-1]
		gap := b.BBox.Y0 - prev.BBox.Y1
		if prev.Type == document.BlockTypeParagraph && b.Type == document.BlockTypeParagraph &&
			gap >= -2 && gap <= gapThreshold &&
			prev.BBox.HorizontalOverlap(b.BBox) > 10 {
			prev.Text = prev.Text + "\n" + b.Text
			prev.BBox = prev.BBox.Union(b.BBox)
			continue
		}
		merged = append(merged, b)
	}
	page.Blocks = merged
}

func upperLetterRatio(text string) float64 {
	var upper, letters int
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}

// safeProgress 进度回调是尽力而为的，绝不允许外部回调把异常抛进解析管线
func safeProgress(progress ProgressFunc, logger *zap.Logger) ProgressFunc {
	if progress == nil {
		return func(int, int) {}
	}
	return func(done, total int) {
		defer func() {
			if r := recover(); r != nil && logger != nil {
				logger.Warn("progress callback panicked", zap.Any("reason", r))
			}
		}()
		progress(done, total)
	}
}
