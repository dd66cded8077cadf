package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-pdf-translator/internal/export"
	"github.com/nerdneilsfield/go-pdf-translator/internal/pdfparse"
	"github.com/nerdneilsfield/go-pdf-translator/internal/translator"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/translation"
)

// Stage 任务所处阶段
type Stage string

const (
	StagePending     Stage = "pending"
	StageParsing     Stage = "parsing"
	StageTranslating Stage = "translating"
	StageComposing   Stage = "composing"
	StageSuccess     Stage = "success"
	StageFailed      Stage = "failed"
	StageCanceled    Stage = "canceled"
)

// Format 输出格式
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatDOCX     Format = "docx"
)

// Request 一次翻译任务的输入
type Request struct {
	InputPath  string
	OutputPath string
	Format     Format
	SourceLang string
	TargetLang string
	Bilingual  bool
	Strategy   translator.Strategy
	PDFOptions export.Options
}

// Progress 阶段进度快照
type Progress struct {
	JobID   string
	Stage   Stage
	Done    int
	Total   int
	Message string
}

// ProgressSink 进度回调，尽力通知，panic 不会传入流水线
type ProgressSink func(Progress)

// Result 任务结果
type Result struct {
	JobID        string
	Stage        Stage
	Document     *document.Document
	OutputPath   string
	FailedBlocks int
	TotalBlocks  int
	Elapsed      time.Duration
}

// Pipeline 解析、翻译、导出三阶段的任务流水线
type Pipeline struct {
	parser       *pdfparse.Parser
	orchestrator *translator.Orchestrator
	exporter     *export.PDFExporter
	logger       *zap.Logger

	mu   sync.Mutex
	jobs map[string]Stage
}

// New 创建流水线
func New(parser *pdfparse.Parser, orch *translator.Orchestrator, exporter *export.PDFExporter, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if exporter == nil {
		exporter = export.NewPDFExporter(logger)
	}
	return &Pipeline{
		parser:       parser,
		orchestrator: orch,
		exporter:     exporter,
		logger:       logger,
		jobs:         make(map[string]Stage),
	}
}

// Control 与批量翻译器共享的控制令牌
func (p *Pipeline) Control() *translator.Control {
	return p.orchestrator.Control()
}

// JobStage 查询任务阶段，未知任务返回 pending
func (p *Pipeline) JobStage(jobID string) Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.jobs[jobID]; ok {
		return s
	}
	return StagePending
}

// Run 执行完整任务：解析失败即失败，翻译阶段块级失败只计数
func (p *Pipeline) Run(ctx context.Context, req Request, sink ProgressSink) (*Result, error) {
	jobID := uuid.New().String()
	start := time.Now()
	res := &Result{JobID: jobID, Stage: StagePending}

	notify := func(stage Stage, done, total int, msg string) {
		p.mu.Lock()
		p.jobs[jobID] = stage
		p.mu.Unlock()
		res.Stage = stage
		if sink == nil {
			return
		}
		defer func() {
			if r := recover(); r != nil {
				p.logger.Warn("progress sink panicked", zap.Any("panic", r))
			}
		}()
		sink(Progress{JobID: jobID, Stage: stage, Done: done, Total: total, Message: msg})
	}

	fail := func(err error) (*Result, error) {
		stage := StageFailed
		if errors.Is(err, translation.ErrCanceled) || errors.Is(err, context.Canceled) {
			stage = StageCanceled
		}
		notify(stage, 0, 0, err.Error())
		res.Elapsed = time.Since(start)
		return res, err
	}

	notify(StagePending, 0, 0, "")

	// 解析
	notify(StageParsing, 0, 0, "")
	doc, err := p.parser.Parse(ctx, req.InputPath, req.SourceLang, req.TargetLang, func(done, total int) {
		notify(StageParsing, done, total, "")
	})
	if err != nil {
		return fail(fmt.Errorf("解析失败: %w", err))
	}
	res.Document = doc

	// 翻译
	notify(StageTranslating, 0, 0, "")
	failed, err := p.orchestrator.TranslateDocument(ctx, doc, req.Strategy, func(done, total int) {
		notify(StageTranslating, done, total, "")
	})
	if err != nil {
		return fail(err)
	}
	if cerr := p.Control().Wait(ctx); cerr != nil {
		return fail(cerr)
	}
	res.FailedBlocks = failed
	res.TotalBlocks = len(doc.AllBlocks())
	if failed > 0 {
		p.logger.Warn("partial translation failure",
			zap.Int("failed", failed), zap.Int("total", res.TotalBlocks))
	}

	// 导出
	notify(StageComposing, 0, 0, "")
	data, err := p.compose(doc, req)
	if err != nil {
		return fail(fmt.Errorf("导出失败: %w", err))
	}
	outPath := req.OutputPath
	if outPath == "" {
		outPath = defaultOutputPath(req.InputPath, req.Format)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fail(fmt.Errorf("写出结果失败: %w", err))
	}
	res.OutputPath = outPath

	doneMsg := "done"
	if failed > 0 {
		doneMsg = fmt.Sprintf("partial failure %d/%d", failed, res.TotalBlocks)
	}
	notify(StageSuccess, res.TotalBlocks, res.TotalBlocks, doneMsg)
	res.Elapsed = time.Since(start)
	p.logger.Info("job finished",
		zap.String("jobID", jobID),
		zap.String("output", outPath),
		zap.Int("failedBlocks", failed),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

func (p *Pipeline) compose(doc *document.Document, req Request) ([]byte, error) {
	switch req.Format {
	case FormatMarkdown:
		return export.ExportMarkdown(doc, req.Bilingual), nil
	case FormatHTML:
		return export.ExportHTML(doc, req.Bilingual), nil
	case FormatDOCX:
		return export.ExportDOCX(doc, req.Bilingual)
	case FormatPDF, "":
		opts := req.PDFOptions
		if req.Bilingual && opts.Kind == "" {
			opts.Kind = export.KindDual
		}
		return p.exporter.ExportPDF(doc, opts)
	default:
		return nil, fmt.Errorf("不支持的输出格式: %s", req.Format)
	}
}

func defaultOutputPath(input string, format Format) string {
	ext := ".pdf"
	switch format {
	case FormatMarkdown:
		ext = ".md"
	case FormatHTML:
		ext = ".html"
	case FormatDOCX:
		ext = ".docx"
	}
	base := input[:len(input)-len(filepath.Ext(input))]
	return base + "_translated" + ext
}
