package export

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/translation"
)

const (
	// KindMono 仅译文单页输出
	KindMono = "mono"
	// KindDual 原文页与译文页交错输出
	KindDual = "dual"

	minFontSize    = 6.0
	lineHeightMult = 1.2
)

// Options PDF 导出选项
type Options struct {
	// Kind mono 或 dual
	Kind string `mapstructure:"kind" json:"kind" yaml:"kind"`
	// SubsetFonts 嵌入前对用户字体做子集化
	SubsetFonts bool `mapstructure:"subset_fonts" json:"subset_fonts" yaml:"subset_fonts"`
	// PDFA 输出 PDF/A-2B 标识，失败时静默降级
	PDFA bool `mapstructure:"pdfa" json:"pdfa" yaml:"pdfa"`
	// FontFile 覆盖自动发现的译文字体
	FontFile string `mapstructure:"font_file" json:"font_file" yaml:"font_file"`
}

// PDFExporter 在源 PDF 上用白底文本水印覆盖原文块生成译文版
type PDFExporter struct {
	logger *zap.Logger
}

// NewPDFExporter 创建 PDF 导出器
func NewPDFExporter(logger *zap.Logger) *PDFExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PDFExporter{logger: logger}
}

// ExportPDF 根据文档结构与译文生成新 PDF
func (e *PDFExporter) ExportPDF(doc *document.Document, opts Options) ([]byte, error) {
	src, err := os.ReadFile(doc.SourcePath)
	if err != nil {
		return nil, translation.NewTranslationError(translation.ErrCodeExport,
			"读取源 PDF 失败", err)
	}
	if opts.Kind == "" {
		opts.Kind = KindMono
	}

	fontName, cleanup, err := e.prepareFont(doc, opts)
	if err != nil {
		e.logger.Warn("user font unavailable, falling back to builtin",
			zap.Error(err))
		fontName = "Helvetica"
	}
	if cleanup != nil {
		defer cleanup()
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pdfData := src
	dual := opts.Kind == KindDual
	if dual {
		var buf bytes.Buffer
		if err := api.Collect(bytes.NewReader(src), &buf, interleaveSequence(len(doc.Pages)), conf); err != nil {
			return nil, translation.NewTranslationError(translation.ErrCodeExport,
				"页面复制失败", err)
		}
		pdfData = buf.Bytes()
	}

	wmMap, err := e.buildWatermarks(doc, fontName, dual)
	if err != nil {
		return nil, err
	}

	out := pdfData
	if len(wmMap) > 0 {
		var buf bytes.Buffer
		if err := api.AddWatermarksSliceMap(bytes.NewReader(pdfData), &buf, wmMap, conf); err != nil {
			return nil, translation.NewTranslationError(translation.ErrCodeExport,
				"覆盖译文失败", err)
		}
		out = buf.Bytes()
	}

	if opts.PDFA {
		out = e.applyPDFA(out, conf)
	}

	e.logger.Info("pdf exported",
		zap.String("kind", opts.Kind),
		zap.Int("pages", len(doc.Pages)),
		zap.Int("bytes", len(out)))
	return out, nil
}

// prepareFont 发现并注册译文字体，可选子集化，返回注册名与清理函数
func (e *PDFExporter) prepareFont(doc *document.Document, opts Options) (string, func(), error) {
	fontPath := opts.FontFile
	if fontPath == "" {
		p, err := FindCJKFont()
		if err != nil {
			return "", nil, err
		}
		fontPath = p
	}

	installPath := fontPath
	var cleanup func()
	if opts.SubsetFonts {
		data, err := os.ReadFile(fontPath)
		if err != nil {
			return "", nil, err
		}
		subset := SubsetFont(data, CollectChars(doc), e.logger)
		if len(subset) != len(data) {
			dir, err := os.MkdirTemp("", "pdftranslator-font-*")
			if err != nil {
				return "", nil, err
			}
			installPath = filepath.Join(dir, FontBaseName(fontPath)+".ttf")
			if err := os.WriteFile(installPath, subset, 0o644); err != nil {
				os.RemoveAll(dir)
				return "", nil, err
			}
			cleanup = func() { os.RemoveAll(dir) }
		}
	}

	if err := api.InstallFonts([]string{installPath}); err != nil {
		if cleanup != nil {
			cleanup()
		}
		return "", nil, fmt.Errorf("注册字体失败: %w", err)
	}
	return FontBaseName(fontPath), cleanup, nil
}

// buildWatermarks 每个可覆盖块一个白底文本水印，dual 模式只写到译文页
func (e *PDFExporter) buildWatermarks(doc *document.Document, fontName string, dual bool) (map[int][]*model.Watermark, error) {
	wmMap := make(map[int][]*model.Watermark)
	for _, page := range doc.Pages {
		pageNr := page.Index + 1
		if dual {
			pageNr = page.Index*2 + 2
		}
		for _, b := range page.Blocks {
			if !overlayable(b) {
				continue
			}
			wm, err := e.blockWatermark(b, page, fontName)
			if err != nil {
				e.logger.Warn("block overlay skipped",
					zap.String("blockID", b.ID), zap.Error(err))
				continue
			}
			wmMap[pageNr] = append(wmMap[pageNr], wm)
		}
	}
	return wmMap, nil
}

// overlayable 图、表、页眉页脚与脚注保留原样
func overlayable(b *document.Block) bool {
	switch b.Type {
	case document.BlockTypeFigure, document.BlockTypeTable:
		return false
	}
	if b.IsHeaderFooter || b.IsFootnote {
		return false
	}
	return strings.TrimSpace(b.Translation) != ""
}

// blockWatermark 在块原位置放置白底译文，字号超框时按比例缩小
func (e *PDFExporter) blockWatermark(b *document.Block, page *document.Page, fontName string) (*model.Watermark, error) {
	boxW, boxH := b.BBox.Width(), b.BBox.Height()
	size := fitFontSize(b.Translation, boxW, boxH, b.FontSize)
	lines := wrapText(b.Translation, size, boxW)

	// 文档坐标系原点在左上，pdfcpu 偏移从页面左下角起算
	offX := b.BBox.X0
	offY := page.Height - b.BBox.Y1

	desc := fmt.Sprintf(
		"fontname:%s, points:%s, position:bl, offset:%s %s, scalefactor:1 abs, rotation:0, fillcolor:#000000, backgroundcolor:#ffffff, margins:1, opacity:1",
		fontName, formatPoints(size), formatPoints(offX), formatPoints(offY))
	wm, err := api.TextWatermark(strings.Join(lines, "\n"), desc, true, false, 0)
	if err != nil {
		return nil, fmt.Errorf("构造文本水印失败: %w", err)
	}
	return wm, nil
}

// applyPDFA 尽力输出 PDF/A-2B 标识，任何失败都返回原数据
func (e *PDFExporter) applyPDFA(data []byte, conf *model.Configuration) []byte {
	out, err := stampPDFA2B(data, conf)
	if err != nil {
		e.logger.Warn("pdf/a identification skipped", zap.Error(err))
		return data
	}
	return out
}

// interleaveSequence dual 模式的页序列 1,1,2,2,...
func interleaveSequence(pages int) []string {
	seq := make([]string, 0, pages*2)
	for i := 1; i <= pages; i++ {
		p := strconv.Itoa(i)
		seq = append(seq, p, p)
	}
	return seq
}

// fitFontSize 估算译文占用面积，超框时按比例缩小一次，下限 6pt
func fitFontSize(text string, boxW, boxH, size float64) float64 {
	if size <= 0 {
		size = 10
	}
	if boxW <= 0 || boxH <= 0 {
		return size
	}
	if estimateHeight(text, size, boxW) <= boxH*1.05 {
		return size
	}
	needed := textWidth(text, size) * size * lineHeightMult
	scale := math.Sqrt(boxW * boxH / needed)
	shrunk := size * scale
	if shrunk < minFontSize {
		shrunk = minFontSize
	}
	if estimateHeight(text, shrunk, boxW) <= boxH*1.2 {
		return shrunk
	}
	return minFontSize
}

// estimateHeight 按换行后的行数估算排版高度
func estimateHeight(text string, size, boxW float64) float64 {
	width := textWidth(text, size)
	lines := math.Ceil(width / boxW)
	if lines < 1 {
		lines = 1
	}
	return lines * size * lineHeightMult
}

// textWidth 半角记 0.5 字宽、全角记 1 字宽的宽度估算
func textWidth(text string, size float64) float64 {
	var cells float64
	for _, r := range text {
		if r == '\n' {
			continue
		}
		cells += float64(runewidth.RuneWidth(r))
	}
	return cells * size * 0.5
}

// wrapText 按估算宽度断行，中日韩逐字、拉丁按词
func wrapText(text string, size, boxW float64) []string {
	if boxW <= 0 {
		return []string{text}
	}
	maxCells := boxW / (size * 0.5)
	if maxCells < 1 {
		maxCells = 1
	}

	var lines []string
	var line strings.Builder
	var cells float64
	flush := func() {
		if line.Len() > 0 {
			lines = append(lines, line.String())
			line.Reset()
			cells = 0
		}
	}
	for _, r := range strings.ReplaceAll(text, "\n", " ") {
		w := float64(runewidth.RuneWidth(r))
		if cells+w > maxCells {
			flush()
			if r == ' ' {
				continue
			}
		}
		line.WriteRune(r)
		cells += w
	}
	flush()
	if len(lines) == 0 {
		lines = []string{""}
	}
	return lines
}

func formatPoints(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
