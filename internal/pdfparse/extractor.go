package pdfparse

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
)

// RawBlock 提取阶段的原始文本块，坐标已转为左上原点
type RawBlock struct {
	Text     string
	BBox     document.BBox
	FontName string
	FontSize float64
	Bold     bool
	Italic   bool
}

// PageData 单页提取结果
type PageData struct {
	Width  float64
	Height float64
	Blocks []RawBlock
}

// Extractor PDF 文本提取能力
type Extractor interface {
	// Extract 逐页提取文本块及字体信息
	Extract(ctx context.Context, path string) ([]PageData, error)
}

// PDFExtractor 基于 ledongthuc/pdf 的提取实现
type PDFExtractor struct {
	logger *zap.Logger
}

// NewPDFExtractor 创建提取器
func NewPDFExtractor(logger *zap.Logger) *PDFExtractor {
	return &PDFExtractor{logger: logger}
}

// Extract 打开 PDF 并逐页按行提取文本。
// PDF 原生坐标原点在左下角，这里统一转换为左上原点、y 向下。
func (e *PDFExtractor) Extract(ctx context.Context, path string) ([]PageData, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	totalPages := r.NumPage()
	pages := make([]PageData, 0, totalPages)

	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := r.Page(pageNum)
		pd := PageData{Width: 612, Height: 792}
		if !page.V.IsNull() {
			if w, h, ok := mediaBoxSize(page); ok {
				pd.Width, pd.Height = w, h
			}
			pd.Blocks = e.extractPage(page, pd.Height)
		}
		pages = append(pages, pd)
	}

	return pages, nil
}

// mediaBoxSize 从 MediaBox 取页面尺寸，缺失时调用方使用 letter 默认值
func mediaBoxSize(page pdf.Page) (width, height float64, ok bool) {
	mediaBox := page.V.Key("MediaBox")
	if mediaBox.Kind() != pdf.Array || mediaBox.Len() < 4 {
		return 0, 0, false
	}
	width = mediaBox.Index(2).Float64() - mediaBox.Index(0).Float64()
	height = mediaBox.Index(3).Float64() - mediaBox.Index(1).Float64()
	if width <= 0 || height <= 0 {
		return 0, 0, false
	}
	return width, height, true
}

// extractPage 按行提取，每行聚成一个原始块
func (e *PDFExtractor) extractPage(page pdf.Page, pageHeight float64) []RawBlock {
	rows, err := page.GetTextByRow()
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("failed to extract rows from page", zap.Error(err))
		}
		return nil
	}

	var blocks []RawBlock
	for _, row := range rows {
		if len(row.Content) == 0 {
			continue
		}

		var sb strings.Builder
		var minX, maxX, baseline float64
		var totalFontSize float64
		var fontName string
		var bold, italic bool
		counted := 0
		first := true

		for _, t := range row.Content {
			if t.S == "" || isPostScriptCode(t.S) {
				continue
			}
			sb.WriteString(t.S)

			right := t.X + t.W
			if first {
				minX, maxX, baseline = t.X, right, t.Y
				fontName = t.Font
				first = false
			} else {
				if t.X < minX {
					minX = t.X
				}
				if right > maxX {
					maxX = right
				}
			}

			totalFontSize += t.FontSize
			counted++

			fontLower := strings.ToLower(t.Font)
			if strings.Contains(fontLower, "bold") || strings.Contains(fontLower, "black") {
				bold = true
			}
			if strings.Contains(fontLower, "italic") || strings.Contains(fontLower, "oblique") {
				italic = true
			}
		}

		text := strings.TrimSpace(sb.String())
		if text == "" || isPostScriptCode(text) || hasExcessiveNonPrintable(text) {
			continue
		}

		fontSize := 10.0
		if counted > 0 && totalFontSize > 0 {
			fontSize = totalFontSize / float64(counted)
		}
		if maxX <= minX {
			maxX = minX + float64(len(text))*fontSize*0.5
		}

		// 基线上方约一个字号是行顶，下方留两成 descent
		y0 := pageHeight - baseline - fontSize
		blocks = append(blocks, RawBlock{
			Text:     text,
			FontName: fontName,
			FontSize: fontSize,
			Bold:     bold,
			Italic:   italic,
			BBox: document.BBox{
				X0: minX,
				Y0: y0,
				X1: maxX,
				Y1: y0 + fontSize*1.2,
			},
		})
	}

	return blocks
}

// isPostScriptCode 过滤被当成文本提取出来的 PDF 操作符
func isPostScriptCode(text string) bool {
	if len(text) == 0 {
		return false
	}
	textLower := strings.ToLower(text)

	if (strings.Contains(text, " def ") || strings.HasSuffix(text, " def")) && strings.Contains(text, "/") {
		return true
	}
	if strings.Contains(textLower, "null def") {
		return true
	}

	psPatterns := []string{
		"currentpoint", "gsave", "grestore", "newpath", "closepath",
		"setrgbcolor", "setgray", "setlinewidth", "showpage",
		"moveto", "lineto", "curveto",
	}
	for _, p := range psPatterns {
		if strings.Contains(textLower, p) {
			return true
		}
	}

	if !strings.Contains(text, "://") {
		slashNames := 0
		for _, word := range strings.Fields(text) {
			if len(word) > 1 && word[0] == '/' && isPSName(word[1:]) {
				slashNames++
			}
		}
		if slashNames >= 3 {
			return true
		}
	}

	return false
}

func isPSName(s string) bool {
	for _, c := range s {
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') && (c < '0' || c > '9') && c != '_' && c != '@' {
			return false
		}
	}
	return true
}

// hasExcessiveNonPrintable 控制字符过多的行视为乱码丢弃
func hasExcessiveNonPrintable(text string) bool {
	nonPrintable := 0
	total := 0
	for _, r := range text {
		total++
		if r < 32 && r != '\n' && r != '\r' && r != '\t' {
			nonPrintable++
		}
		if r >= 0x7F && r <= 0x9F {
			nonPrintable++
		}
	}
	if total == 0 {
		return false
	}
	return float64(nonPrintable)/float64(total) > 0.1
}
