package export

import (
	"fmt"
	"html"
	"strings"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
)

// htmlStyle 内联样式，导出文件不依赖外部资源
const htmlStyle = `body { font-family: "Noto Sans", "PingFang SC", sans-serif; max-width: 52em; margin: 2em auto; line-height: 1.6; color: #222; }
h1, h2, h3 { line-height: 1.3; }
.block { margin: 0.8em 0; }
.block.caption { font-style: italic; color: #555; font-size: 0.92em; }
.block.formula { font-family: "Courier New", monospace; background: #f6f6f6; padding: 0.4em 0.8em; border-radius: 4px; }
.block.footnote { font-size: 0.85em; color: #666; border-left: 3px solid #ddd; padding-left: 0.8em; }
.placeholder { color: #999; font-style: italic; }
.pair .source { color: #888; font-size: 0.9em; margin-bottom: 0.2em; }
.pair .target { margin-top: 0; }`

// ExportHTML 渲染为单文件 HTML，块级元数据写入 data-* 属性，
// bilingual 时每块原文译文成对出现
func ExportHTML(doc *document.Document, bilingual bool) []byte {
	var sb strings.Builder
	title := doc.Metadata.Title
	if title == "" {
		title = doc.SourcePath
	}

	sb.WriteString("<!DOCTYPE html>\n<html lang=\"" + html.EscapeString(doc.TargetLang) + "\">\n<head>\n")
	sb.WriteString("<meta charset=\"utf-8\">\n")
	sb.WriteString("<title>" + html.EscapeString(truncateMeta(title)) + "</title>\n")
	sb.WriteString("<style>\n" + htmlStyle + "\n</style>\n</head>\n<body>\n")

	figureCount := 0
	tableCount := 0
	for _, page := range doc.Pages {
		for _, b := range page.Blocks {
			if b.IsHeaderFooter {
				continue
			}
			attrs := blockAttrs(b, page)
			switch b.Type {
			case document.BlockTypeHeading:
				level := b.SectionLevel
				if level < 1 {
					level = 1
				}
				if level > 3 {
					level = 3
				}
				tag := fmt.Sprintf("h%d", level)
				sb.WriteString("<" + tag + attrs + ">" + html.EscapeString(blockOutput(b)) + "</" + tag + ">\n")
			case document.BlockTypeFormula:
				sb.WriteString("<div class=\"block formula\"" + attrs + ">" + html.EscapeString(b.Text) + "</div>\n")
			case document.BlockTypeFigure:
				figureCount++
				sb.WriteString(fmt.Sprintf("<div class=\"block placeholder\"%s>[Figure %d]</div>\n", attrs, figureCount))
			case document.BlockTypeTable:
				tableCount++
				sb.WriteString(fmt.Sprintf("<div class=\"block placeholder\"%s>[Table %d]</div>\n", attrs, tableCount))
			case document.BlockTypeCaption:
				sb.WriteString("<div class=\"block caption\"" + attrs + ">" + html.EscapeString(blockOutput(b)) + "</div>\n")
			default:
				cls := "block"
				if b.IsFootnote {
					cls = "block footnote"
				}
				if bilingual && b.Translation != "" && b.Text != "" {
					sb.WriteString("<div class=\"" + cls + " pair\"" + attrs + ">\n")
					sb.WriteString("<p class=\"source\">" + html.EscapeString(flattenLines(b.Text)) + "</p>\n")
					sb.WriteString("<p class=\"target\">" + html.EscapeString(flattenLines(b.Translation)) + "</p>\n")
					sb.WriteString("</div>\n")
					continue
				}
				sb.WriteString("<div class=\"" + cls + "\"" + attrs + "><p>" + html.EscapeString(blockOutput(b)) + "</p></div>\n")
			}
		}
	}

	sb.WriteString("</body>\n</html>\n")
	return []byte(sb.String())
}

// blockAttrs 块级元数据落到 data-* 属性，便于后处理与调试
func blockAttrs(b *document.Block, page *document.Page) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, " data-block-id=\"%s\" data-type=\"%s\" data-page=\"%d\"",
		html.EscapeString(b.ID), html.EscapeString(string(b.Type)), page.Index)
	if b.Confidence > 0 {
		fmt.Fprintf(&sb, " data-confidence=\"%.2f\"", b.Confidence)
	}
	if b.IsFormula {
		sb.WriteString(" data-formula=\"true\"")
	}
	if b.TranslationError != "" {
		fmt.Fprintf(&sb, " data-error=\"%s\"", html.EscapeString(truncateMeta(b.TranslationError)))
	}
	return sb.String()
}

// truncateMeta 元数据文本截断到 80 个字符
func truncateMeta(s string) string {
	r := []rune(s)
	if len(r) <= 80 {
		return s
	}
	return string(r[:80])
}
