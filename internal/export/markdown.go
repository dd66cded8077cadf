package export

import (
	"fmt"
	"strings"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
)

// ExportMarkdown 按阅读顺序把文档结构渲染为 Markdown，
// 有译文的块用译文，否则保留原文
func ExportMarkdown(doc *document.Document, bilingual bool) []byte {
	var sb strings.Builder

	if doc.Metadata.Title != "" {
		sb.WriteString("# " + doc.Metadata.Title + "\n\n")
	}

	figureCount := 0
	tableCount := 0
	for _, page := range doc.Pages {
		for _, b := range page.Blocks {
			if b.IsHeaderFooter {
				continue
			}
			switch b.Type {
			case document.BlockTypeHeading:
				level := b.SectionLevel
				if level < 1 {
					level = 1
				}
				if level > 6 {
					level = 6
				}
				sb.WriteString(strings.Repeat("#", level) + " " + blockOutput(b) + "\n\n")
			case document.BlockTypeFormula:
				sb.WriteString("$$\n" + strings.TrimSpace(b.Text) + "\n$$\n\n")
			case document.BlockTypeFigure:
				figureCount++
				sb.WriteString(fmt.Sprintf("*[Figure %d]*\n\n", figureCount))
			case document.BlockTypeTable:
				tableCount++
				sb.WriteString(fmt.Sprintf("*[Table %d]*\n\n", tableCount))
			case document.BlockTypeCaption:
				sb.WriteString("*" + blockOutput(b) + "*\n\n")
			default:
				if b.IsFootnote {
					sb.WriteString("> " + blockOutput(b) + "\n\n")
					continue
				}
				if bilingual && b.Translation != "" && b.Text != "" {
					sb.WriteString(flattenLines(b.Text) + "\n\n")
				}
				sb.WriteString(blockOutput(b) + "\n\n")
			}
		}
	}
	return []byte(sb.String())
}

// blockOutput 优先译文，换行压成空格
func blockOutput(b *document.Block) string {
	if b.Translation != "" {
		return flattenLines(b.Translation)
	}
	return flattenLines(b.Text)
}

func flattenLines(s string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}
