package export

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
)

func exportTestDoc() *document.Document {
	return &document.Document{
		SourcePath: "paper.pdf",
		SourceLang: "en",
		TargetLang: "zh",
		Metadata:   document.Metadata{Title: "Sample Paper"},
		Pages: []*document.Page{{
			Index: 0,
			Blocks: []*document.Block{
				{ID: "h1", Type: document.BlockTypeHeading, SectionLevel: 1, Text: "Introduction", Translation: "引言"},
				{ID: "p1", Type: document.BlockTypeParagraph, Text: "the original sentence", Translation: "译文段落"},
				{ID: "eq1", Type: document.BlockTypeFormula, Text: "E = mc^2", Confidence: 0.9, IsFormula: true},
				{ID: "fig1", Type: document.BlockTypeFigure, Text: ""},
				{ID: "cap1", Type: document.BlockTypeCaption, Text: "Figure 1: overview", Translation: "图 1：总览"},
				{ID: "fn1", Type: document.BlockTypeParagraph, IsFootnote: true, Text: "1) a note", Translation: "脚注译文"},
				{ID: "hf1", Type: document.BlockTypeParagraph, IsHeaderFooter: true, Text: "Running Header"},
			},
		}},
	}
}

func TestExportMarkdown(t *testing.T) {
	out := string(ExportMarkdown(exportTestDoc(), false))

	assert.Contains(t, out, "# Sample Paper\n")
	assert.Contains(t, out, "# 引言\n")
	assert.Contains(t, out, "译文段落")
	assert.Contains(t, out, "$$\nE = mc^2\n$$")
	assert.Contains(t, out, "*[Figure 1]*")
	assert.Contains(t, out, "*图 1：总览*")
	assert.Contains(t, out, "> 脚注译文")
	assert.NotContains(t, out, "Running Header", "页眉页脚不导出")
	assert.NotContains(t, out, "the original sentence", "单语模式只出译文")
}

func TestExportMarkdownBilingual(t *testing.T) {
	out := string(ExportMarkdown(exportTestDoc(), true))

	assert.Contains(t, out, "the original sentence\n\n译文段落")
}

func TestExportMarkdownHeadingLevels(t *testing.T) {
	doc := &document.Document{Pages: []*document.Page{{Blocks: []*document.Block{
		{Type: document.BlockTypeHeading, SectionLevel: 0, Text: "Top"},
		{Type: document.BlockTypeHeading, SectionLevel: 3, Text: "Sub"},
		{Type: document.BlockTypeHeading, SectionLevel: 9, Text: "Deep"},
	}}}}
	out := string(ExportMarkdown(doc, false))

	assert.Contains(t, out, "# Top\n")
	assert.Contains(t, out, "### Sub\n")
	assert.Contains(t, out, "###### Deep\n", "层级压到六级")
}

func TestExportMarkdownFallsBackToSource(t *testing.T) {
	doc := &document.Document{Pages: []*document.Page{{Blocks: []*document.Block{
		{Type: document.BlockTypeParagraph, Text: "untranslated\ntext"},
	}}}}
	out := string(ExportMarkdown(doc, false))
	assert.Contains(t, out, "untranslated text", "无译文时保留原文并压平换行")
}
