package structure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
)

func TestGuessLevel(t *testing.T) {
	a := NewAnalyzer(DefaultAnalyzerConfig())

	tests := []struct {
		name      string
		text      string
		fontSize  float64
		pageIndex int
		want      int
	}{
		{"空文本", "   ", 20, 0, 0},
		{"首页关键词", "Abstract", 10, 0, 1},
		{"首页关键词中文", "引言", 10, 0, 1},
		{"非首页关键词不生效", "Abstract", 10, 3, 0},
		{"一级数字编号", "1 Introduction", 10, 2, 1},
		{"二级数字编号", "2.1 Related Work", 10, 2, 2},
		{"三级数字编号", "3.1.2 Details", 10, 2, 3},
		{"四级编号封顶三级", "1.2.3.4 Deep", 10, 2, 3},
		{"中文章节编号", "第 3 章 方法", 10, 2, 1},
		{"罗马数字编号", "IV. Evaluation", 10, 2, 1},
		{"字母编号", "B. Ablation", 10, 2, 1},
		{"一档字号", "Conclusion", 18, 5, 1},
		{"二档字号", "Conclusion", 14, 5, 2},
		{"三档字号", "Conclusion", 11.5, 5, 3},
		{"档外字号", "Conclusion", 10, 5, 0},
		{"短行全大写", "ACKNOWLEDGMENTS", 10, 5, 2},
		{"普通长段落", "This sentence is much too long to be a heading because it keeps going on and on about nothing.", 18, 5, 0},
		{"数字开头的长段落", "1. The quick brown fox jumps over the lazy dog and then continues with a long discussion of the experimental setup across many clauses.", 10, 2, 0},
		{"罗马数字开头的长段落", "IV. This enumerated sentence runs far past any plausible heading length while describing related work in exhaustive detail.", 10, 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.GuessLevel(tt.text, tt.fontSize, tt.pageIndex))
		})
	}
}

func TestAnalyze(t *testing.T) {
	a := NewAnalyzer(DefaultAnalyzerConfig())

	mk := func(id, text string, fontSize float64) *document.Block {
		return &document.Block{ID: id, Text: text, FontSize: fontSize, Type: document.BlockTypeParagraph}
	}
	blocks := []*document.Block{
		mk("b1", "1 Introduction", 16),
		mk("b2", "opening paragraph", 10),
		mk("b3", "1.1 Motivation", 13),
		mk("b4", "motivation text", 10),
		mk("b5", "1.2 Contributions", 13),
		mk("b6", "2 Method", 16),
		mk("b7", "method text", 10),
	}
	doc := &document.Document{Pages: []*document.Page{{Index: 2, Blocks: blocks}}}
	for _, b := range blocks {
		b.PageIndex = 2
	}

	roots := a.Analyze(doc)

	require.Len(t, roots, 2)
	assert.Equal(t, "1 Introduction", roots[0].Title)
	assert.Equal(t, "2 Method", roots[1].Title)

	require.Len(t, roots[0].Children, 2)
	assert.Equal(t, "1.1 Motivation", roots[0].Children[0].Title)
	assert.Equal(t, "1.2 Contributions", roots[0].Children[1].Title)
	assert.Empty(t, roots[1].Children)

	t.Run("块的章节标注", func(t *testing.T) {
		assert.Equal(t, roots[0].ID, blocks[1].SectionID)
		assert.Equal(t, 1, blocks[1].SectionLevel)
		assert.Equal(t, roots[0].Children[0].ID, blocks[3].SectionID)
		assert.Equal(t, 2, blocks[3].SectionLevel)
		assert.Equal(t, roots[1].ID, blocks[6].SectionID)
	})

	t.Run("节的结束块", func(t *testing.T) {
		assert.Equal(t, "b2", roots[0].EndBlockID, "1 结束于 1.1 前一块")
		assert.Equal(t, "b4", roots[0].Children[0].EndBlockID, "1.1 结束于 1.2 前一块")
		assert.Equal(t, "b7", roots[1].EndBlockID, "最后一节到文档末尾")
	})

	t.Run("文档章节回写", func(t *testing.T) {
		assert.Equal(t, roots, doc.Sections)
	})
}

func TestAnalyzeSkipsNonBody(t *testing.T) {
	a := NewAnalyzer(DefaultAnalyzerConfig())

	heading := &document.Block{ID: "h", Text: "1 Introduction", FontSize: 16, Type: document.BlockTypeParagraph}
	headerFooter := &document.Block{ID: "hf", Text: "2 Conference Proceedings", FontSize: 16, IsHeaderFooter: true}
	formula := &document.Block{ID: "f", Text: "3.1 x", FontSize: 16, Type: document.BlockTypeFormula}
	doc := &document.Document{Pages: []*document.Page{{Index: 1, Blocks: []*document.Block{heading, headerFooter, formula}}}}
	heading.PageIndex = 1

	roots := a.Analyze(doc)

	require.Len(t, roots, 1)
	assert.Equal(t, "1 Introduction", roots[0].Title)
	assert.Empty(t, headerFooter.SectionID, "页眉页脚不参与结构分析")
}

func TestAnalyzeIgnoresEnumeratedParagraphs(t *testing.T) {
	a := NewAnalyzer(DefaultAnalyzerConfig())

	heading := &document.Block{ID: "h", Text: "1 Introduction", FontSize: 16, Type: document.BlockTypeParagraph, PageIndex: 2}
	body := &document.Block{
		ID:        "p",
		Text:      "1. The quick brown fox jumps over the lazy dog and then keeps running through a long experimental narrative that spans well beyond heading length.",
		FontSize:  10,
		Type:      document.BlockTypeParagraph,
		PageIndex: 2,
	}
	doc := &document.Document{Pages: []*document.Page{{Index: 2, Blocks: []*document.Block{heading, body}}}}

	roots := a.Analyze(doc)

	require.Len(t, roots, 1, "编号开头的长段落不应升为章节")
	assert.Equal(t, "1 Introduction", roots[0].Title)
	assert.Equal(t, roots[0].ID, body.SectionID)
}
