package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
)

func TestInterleaveSequence(t *testing.T) {
	assert.Equal(t, []string{"1", "1", "2", "2", "3", "3"}, interleaveSequence(3))
	assert.Empty(t, interleaveSequence(0))
}

func TestOverlayable(t *testing.T) {
	tests := []struct {
		name  string
		block *document.Block
		want  bool
	}{
		{"有译文的段落", &document.Block{Type: document.BlockTypeParagraph, Translation: "译文"}, true},
		{"有译文的标题", &document.Block{Type: document.BlockTypeHeading, Translation: "标题"}, true},
		{"图块保留原样", &document.Block{Type: document.BlockTypeFigure, Translation: "x"}, false},
		{"表块保留原样", &document.Block{Type: document.BlockTypeTable, Translation: "x"}, false},
		{"页眉页脚", &document.Block{Type: document.BlockTypeParagraph, IsHeaderFooter: true, Translation: "x"}, false},
		{"脚注", &document.Block{Type: document.BlockTypeParagraph, IsFootnote: true, Translation: "x"}, false},
		{"无译文", &document.Block{Type: document.BlockTypeParagraph, Translation: "  "}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, overlayable(tt.block))
		})
	}
}

func TestFitFontSize(t *testing.T) {
	t.Run("放得下保持原字号", func(t *testing.T) {
		assert.Equal(t, 10.0, fitFontSize("short", 200, 20, 10))
	})

	t.Run("零字号用默认值", func(t *testing.T) {
		assert.Equal(t, 10.0, fitFontSize("short", 200, 20, 0))
	})

	t.Run("退化盒保持原字号", func(t *testing.T) {
		assert.Equal(t, 12.0, fitFontSize("whatever", 0, 0, 12))
	})

	t.Run("超框按比例缩小", func(t *testing.T) {
		text := strings.Repeat("长", 20)
		got := fitFontSize(text, 60, 45, 12)
		assert.Less(t, got, 12.0)
		assert.GreaterOrEqual(t, got, minFontSize)
	})

	t.Run("严重超框降到下限", func(t *testing.T) {
		text := strings.Repeat("很长的句子", 60)
		assert.Equal(t, minFontSize, fitFontSize(text, 50, 10, 10))
	})
}

func TestTextWidth(t *testing.T) {
	assert.InDelta(t, 10.0, textWidth("ab", 10), 1e-9, "半角半字宽")
	assert.InDelta(t, 10.0, textWidth("中", 10), 1e-9, "全角整字宽")
	assert.InDelta(t, 0, textWidth("\n", 10), 1e-9, "换行不计宽")
}

func TestWrapText(t *testing.T) {
	t.Run("中日韩逐字断行", func(t *testing.T) {
		lines := wrapText("一二三四", 10, 10)
		assert.Equal(t, []string{"一", "二", "三", "四"}, lines)
	})

	t.Run("拉丁按词断行", func(t *testing.T) {
		lines := wrapText("aa bb cc", 10, 15)
		assert.Equal(t, []string{"aa ", "bb ", "cc"}, lines)
	})

	t.Run("宽度充足不断行", func(t *testing.T) {
		assert.Equal(t, []string{"hello world"}, wrapText("hello world", 10, 500))
	})

	t.Run("空文本", func(t *testing.T) {
		assert.Equal(t, []string{""}, wrapText("", 10, 100))
	})

	t.Run("原有换行当作空格", func(t *testing.T) {
		assert.Equal(t, []string{"a b"}, wrapText("a\nb", 10, 100))
	})
}
