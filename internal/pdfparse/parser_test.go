package pdfparse

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
)

// fakeExtractor 返回固定页数据，替代真实 PDF 提取
type fakeExtractor struct {
	pages []PageData
	err   error
	calls int
}

func (f *fakeExtractor) Extract(ctx context.Context, path string) ([]PageData, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.pages, nil
}

func heuristicConfig() Config {
	cfg := DefaultConfig()
	cfg.UseFeatures = false
	return cfg
}

func samplePages() []PageData {
	return []PageData{{
		Width:  595,
		Height: 842,
		Blocks: []RawBlock{
			{Text: "1 Introduction", BBox: document.BBox{X0: 50, Y0: 85, X1: 300, Y1: 105}, FontSize: 16},
			{Text: "first line of the opening paragraph", BBox: document.BBox{X0: 50, Y0: 120, X1: 280, Y1: 135}, FontSize: 10},
			{Text: "second line continues the same paragraph", BBox: document.BBox{X0: 50, Y0: 137, X1: 280, Y1: 152}, FontSize: 10},
		},
	}}
}

func TestParserParse(t *testing.T) {
	ext := &fakeExtractor{pages: samplePages()}
	p, err := New(ext, nil, heuristicConfig(), zap.NewNop())
	require.NoError(t, err)

	var reports int
	doc, err := p.Parse(context.Background(), "paper.pdf", "en", "zh", func(done, total int) {
		reports++
		assert.Equal(t, 1, total)
	})
	require.NoError(t, err)

	assert.Equal(t, "en", doc.SourceLang)
	assert.Equal(t, "zh", doc.TargetLang)
	assert.Equal(t, 1, doc.Metadata.PageCount)
	assert.Equal(t, 1, reports)
	require.Len(t, doc.Pages, 1)

	page := doc.Pages[0]
	require.Len(t, page.Blocks, 2, "相邻段落行被合并")

	t.Run("段落合并", func(t *testing.T) {
		para := page.Blocks[1]
		assert.Equal(t, document.BlockTypeParagraph, para.Type)
		assert.Contains(t, para.Text, "first line")
		assert.Contains(t, para.Text, "second line")
		assert.Equal(t, 152.0, para.BBox.Y1)
	})

	t.Run("阅读序连续", func(t *testing.T) {
		for i, b := range page.Blocks {
			assert.Equal(t, i, b.ReadingOrder)
		}
	})

	t.Run("章节树", func(t *testing.T) {
		require.Len(t, doc.Sections, 1)
		assert.Equal(t, "1 Introduction", doc.Sections[0].Title)
		assert.Equal(t, doc.Sections[0].ID, page.Blocks[1].SectionID)
	})
}

func TestParserParseErrors(t *testing.T) {
	t.Run("提取失败直接返回", func(t *testing.T) {
		ext := &fakeExtractor{err: errors.New("broken xref")}
		p, err := New(ext, nil, heuristicConfig(), zap.NewNop())
		require.NoError(t, err)

		_, err = p.Parse(context.Background(), "bad.pdf", "en", "zh", nil)
		assert.ErrorContains(t, err, "broken xref")
	})

	t.Run("上下文取消", func(t *testing.T) {
		ext := &fakeExtractor{pages: samplePages()}
		p, err := New(ext, nil, heuristicConfig(), zap.NewNop())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = p.Parse(ctx, "paper.pdf", "en", "zh", nil)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("非法字体模式", func(t *testing.T) {
		cfg := heuristicConfig()
		cfg.VFontPattern = `(bad`
		_, err := New(&fakeExtractor{}, nil, cfg, zap.NewNop())
		assert.Error(t, err)
	})
}

func TestParserProgressPanicTolerated(t *testing.T) {
	ext := &fakeExtractor{pages: samplePages()}
	p, err := New(ext, nil, heuristicConfig(), zap.NewNop())
	require.NoError(t, err)

	_, err = p.Parse(context.Background(), "paper.pdf", "en", "zh", func(done, total int) {
		panic("sink exploded")
	})
	assert.NoError(t, err)
}

func TestParseCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "paper.pdf")
	require.NoError(t, os.WriteFile(src, []byte("%PDF-1.7 fake body"), 0o644))

	cfg := heuristicConfig()
	cfg.UseCache = true
	cfg.CacheDir = filepath.Join(dir, "cache")

	ext := &fakeExtractor{pages: samplePages()}
	p, err := New(ext, nil, cfg, zap.NewNop())
	require.NoError(t, err)

	first, err := p.Parse(context.Background(), src, "en", "zh", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, ext.calls)

	second, err := p.Parse(context.Background(), src, "en", "ja", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, ext.calls, "第二次命中缓存不再提取")
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "ja", second.TargetLang, "缓存命中后覆盖目标语言")

	t.Run("配置变更缓存失效", func(t *testing.T) {
		cfg2 := cfg
		cfg2.Enhance.HeaderBand = 0.1
		p2, err := New(ext, nil, cfg2, zap.NewNop())
		require.NoError(t, err)
		_, err = p2.Parse(context.Background(), src, "en", "zh", nil)
		require.NoError(t, err)
		assert.Equal(t, 2, ext.calls)
	})
}

func TestProvisionalType(t *testing.T) {
	tests := []struct {
		name string
		text string
		want document.BlockType
	}{
		{"图说明", "Figure 2: ablation", document.BlockTypeCaption},
		{"短行全大写", "RELATED WORK", document.BlockTypeHeading},
		{"普通段落", "We propose a new method for document parsing.", document.BlockTypeParagraph},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, provisionalType(RawBlock{Text: tt.text}))
		})
	}
}

func TestIsPostScriptCode(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"操作符def", "/F1 10 def", true},
		{"绘图操作符", "100 200 moveto 300 400 lineto", true},
		{"多个斜杠名", "/Font /Helvetica /Bold weights", true},
		{"URL不误杀", "see https://example.com/a/b/c for details", false},
		{"普通文本", "an ordinary sentence", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isPostScriptCode(tt.text))
		})
	}
}
