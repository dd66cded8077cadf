package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseHTML(t *testing.T, data []byte) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	require.NoError(t, err)
	return doc
}

func TestExportHTML(t *testing.T) {
	out := ExportHTML(exportTestDoc(), false)
	page := parseHTML(t, out)

	assert.Equal(t, "Sample Paper", page.Find("title").Text())
	assert.Equal(t, "引言", page.Find("h1").Text())
	assert.Equal(t, "E = mc^2", page.Find("div.block.formula").Text())
	assert.Equal(t, "[Figure 1]", page.Find("div.placeholder").Text())
	assert.Equal(t, "图 1：总览", page.Find("div.caption").Text())
	assert.Equal(t, "脚注译文", page.Find("div.footnote").Text())
	assert.NotContains(t, string(out), "Running Header")

	t.Run("块级元数据属性", func(t *testing.T) {
		eq := page.Find(`[data-block-id="eq1"]`)
		require.Equal(t, 1, eq.Length())
		assert.Equal(t, "formula", eq.AttrOr("data-type", ""))
		assert.Equal(t, "0", eq.AttrOr("data-page", ""))
		assert.Equal(t, "0.90", eq.AttrOr("data-confidence", ""))
		assert.Equal(t, "true", eq.AttrOr("data-formula", ""))
	})

	t.Run("语言标注", func(t *testing.T) {
		lang, _ := page.Find("html").Attr("lang")
		assert.Equal(t, "zh", lang)
	})
}

func TestExportHTMLBilingual(t *testing.T) {
	page := parseHTML(t, ExportHTML(exportTestDoc(), true))

	pairs := page.Find("div.pair")
	require.Equal(t, 2, pairs.Length(), "正文段落与脚注各一组")

	first := pairs.First()
	assert.Equal(t, "the original sentence", first.Find("p.source").Text())
	assert.Equal(t, "译文段落", first.Find("p.target").Text())
}

func TestExportHTMLTranslationError(t *testing.T) {
	doc := exportTestDoc()
	doc.Pages[0].Blocks[1].TranslationError = "quota exceeded"
	page := parseHTML(t, ExportHTML(doc, false))

	assert.Equal(t, "quota exceeded", page.Find(`[data-block-id="p1"]`).AttrOr("data-error", ""))

	t.Run("属性值按实体转义", func(t *testing.T) {
		doc := exportTestDoc()
		doc.Pages[0].Blocks[1].TranslationError = `limit < 1 & "quota"`
		out := ExportHTML(doc, false)

		assert.NotContains(t, string(out), `\"`, "属性里不应出现 Go 字面量反斜杠转义")
		page := parseHTML(t, out)
		assert.Equal(t, `limit < 1 & "quota"`,
			page.Find(`[data-block-id="p1"]`).AttrOr("data-error", ""), "实体解码后原样还原")
	})
}

func TestExportHTMLEscaping(t *testing.T) {
	doc := exportTestDoc()
	doc.Pages[0].Blocks[1].Translation = `<script>alert("x")</script>`
	out := string(ExportHTML(doc, false))

	assert.NotContains(t, out, "<script>alert")
	assert.Contains(t, out, "&lt;script&gt;")
}

func TestTruncateMeta(t *testing.T) {
	assert.Equal(t, "short", truncateMeta("short"))
	long := strings.Repeat("字", 100)
	assert.Equal(t, strings.Repeat("字", 80), truncateMeta(long))
}
