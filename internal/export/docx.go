package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
)

const docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>
</Types>`

const docxRootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const docxDocumentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>
</Relationships>`

const docxStyles = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:rPr><w:b/><w:sz w:val="32"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="Heading2"><w:name w:val="heading 2"/><w:rPr><w:b/><w:sz w:val="28"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="Heading3"><w:name w:val="heading 3"/><w:rPr><w:b/><w:sz w:val="26"/></w:rPr></w:style>
</w:styles>`

// ExportDOCX 生成最小可用的 OOXML 文档压缩包
func ExportDOCX(doc *document.Document, bilingual bool) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	entries := map[string]string{
		"[Content_Types].xml":          docxContentTypes,
		"_rels/.rels":                  docxRootRels,
		"word/_rels/document.xml.rels": docxDocumentRels,
		"word/styles.xml":              docxStyles,
		"word/document.xml":            buildDocumentXML(doc, bilingual),
	}
	for _, name := range []string{"[Content_Types].xml", "_rels/.rels", "word/_rels/document.xml.rels", "word/styles.xml", "word/document.xml"} {
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("创建压缩条目 %s 失败: %w", name, err)
		}
		if _, err := w.Write([]byte(entries[name])); err != nil {
			return nil, fmt.Errorf("写入压缩条目 %s 失败: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("关闭压缩包失败: %w", err)
	}
	return buf.Bytes(), nil
}

// buildDocumentXML 文档主体，标题级别压到 1-3
func buildDocumentXML(doc *document.Document, bilingual bool) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	sb.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + "\n")

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
				if level > 3 {
					level = 3
				}
				sb.WriteString(headingParagraph(blockOutput(b), level))
			case document.BlockTypeFormula:
				sb.WriteString(runParagraph(b.Text, runMonospace))
			case document.BlockTypeFigure:
				figureCount++
				sb.WriteString(runParagraph(fmt.Sprintf("[Figure %d]", figureCount), runBold))
			case document.BlockTypeTable:
				tableCount++
				sb.WriteString(runParagraph(fmt.Sprintf("[Table %d]", tableCount), runBold))
			case document.BlockTypeCaption:
				sb.WriteString(runParagraph(blockOutput(b), runItalic))
			default:
				if bilingual && b.Translation != "" && b.Text != "" {
					sb.WriteString(runParagraph(flattenLines(b.Text), runItalic))
				}
				sb.WriteString(runParagraph(blockOutput(b), runPlain))
			}
		}
	}

	sb.WriteString(`</w:body></w:document>` + "\n")
	return sb.String()
}

type runStyle int

const (
	runPlain runStyle = iota
	runBold
	runItalic
	runMonospace
)

func headingParagraph(text string, level int) string {
	return fmt.Sprintf(
		`<w:p><w:pPr><w:pStyle w:val="Heading%d"/></w:pPr><w:r><w:t xml:space="preserve">%s</w:t></w:r></w:p>`+"\n",
		level, xmlEscape(text))
}

func runParagraph(text string, style runStyle) string {
	var props string
	switch style {
	case runBold:
		props = `<w:rPr><w:b/></w:rPr>`
	case runItalic:
		props = `<w:rPr><w:i/></w:rPr>`
	case runMonospace:
		props = `<w:rPr><w:rFonts w:ascii="Courier New" w:hAnsi="Courier New"/></w:rPr>`
	}
	return fmt.Sprintf(
		`<w:p><w:r>%s<w:t xml:space="preserve">%s</w:t></w:r></w:p>`+"\n",
		props, xmlEscape(text))
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
