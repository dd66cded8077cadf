package document

import (
	"strings"
	"time"
)

// BlockType 块类型
type BlockType string

const (
	BlockTypeParagraph BlockType = "paragraph"
	BlockTypeHeading   BlockType = "heading"
	BlockTypeCaption   BlockType = "caption"
	BlockTypeFigure    BlockType = "figure"
	BlockTypeTable     BlockType = "table"
	BlockTypeFormula   BlockType = "formula"
	BlockTypeUnknown   BlockType = "unknown"
)

// IsRegionType 是否为区域级类型（整块跳过翻译、整块覆盖导出）
func (t BlockType) IsRegionType() bool {
	switch t {
	case BlockTypeFigure, BlockTypeTable, BlockTypeFormula, BlockTypeUnknown:
		return true
	}
	return false
}

// BBox 页面坐标系下的包围盒，原点在左上角，y 向下增长，单位 pt
type BBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Width 盒宽
func (b BBox) Width() float64 { return b.X1 - b.X0 }

// Height 盒高
func (b BBox) Height() float64 { return b.Y1 - b.Y0 }

// Area 面积，退化盒为 0
func (b BBox) Area() float64 {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// CenterX 水平中心
func (b BBox) CenterX() float64 { return (b.X0 + b.X1) / 2 }

// CenterY 垂直中心
func (b BBox) CenterY() float64 { return (b.Y0 + b.Y1) / 2 }

// Intersects 是否与另一个盒相交
func (b BBox) Intersects(o BBox) bool {
	return b.X0 < o.X1 && o.X0 < b.X1 && b.Y0 < o.Y1 && o.Y0 < b.Y1
}

// Intersection 相交区域，不相交时返回零盒
func (b BBox) Intersection(o BBox) BBox {
	r := BBox{
		X0: max(b.X0, o.X0),
		Y0: max(b.Y0, o.Y0),
		X1: min(b.X1, o.X1),
		Y1: min(b.Y1, o.Y1),
	}
	if r.X0 >= r.X1 || r.Y0 >= r.Y1 {
		return BBox{}
	}
	return r
}

// Union 合并两个盒
func (b BBox) Union(o BBox) BBox {
	return BBox{
		X0: min(b.X0, o.X0),
		Y0: min(b.Y0, o.Y0),
		X1: max(b.X1, o.X1),
		Y1: max(b.Y1, o.Y1),
	}
}

// HorizontalOverlap 水平方向重叠长度
func (b BBox) HorizontalOverlap(o BBox) float64 {
	return min(b.X1, o.X1) - max(b.X0, o.X0)
}

// Block 版面块，结构化解析的最小单元
type Block struct {
	ID        string    `json:"id"`
	PageIndex int       `json:"page_index"`
	Text      string    `json:"text"`
	BBox      BBox      `json:"bbox"`
	Type      BlockType `json:"type"`
	// Confidence 分类置信度，[0,1]
	Confidence float64 `json:"confidence"`

	FontName string  `json:"font_name,omitempty"`
	FontSize float64 `json:"font_size,omitempty"`
	Bold     bool    `json:"bold,omitempty"`
	Italic   bool    `json:"italic,omitempty"`

	IsFormula         bool    `json:"is_formula,omitempty"`
	FormulaConfidence float64 `json:"formula_confidence,omitempty"`

	IsHeaderFooter     bool    `json:"is_header_footer,omitempty"`
	IsFootnote         bool    `json:"is_footnote,omitempty"`
	FootnoteConfidence float64 `json:"footnote_confidence,omitempty"`

	// Column 所在栏序号，从 0 起
	Column int `json:"column"`
	// ReadingOrder 全文档单调递增的阅读序
	ReadingOrder int `json:"reading_order"`

	SectionID    string `json:"section_id,omitempty"`
	SectionLevel int    `json:"section_level,omitempty"`

	Translation      string `json:"translation,omitempty"`
	TranslationError string `json:"translation_error,omitempty"`
	TermUnified      bool   `json:"term_unified,omitempty"`
}

// IsTranslatable 是否进入翻译批次。脚注照常翻译，只是调度优先级最低
func (b *Block) IsTranslatable() bool {
	if b.IsHeaderFooter {
		return false
	}
	if b.Type.IsRegionType() {
		return false
	}
	return strings.TrimSpace(b.Text) != ""
}

// Region 区域检测结果，融合前的中间产物
type Region struct {
	PageIndex  int       `json:"page_index"`
	Type       BlockType `json:"type"`
	BBox       BBox      `json:"bbox"`
	Confidence float64   `json:"confidence"`
	// Source 检测来源，"classifier" 或 "heuristic"
	Source string `json:"source"`
}

// SectionNode 章节树节点
type SectionNode struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Level        int            `json:"level"`
	PageIndex    int            `json:"page_index"`
	StartBlockID string         `json:"start_block_id"`
	EndBlockID   string         `json:"end_block_id,omitempty"`
	Children     []*SectionNode `json:"children,omitempty"`
}

// Walk 先序遍历章节树
func (n *SectionNode) Walk(fn func(*SectionNode)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Page 单页
type Page struct {
	Index  int      `json:"index"`
	Width  float64  `json:"width"`
	Height float64  `json:"height"`
	Blocks []*Block `json:"blocks"`
	// Regions 检测到的区域，融合后保留作审计
	Regions []Region `json:"regions,omitempty"`
}

// Metadata 文档元数据
type Metadata struct {
	Title     string    `json:"title,omitempty"`
	Author    string    `json:"author,omitempty"`
	PageCount int       `json:"page_count"`
	ParsedAt  time.Time `json:"parsed_at"`
}

// Document 结构化解析后的文档
type Document struct {
	ID         string         `json:"id"`
	SourcePath string         `json:"source_path"`
	SourceLang string         `json:"source_lang"`
	TargetLang string         `json:"target_lang"`
	Metadata   Metadata       `json:"metadata"`
	Pages      []*Page        `json:"pages"`
	Sections   []*SectionNode `json:"sections,omitempty"`
}

// AllBlocks 按页序、阅读序展开全部块
func (d *Document) AllBlocks() []*Block {
	var out []*Block
	for _, p := range d.Pages {
		out = append(out, p.Blocks...)
	}
	return out
}

// Page 按页号取页，越界返回 nil
func (d *Document) Page(index int) *Page {
	if index < 0 || index >= len(d.Pages) {
		return nil
	}
	return d.Pages[index]
}

