package layout

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
)

// captionRe 说明文字前缀，图表编号类开头
var captionRe = regexp.MustCompile(`(?i)^\s*(figure|fig\.?|table|tab\.?|chart|equation|eq\.?|图|表|公式)\s*\.?\s*\d*`)

// cjkFontHints 字体名中常见的 CJK 字体标识
var cjkFontHints = []string{"song", "hei", "kai", "fang", "ming", "gothic", "cjk", "sim", "noto sans cjk", "pingfang"}

// Features 单块版面特征，分文本、字体、位置、几何、内容、上下文六组
type Features struct {
	// 文本特征
	TextLength  float64
	TextDensity float64
	LineCount   float64
	WordCount   float64

	// 字体特征
	FontSize          float64
	FontSizeRatioAvg  float64
	FontSizeRatioMed  float64
	FontSizeHierarchy float64
	IsBold            float64
	IsItalic          float64
	IsMathFont        float64
	IsCJKFont         float64

	// 位置特征
	CenterXNorm float64
	CenterYNorm float64
	RelWidth    float64
	RelHeight   float64
	RelArea     float64
	AspectRatio float64
	RegionRow   float64
	RegionCol   float64

	// 几何特征
	AlignmentScore     float64
	SpacingConsistency float64
	SameColumnRatio    float64

	// 内容特征
	HasNumbers        float64
	HasMathSymbols    float64
	MathSymbolDensity float64
	HasLaTeX          float64
	NonAlnumRatio     float64
	StartsWithCaption float64
	IsShortLine       float64

	// 上下文特征
	NearbyBlockCount float64
	AboveBlockType   float64
	BelowBlockType   float64
}

// Vector 按固定顺序展开为特征向量，分类器训练与预测共用
func (f Features) Vector() []float64 {
	return []float64{
		f.TextLength, f.TextDensity, f.LineCount, f.WordCount,
		f.FontSize, f.FontSizeRatioAvg, f.FontSizeRatioMed, f.FontSizeHierarchy,
		f.IsBold, f.IsItalic, f.IsMathFont, f.IsCJKFont,
		f.CenterXNorm, f.CenterYNorm, f.RelWidth, f.RelHeight, f.RelArea, f.AspectRatio,
		f.RegionRow, f.RegionCol,
		f.AlignmentScore, f.SpacingConsistency, f.SameColumnRatio,
		f.HasNumbers, f.HasMathSymbols, f.MathSymbolDensity, f.HasLaTeX, f.NonAlnumRatio,
		f.StartsWithCaption, f.IsShortLine,
		f.NearbyBlockCount, f.AboveBlockType, f.BelowBlockType,
	}
}

// FeatureDim 特征向量维度
const FeatureDim = 33

// IsCaptionText 文本是否以图表说明前缀开头
func IsCaptionText(text string) bool {
	return captionRe.MatchString(text)
}

// blockTypeCode 块类型的数值编码，上下文特征使用
func blockTypeCode(t document.BlockType) float64 {
	switch t {
	case document.BlockTypeParagraph:
		return 1
	case document.BlockTypeHeading:
		return 2
	case document.BlockTypeCaption:
		return 3
	case document.BlockTypeFigure:
		return 4
	case document.BlockTypeTable:
		return 5
	case document.BlockTypeFormula:
		return 6
	}
	return 0
}

// Extractor 版面特征提取器
type Extractor struct {
	detector *FormulaDetector
}

// NewExtractor 创建特征提取器
func NewExtractor(detector *FormulaDetector) *Extractor {
	return &Extractor{detector: detector}
}

// Extract 提取单块特征，page 提供页面尺寸和同页块做统计基线。
// 所有比值的分母下限为 1，避免退化盒导致除零。
func (e *Extractor) Extract(block *document.Block, page *document.Page) Features {
	var f Features

	pageW := math.Max(page.Width, 1)
	pageH := math.Max(page.Height, 1)
	text := block.Text
	runes := []rune(text)

	// 文本特征
	f.TextLength = float64(len(runes))
	area := math.Max(block.BBox.Area(), 1)
	f.TextDensity = f.TextLength / area
	f.LineCount = float64(strings.Count(text, "\n") + 1)
	f.WordCount = float64(len(strings.Fields(text)))

	// 字体特征
	sizes := pageFontSizes(page)
	f.FontSize = block.FontSize
	f.FontSizeRatioAvg = block.FontSize / math.Max(mean(sizes), 1)
	f.FontSizeRatioMed = block.FontSize / math.Max(median(sizes), 1)
	f.FontSizeHierarchy = fontSizeHierarchy(block.FontSize, sizes)
	f.IsBold = boolFeature(block.Bold)
	f.IsItalic = boolFeature(block.Italic)
	f.IsMathFont = boolFeature(e.detector.IsMathFont(block.FontName))
	f.IsCJKFont = boolFeature(isCJKFont(block.FontName) || hasCJKChars(text))

	// 位置特征
	f.CenterXNorm = block.BBox.CenterX() / pageW
	f.CenterYNorm = block.BBox.CenterY() / pageH
	f.RelWidth = block.BBox.Width() / pageW
	f.RelHeight = block.BBox.Height() / pageH
	f.RelArea = block.BBox.Area() / (pageW * pageH)
	f.AspectRatio = block.BBox.Width() / math.Max(block.BBox.Height(), 1)
	f.RegionRow = float64(regionBucket(block.BBox.CenterY(), pageH))
	f.RegionCol = float64(regionBucket(block.BBox.CenterX(), pageW))

	// 几何特征
	f.AlignmentScore = alignmentScore(block, page.Blocks)
	f.SpacingConsistency = spacingConsistency(block, page.Blocks)
	f.SameColumnRatio = sameColumnRatio(block, page.Blocks)

	// 内容特征
	f.HasNumbers = boolFeature(strings.ContainsFunc(text, unicode.IsDigit))
	count, total := countMathChars(text)
	f.HasMathSymbols = boolFeature(count > 0)
	if total > 0 {
		f.MathSymbolDensity = float64(count) / float64(total)
	}
	f.HasLaTeX = boolFeature(hasLaTeXMarkers(text))
	f.NonAlnumRatio = nonAlnumRatio(text)
	f.StartsWithCaption = boolFeature(captionRe.MatchString(text))
	f.IsShortLine = boolFeature(f.LineCount <= 2 && f.TextLength < 60)

	// 上下文特征
	f.NearbyBlockCount = float64(nearbyCount(block, page.Blocks, 100))
	above, below := verticalNeighbors(block, page.Blocks)
	if above != nil {
		f.AboveBlockType = blockTypeCode(above.Type)
	}
	if below != nil {
		f.BelowBlockType = blockTypeCode(below.Type)
	}

	return f
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// regionBucket 把坐标映射到页面三等分的 0/1/2 档
func regionBucket(v, total float64) int {
	bucket := int(v / math.Max(total, 1) * 3)
	if bucket < 0 {
		bucket = 0
	}
	if bucket > 2 {
		bucket = 2
	}
	return bucket
}

func pageFontSizes(page *document.Page) []float64 {
	var sizes []float64
	for _, b := range page.Blocks {
		if b.FontSize > 0 {
			sizes = append(sizes, b.FontSize)
		}
	}
	return sizes
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// fontSizeHierarchy 字号在页面去重字号中的排名，最大字号为 1，最小为 0
func fontSizeHierarchy(size float64, sizes []float64) float64 {
	if size <= 0 || len(sizes) == 0 {
		return 0
	}
	distinct := map[float64]struct{}{}
	for _, s := range sizes {
		distinct[s] = struct{}{}
	}
	sorted := make([]float64, 0, len(distinct))
	for s := range distinct {
		sorted = append(sorted, s)
	}
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return 1
	}
	rank := 0
	for i, s := range sorted {
		if size >= s {
			rank = i
		}
	}
	return float64(rank) / float64(len(sorted)-1)
}

// alignmentScore 与同页其他块左边界对齐的比例，容差 5pt
func alignmentScore(block *document.Block, blocks []*document.Block) float64 {
	var aligned, others int
	for _, b := range blocks {
		if b == block {
			continue
		}
		others++
		if math.Abs(b.BBox.X0-block.BBox.X0) <= 5 {
			aligned++
		}
	}
	if others == 0 {
		return 0
	}
	return float64(aligned) / float64(others)
}

// spacingConsistency 上下相邻块的间距一致性，差值越小越接近 1
func spacingConsistency(block *document.Block, blocks []*document.Block) float64 {
	above, below := verticalNeighbors(block, blocks)
	if above == nil || below == nil {
		return 0
	}
	gapAbove := block.BBox.Y0 - above.BBox.Y1
	gapBelow := below.BBox.Y0 - block.BBox.Y1
	diff := math.Abs(gapAbove - gapBelow)
	return 1 / (1 + diff/10)
}

// sameColumnRatio 同页中与本块水平重叠超过 10pt 的块占比
func sameColumnRatio(block *document.Block, blocks []*document.Block) float64 {
	var same, others int
	for _, b := range blocks {
		if b == block {
			continue
		}
		others++
		if block.BBox.HorizontalOverlap(b.BBox) > 10 {
			same++
		}
	}
	if others == 0 {
		return 0
	}
	return float64(same) / float64(others)
}

// nearbyCount 中心距离在 radius 内的同页块数
func nearbyCount(block *document.Block, blocks []*document.Block, radius float64) int {
	cx, cy := block.BBox.CenterX(), block.BBox.CenterY()
	count := 0
	for _, b := range blocks {
		if b == block {
			continue
		}
		dx := b.BBox.CenterX() - cx
		dy := b.BBox.CenterY() - cy
		if math.Hypot(dx, dy) < radius {
			count++
		}
	}
	return count
}

// verticalNeighbors 同列中紧邻的上下块，以水平重叠超过 10pt 判定同列
func verticalNeighbors(block *document.Block, blocks []*document.Block) (above, below *document.Block) {
	for _, b := range blocks {
		if b == block || block.BBox.HorizontalOverlap(b.BBox) <= 10 {
			continue
		}
		if b.BBox.Y1 <= block.BBox.Y0 {
			if above == nil || b.BBox.Y1 > above.BBox.Y1 {
				above = b
			}
		} else if b.BBox.Y0 >= block.BBox.Y1 {
			if below == nil || b.BBox.Y0 < below.BBox.Y0 {
				below = b
			}
		}
	}
	return above, below
}

func isCJKFont(fontName string) bool {
	lower := strings.ToLower(fontName)
	for _, hint := range cjkFontHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

func hasCJKChars(text string) bool {
	for _, r := range text {
		if unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) ||
			unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r) {
			return true
		}
	}
	return false
}
