package layout

import (
	"math"
	"sort"
	"strings"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
)

// RuleConfig 规则引擎阈值
type RuleConfig struct {
	// MinConfidence 低于此置信度的预测直接丢弃
	MinConfidence float64 `json:"min_confidence"`
	// MergeDistance 同类相邻块合并的中心距上限，pt
	MergeDistance float64 `json:"merge_distance"`
	// MinRegionArea 区域最小面积，pt²
	MinRegionArea float64 `json:"min_region_area"`
}

// DefaultRuleConfig 返回默认阈值
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		MinConfidence: 0.4,
		MergeDistance: 20,
		MinRegionArea: 100,
	}
}

// RefinedRegion 规则引擎输出的区域，保留成员块便于审计
type RefinedRegion struct {
	Type       document.BlockType
	BBox       document.BBox
	Confidence float64
	Blocks     []*document.Block
}

// regionClasses 只有公式、图、表三类预测聚成区域，
// 正文类（段落、标题、说明）保持块级类型，不参与区域融合
var regionClasses = []document.BlockType{
	document.BlockTypeFormula,
	document.BlockTypeFigure,
	document.BlockTypeTable,
}

// RefineRegions 对分类结果做后处理：过滤低置信、同类邻近合并、内容校验、面积过滤
func RefineRegions(blocks []*document.Block, preds []Prediction, cfg RuleConfig) []RefinedRegion {
	if len(blocks) != len(preds) {
		return nil
	}

	type entry struct {
		block *document.Block
		pred  Prediction
	}
	groups := make(map[document.BlockType][]entry)
	for i, b := range blocks {
		if preds[i].Confidence < cfg.MinConfidence {
			continue
		}
		groups[preds[i].Type] = append(groups[preds[i].Type], entry{b, preds[i]})
	}

	var regions []RefinedRegion
	for _, cls := range regionClasses {
		entries := groups[cls]
		if len(entries) == 0 {
			continue
		}
		sort.SliceStable(entries, func(i, j int) bool {
			if entries[i].block.BBox.Y0 != entries[j].block.BBox.Y0 {
				return entries[i].block.BBox.Y0 < entries[j].block.BBox.Y0
			}
			return entries[i].block.BBox.X0 < entries[j].block.BBox.X0
		})

		var open *RefinedRegion
		var confSum float64
		flush := func() {
			if open == nil {
				return
			}
			open.Confidence = confSum / float64(len(open.Blocks))
			if validateRegion(*open) && open.BBox.Area() >= cfg.MinRegionArea {
				regions = append(regions, *open)
			}
			open = nil
			confSum = 0
		}

		for _, e := range entries {
			if open != nil && canMerge(open.BBox, e.block.BBox, cfg.MergeDistance) {
				open.BBox = open.BBox.Union(e.block.BBox)
				open.Blocks = append(open.Blocks, e.block)
				confSum += e.pred.Confidence
				continue
			}
			flush()
			open = &RefinedRegion{
				Type:   cls,
				BBox:   e.block.BBox,
				Blocks: []*document.Block{e.block},
			}
			confSum = e.pred.Confidence
		}
		flush()
	}

	return regions
}

// canMerge 包围盒相交或中心距小于阈值
func canMerge(a, b document.BBox, mergeDistance float64) bool {
	if a.Intersects(b) {
		return true
	}
	dx := a.CenterX() - b.CenterX()
	dy := a.CenterY() - b.CenterY()
	return math.Hypot(dx, dy) < mergeDistance
}

// validateRegion 内容一致性校验：公式区域需含数学符号，表格区域需含分隔符或数字
func validateRegion(r RefinedRegion) bool {
	switch r.Type {
	case document.BlockTypeFormula:
		text := regionText(r)
		if len([]rune(text)) <= 5 {
			return true
		}
		return HasMathSymbols(text)
	case document.BlockTypeTable:
		text := regionText(r)
		if strings.ContainsAny(text, ",\t") {
			return true
		}
		return numericTokenCount(text) >= 3
	}
	return true
}

func regionText(r RefinedRegion) string {
	parts := make([]string, 0, len(r.Blocks))
	for _, b := range r.Blocks {
		parts = append(parts, b.Text)
	}
	return strings.Join(parts, "\n")
}

func numericTokenCount(text string) int {
	count := 0
	for _, tok := range strings.Fields(text) {
		trimmed := strings.Trim(tok, ".,;:%()[]")
		if trimmed == "" {
			continue
		}
		numeric := true
		for _, r := range trimmed {
			if (r < '0' || r > '9') && r != '.' && r != '-' {
				numeric = false
				break
			}
		}
		if numeric {
			count++
		}
	}
	return count
}
