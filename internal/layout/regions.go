package layout

import (
	"regexp"
	"strings"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
)

// tableCaptionRe 表格类说明前缀，区别于图类
var tableCaptionRe = regexp.MustCompile(`(?i)^\s*(table|tab\.?|表)`)

// typePriority 区域融合优先级，公式和图表覆盖说明文字，说明文字覆盖正文
var typePriority = map[document.BlockType]int{
	document.BlockTypeHeading:   1,
	document.BlockTypeParagraph: 1,
	document.BlockTypeCaption:   2,
	document.BlockTypeFormula:   3,
	document.BlockTypeFigure:    3,
	document.BlockTypeTable:     3,
}

// RegionDetector 版面区域检测，特征分类路径加启发式回退
type RegionDetector struct {
	extractor  *Extractor
	classifier *Classifier
	detector   *FormulaDetector
	ruleCfg    RuleConfig
	// useFeatures 为假时只走启发式路径
	useFeatures bool
}

// NewRegionDetector 创建区域检测器
func NewRegionDetector(extractor *Extractor, classifier *Classifier, detector *FormulaDetector, ruleCfg RuleConfig, useFeatures bool) *RegionDetector {
	return &RegionDetector{
		extractor:   extractor,
		classifier:  classifier,
		detector:    detector,
		ruleCfg:     ruleCfg,
		useFeatures: useFeatures,
	}
}

// DetectPage 检测单页区域
func (d *RegionDetector) DetectPage(page *document.Page) []document.Region {
	if d.useFeatures {
		return d.featureRegions(page)
	}
	return d.heuristicRegions(page)
}

// featureRegions 特征提取、分类、规则精炼的完整路径
func (d *RegionDetector) featureRegions(page *document.Page) []document.Region {
	if len(page.Blocks) == 0 {
		return nil
	}
	features := make([]Features, len(page.Blocks))
	for i, b := range page.Blocks {
		features[i] = d.extractor.Extract(b, page)
	}
	preds := d.classifier.Predict(features)
	refined := RefineRegions(page.Blocks, preds, d.ruleCfg)

	regions := make([]document.Region, 0, len(refined))
	for _, r := range refined {
		regions = append(regions, document.Region{
			PageIndex:  page.Index,
			Type:       r.Type,
			BBox:       r.BBox,
			Confidence: r.Confidence,
			Source:     "classifier",
		})
	}
	return regions
}

// heuristicRegions 纯启发式：数学字体定公式，说明文字锚定其上方的图表
func (d *RegionDetector) heuristicRegions(page *document.Page) []document.Region {
	var regions []document.Region

	for _, b := range page.Blocks {
		if d.detector.IsMathFont(b.FontName) && MathSymbolDensity(b.Text) > 0.1 {
			regions = append(regions, document.Region{
				PageIndex:  page.Index,
				Type:       document.BlockTypeFormula,
				BBox:       b.BBox,
				Confidence: 0.7,
				Source:     "heuristic",
			})
		}
	}

	for i, b := range page.Blocks {
		if !captionRe.MatchString(b.Text) {
			continue
		}
		kind := document.BlockTypeFigure
		if tableCaptionRe.MatchString(b.Text) {
			kind = document.BlockTypeTable
		}
		if r, ok := captionAnchoredRegion(page, i, kind); ok {
			regions = append(regions, r)
		}
	}

	return regions
}

// captionAnchoredRegion 取说明文字上方最多三个块的包围盒并集作为图表区域
func captionAnchoredRegion(page *document.Page, captionIdx int, kind document.BlockType) (document.Region, bool) {
	caption := page.Blocks[captionIdx]
	var union document.BBox
	found := 0
	for i := captionIdx - 1; i >= 0 && found < 3; i-- {
		b := page.Blocks[i]
		if b.BBox.Y1 > caption.BBox.Y0+2 {
			continue
		}
		if strings.TrimSpace(b.Text) != "" && captionRe.MatchString(b.Text) {
			// 碰到另一个说明文字就停，避免吞并上一个图表的说明
			break
		}
		if found == 0 {
			union = b.BBox
		} else {
			union = union.Union(b.BBox)
		}
		found++
	}
	if found == 0 {
		return document.Region{}, false
	}
	return document.Region{
		PageIndex:  page.Index,
		Type:       kind,
		BBox:       union,
		Confidence: 0.55,
		Source:     "heuristic",
	}, true
}

// ApplyRegions 区域融合：块与更高优先级区域相交时提升为区域类型
func ApplyRegions(page *document.Page, regions []document.Region) {
	for _, b := range page.Blocks {
		bestPri := typePriority[b.Type]
		for _, r := range regions {
			pri := typePriority[r.Type]
			if pri > bestPri && r.BBox.Intersects(b.BBox) {
				b.Type = r.Type
				b.Confidence = r.Confidence
				bestPri = pri
			}
		}
	}
}
