package layout

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
)

// footnoteMarkerRes 脚注起始标记：数字编号、方括号编号、字母编号、符号标记
var footnoteMarkerRes = []*regexp.Regexp{
	regexp.MustCompile(`^\s*\d+[).\]]\s+`),
	regexp.MustCompile(`^\s*\[\d+\]`),
	regexp.MustCompile(`^\s*[a-z][).]\s+`),
	regexp.MustCompile(`^\s*[*†‡§¶#]`),
}

// citationKeywords 引用类用语，出现即加分
var citationKeywords = []string{"see ", "ibid", "cf.", "et al", "参见", "同上"}

// EnhancementConfig 版面增强阈值
type EnhancementConfig struct {
	// HeaderBand 页顶候选带占页高比例
	HeaderBand float64 `json:"header_band"`
	// FooterBand 页底候选带起点占页高比例
	FooterBand float64 `json:"footer_band"`
	// SimilarityThreshold 页眉页脚聚类相似度阈值
	SimilarityThreshold float64 `json:"similarity_threshold"`
	// MinOccurrences 聚类存活所需最少出现次数
	MinOccurrences int `json:"min_occurrences"`
	// FootnoteScoreThreshold 判定脚注的最低得分
	FootnoteScoreThreshold float64 `json:"footnote_score_threshold"`
}

// DefaultEnhancementConfig 返回默认阈值
func DefaultEnhancementConfig() EnhancementConfig {
	return EnhancementConfig{
		HeaderBand:             0.08,
		FooterBand:             0.92,
		SimilarityThreshold:    0.7,
		MinOccurrences:         2,
		FootnoteScoreThreshold: 6,
	}
}

// Enhancer 版面增强：页眉页脚、脚注、阅读序
type Enhancer struct {
	cfg EnhancementConfig
}

// NewEnhancer 创建版面增强器
func NewEnhancer(cfg EnhancementConfig) *Enhancer {
	return &Enhancer{cfg: cfg}
}

// FlagHeaderFooterBands 把落在页顶或页底候选带内的块先标记为页眉页脚
func (e *Enhancer) FlagHeaderFooterBands(page *document.Page) {
	if page.Height <= 0 {
		return
	}
	top := page.Height * e.cfg.HeaderBand
	bottom := page.Height * e.cfg.FooterBand
	for _, b := range page.Blocks {
		if b.BBox.Y1 <= top || b.BBox.Y0 >= bottom {
			b.IsHeaderFooter = true
		}
	}
}

// DedupHeaderFooters 跨页聚类已标记的页眉页脚，出现不足 MinOccurrences 次的解除标记
func (e *Enhancer) DedupHeaderFooters(doc *document.Document) {
	var flagged []*document.Block
	for _, p := range doc.Pages {
		for _, b := range p.Blocks {
			if b.IsHeaderFooter {
				flagged = append(flagged, b)
			}
		}
	}
	if len(flagged) == 0 {
		return
	}

	type cluster struct {
		key     string
		members []*document.Block
	}
	var clusters []*cluster
	for _, b := range flagged {
		key := normalizeForSimilarity(b.Text)
		placed := false
		for _, c := range clusters {
			if textSimilarity(key, c.key) >= e.cfg.SimilarityThreshold {
				c.members = append(c.members, b)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, &cluster{key: key, members: []*document.Block{b}})
		}
	}

	for _, c := range clusters {
		if len(c.members) < e.cfg.MinOccurrences {
			for _, b := range c.members {
				b.IsHeaderFooter = false
			}
		}
	}
}

// ScoreFootnotes 脚注加权打分，得分达到阈值即标记，置信度为得分比例
func (e *Enhancer) ScoreFootnotes(page *document.Page) {
	if page.Height <= 0 {
		return
	}
	for _, b := range page.Blocks {
		if b.IsHeaderFooter {
			continue
		}
		score := footnoteScore(b, page.Height)
		if score >= e.cfg.FootnoteScoreThreshold {
			b.IsFootnote = true
			b.FootnoteConfidence = math.Min(score/14, 1)
		}
	}
}

// footnoteScore 位置、标记、尺寸、长度、字号、引用用语的加权和，满分 14
func footnoteScore(b *document.Block, pageHeight float64) float64 {
	var score float64

	// 页面底部 15% 区域
	if b.BBox.Y0 >= pageHeight*0.85 {
		score += 3
	}
	// 脚注起始标记
	for _, re := range footnoteMarkerRes {
		if re.MatchString(b.Text) {
			score += 4
			break
		}
	}
	// 块高小于页高的 2.5%
	if b.BBox.Height() < pageHeight*0.025 {
		score += 2
	}
	// 文本长度在正常脚注范围
	if n := len([]rune(b.Text)); n > 5 && n < 800 {
		score += 2
	}
	// 小字号
	if b.FontSize > 0 && b.FontSize < 10 {
		score += 1
	}
	// 引用类用语
	lower := strings.ToLower(b.Text)
	for _, kw := range citationKeywords {
		if strings.Contains(lower, kw) {
			score += 2
			break
		}
	}

	return score
}

// AssignColumns 按页宽分栏并写入每块的栏序号
func AssignColumns(page *document.Page) {
	cols := columnCount(page.Width)
	for _, b := range page.Blocks {
		if cols == 1 {
			b.Column = 0
			continue
		}
		col := int(b.BBox.CenterX() / (page.Width / float64(cols)))
		if col < 0 {
			col = 0
		}
		if col >= cols {
			col = cols - 1
		}
		b.Column = col
	}
}

// columnCount 窄页单栏，中等宽度双栏，宽页三栏
func columnCount(width float64) int {
	switch {
	case width < 400:
		return 1
	case width < 700:
		return 2
	default:
		return 3
	}
}

// AssignReadingOrder 按（栏、y0、x0）排序并写入全局阅读序，返回下一个可用序号
func AssignReadingOrder(page *document.Page, start int) int {
	AssignColumns(page)
	sort.SliceStable(page.Blocks, func(i, j int) bool {
		a, b := page.Blocks[i], page.Blocks[j]
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		if a.BBox.Y0 != b.BBox.Y0 {
			return a.BBox.Y0 < b.BBox.Y0
		}
		return a.BBox.X0 < b.BBox.X0
	})
	for _, b := range page.Blocks {
		b.ReadingOrder = start
		start++
	}
	return start
}

// normalizeForSimilarity 去掉数字和非文字字符并转小写
func normalizeForSimilarity(text string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// textSimilarity 0.6 倍字符集 Jaccard 加 0.4 倍最长公共子序列比
func textSimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	return 0.6*charJaccard(a, b) + 0.4*lcsRatio(a, b)
}

func charJaccard(a, b string) float64 {
	setA := map[rune]struct{}{}
	for _, r := range a {
		setA[r] = struct{}{}
	}
	setB := map[rune]struct{}{}
	for _, r := range b {
		setB[r] = struct{}{}
	}
	inter := 0
	for r := range setA {
		if _, ok := setB[r]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func lcsRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longer := len(ra)
	if len(rb) > longer {
		longer = len(rb)
	}
	if longer == 0 {
		return 0
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return float64(prev[len(rb)]) / float64(longer)
}
