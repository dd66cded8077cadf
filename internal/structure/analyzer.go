package structure

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
)

// 标题编号模式：阿拉伯数字多级编号、罗马数字、字母编号
var (
	arabicNumberingRe = regexp.MustCompile(`^\s*第?\s*(\d+(?:[.\-、]\d+)*)[.\-、）)]?\s+`)
	romanNumberingRe  = regexp.MustCompile(`^\s*[IVXLC]+[.、]\s+`)
	letterNumberingRe = regexp.MustCompile(`^\s*[A-Z][.、]\s+`)
)

// page0Keywords 首页常见章节标题关键词
var page0Keywords = []string{"abstract", "introduction", "绪论", "引言", "目录"}

// AnalyzerConfig 标题层级推断阈值，字号分档为经验值
type AnalyzerConfig struct {
	FontTier1     float64 `json:"font_tier1"`
	FontTier2     float64 `json:"font_tier2"`
	FontTier3     float64 `json:"font_tier3"`
	MaxHeadingLen int     `json:"max_heading_len"`
}

// DefaultAnalyzerConfig 返回默认阈值
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		FontTier1:     16,
		FontTier2:     13,
		FontTier3:     11,
		MaxHeadingLen: 60,
	}
}

// Analyzer 文档结构分析器，推断章节树并回写块的章节标注
type Analyzer struct {
	cfg AnalyzerConfig
}

// NewAnalyzer 创建结构分析器
func NewAnalyzer(cfg AnalyzerConfig) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// GuessLevel 推断标题层级，0 表示不是章节标题。
// 优先级：首页关键词、编号前缀、字号分档、短行大写。
func (a *Analyzer) GuessLevel(text string, fontSize float64, pageIndex int) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	runes := []rune(text)
	short := len(runes) < a.cfg.MaxHeadingLen && strings.Count(text, "\n") < 2

	if pageIndex == 0 && short {
		lower := strings.ToLower(text)
		for _, kw := range page0Keywords {
			if strings.Contains(lower, kw) {
				return 1
			}
		}
	}

	// 编号前缀只对短行生效，以 "1. " 开头的正文段落不是标题
	if short {
		if m := arabicNumberingRe.FindStringSubmatch(text); m != nil {
			groups := 1 + strings.Count(m[1], ".") + strings.Count(m[1], "-") + strings.Count(m[1], "、")
			if groups > 3 {
				groups = 3
			}
			return groups
		}
		if romanNumberingRe.MatchString(text) || letterNumberingRe.MatchString(text) {
			return 1
		}
	}

	if short && fontSize > 0 {
		switch {
		case fontSize >= a.cfg.FontTier1:
			return 1
		case fontSize >= a.cfg.FontTier2:
			return 2
		case fontSize >= a.cfg.FontTier3:
			return 3
		}
	}

	if short && upperRatio(text) > 0.6 {
		return 2
	}

	return 0
}

// Analyze 构建章节树并为每个块写入 section_id/section_level。
// 块按页序和阅读序线性扫描，层级栈保证 [1,2,2,1,3] 形成正确的嵌套。
func (a *Analyzer) Analyze(doc *document.Document) []*document.SectionNode {
	blocks := doc.AllBlocks()
	if len(blocks) == 0 {
		return nil
	}

	type sectionStart struct {
		node       *document.SectionNode
		startIndex int
	}

	var roots []*document.SectionNode
	var stack []*document.SectionNode
	var flat []sectionStart

	for i, b := range blocks {
		if b.IsHeaderFooter || b.IsFootnote {
			continue
		}
		level := a.GuessLevel(b.Text, b.FontSize, b.PageIndex)
		if level > 0 && !b.Type.IsRegionType() {
			node := &document.SectionNode{
				ID:           uuid.NewString(),
				Title:        strings.TrimSpace(b.Text),
				Level:        level,
				PageIndex:    b.PageIndex,
				StartBlockID: b.ID,
			}
			// 弹出层级不低于当前的节点，当前节点挂到新的栈顶下
			for len(stack) > 0 && stack[len(stack)-1].Level >= level {
				stack = stack[:len(stack)-1]
			}
			if len(stack) == 0 {
				roots = append(roots, node)
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, node)
			}
			stack = append(stack, node)
			flat = append(flat, sectionStart{node: node, startIndex: i})
		}

		if len(stack) > 0 {
			current := stack[len(stack)-1]
			b.SectionID = current.ID
			b.SectionLevel = current.Level
		}
	}

	// 每节的结束块是下一节起始块的前一块，最后一节到文档末尾
	for i, s := range flat {
		endIndex := len(blocks) - 1
		if i+1 < len(flat) {
			endIndex = flat[i+1].startIndex - 1
		}
		if endIndex >= s.startIndex {
			s.node.EndBlockID = blocks[endIndex].ID
		}
	}

	doc.Sections = roots
	return roots
}

// upperRatio 大写字母占全部字母的比例
func upperRatio(text string) float64 {
	var upper, letters int
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}
