package translator

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/translation"
)

var (
	// 连续大写开头的多词术语，如 "Neural Network"
	capitalizedTermRe = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)+\b`)
	// 全大写缩写词，如 "LSTM"、"PDF/A"
	acronymRe = regexp.MustCompile(`\b[A-Z]{2,}(?:/[A-Z0-9]+)?\b`)
	// 带连字符的技术复合词，如 "state-of-the-art"
	hyphenatedTermRe = regexp.MustCompile(`\b[a-zA-Z]+(?:-[a-zA-Z]+){1,3}\b`)
)

// termStopwords 常见非术语词，统一小写匹配
var termStopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "this": {}, "that": {},
	"from": {}, "are": {}, "was": {}, "were": {}, "been": {}, "have": {},
	"has": {}, "can": {}, "not": {}, "but": {}, "all": {}, "its": {},
	"our": {}, "their": {}, "these": {}, "those": {}, "which": {},
	"table": {}, "figure": {}, "section": {}, "equation": {},
	"abstract": {}, "introduction": {}, "conclusion": {}, "references": {},
}

// TermConfig 术语一致性配置
type TermConfig struct {
	// MinFrequency 候选术语的最小出现次数
	MinFrequency int `mapstructure:"min_frequency" json:"min_frequency" yaml:"min_frequency"`
	// MaxTerms 最多处理的术语数
	MaxTerms int `mapstructure:"max_terms" json:"max_terms" yaml:"max_terms"`
	// SimilarityThreshold 嵌入相似度低于该值时退回频率投票
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" json:"similarity_threshold" yaml:"similarity_threshold"`
}

// DefaultTermConfig 默认术语一致性配置
func DefaultTermConfig() TermConfig {
	return TermConfig{MinFrequency: 2, MaxTerms: 50, SimilarityThreshold: 0.3}
}

// Term 一个提取出的术语及其统一译法
type Term struct {
	Source      string
	Frequency   int
	Translation string
}

// TermUnifier 提取高频术语并在译文中统一其译法
type TermUnifier struct {
	config   TermConfig
	embedder translation.Embedder
	logger   *zap.Logger
}

// NewTermUnifier 创建术语统一器，embedder 可为 nil
func NewTermUnifier(cfg TermConfig, embedder translation.Embedder, logger *zap.Logger) *TermUnifier {
	if cfg.MinFrequency < 1 {
		cfg.MinFrequency = 2
	}
	if cfg.MaxTerms <= 0 {
		cfg.MaxTerms = 50
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TermUnifier{config: cfg, embedder: embedder, logger: logger}
}

// ExtractTerms 从可译文本块中提取高频术语候选，按频率降序
func (u *TermUnifier) ExtractTerms(doc *document.Document) []Term {
	freq := make(map[string]int)
	for _, b := range doc.AllBlocks() {
		if !b.IsTranslatable() {
			continue
		}
		for _, re := range []*regexp.Regexp{capitalizedTermRe, acronymRe, hyphenatedTermRe} {
			for _, m := range re.FindAllString(b.Text, -1) {
				if isTermStopword(m) {
					continue
				}
				freq[m]++
			}
		}
	}

	terms := make([]Term, 0, len(freq))
	for s, n := range freq {
		if n >= u.config.MinFrequency {
			terms = append(terms, Term{Source: s, Frequency: n})
		}
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Frequency != terms[j].Frequency {
			return terms[i].Frequency > terms[j].Frequency
		}
		return terms[i].Source < terms[j].Source
	})
	if len(terms) > u.config.MaxTerms {
		terms = terms[:u.config.MaxTerms]
	}
	return terms
}

// ResolveTranslations 为每个术语确定统一译法：嵌入相似度选代表，
// 退回频率投票，再退回术语原文
func (u *TermUnifier) ResolveTranslations(ctx context.Context, terms []Term, variants map[string][]string) []Term {
	resolved := make([]Term, 0, len(terms))
	for _, t := range terms {
		cands := dedupeNonEmpty(variants[t.Source])
		switch {
		case len(cands) == 0:
			t.Translation = t.Source
		case len(cands) == 1:
			t.Translation = cands[0]
		default:
			t.Translation = u.pickCanonical(ctx, t.Source, cands, variants[t.Source])
		}
		resolved = append(resolved, t)
	}
	return resolved
}

// pickCanonical 多个候选译法中选出代表
func (u *TermUnifier) pickCanonical(ctx context.Context, source string, cands []string, all []string) string {
	if u.embedder != nil {
		if best, ok := u.pickByEmbedding(ctx, cands); ok {
			return best
		}
	}
	// 频率投票，同频按出现顺序
	counts := make(map[string]int)
	for _, v := range all {
		if strings.TrimSpace(v) != "" {
			counts[v]++
		}
	}
	best, bestN := "", 0
	for _, c := range cands {
		if counts[c] > bestN {
			best, bestN = c, counts[c]
		}
	}
	if best != "" {
		return best
	}
	return source
}

// pickByEmbedding 选与其余候选平均余弦相似度最高者，低于阈值则放弃
func (u *TermUnifier) pickByEmbedding(ctx context.Context, cands []string) (string, bool) {
	vecs, err := u.embedder.Embed(ctx, cands)
	if err != nil || len(vecs) != len(cands) {
		u.logger.Warn("embedding failed, falling back to frequency vote", zap.Error(err))
		return "", false
	}
	bestIdx, bestScore := -1, -1.0
	for i := range cands {
		var sum float64
		for j := range cands {
			if i == j {
				continue
			}
			sum += cosineSimilarity(vecs[i], vecs[j])
		}
		avg := sum / float64(len(cands)-1)
		if avg > bestScore {
			bestIdx, bestScore = i, avg
		}
	}
	if bestIdx < 0 || bestScore < u.config.SimilarityThreshold {
		return "", false
	}
	return cands[bestIdx], true
}

// UnifyTerms 将块译文中术语的各种译法替换为统一译法，
// 仅在 ASCII 词边界处替换，大小写不敏感
func (u *TermUnifier) UnifyTerms(doc *document.Document, terms []Term, variants map[string][]string) int {
	changed := 0
	for _, t := range terms {
		if t.Translation == "" {
			continue
		}
		for _, variant := range dedupeNonEmpty(variants[t.Source]) {
			if variant == t.Translation {
				continue
			}
			re, err := wordBoundaryPattern(variant)
			if err != nil {
				continue
			}
			for _, b := range doc.AllBlocks() {
				if b.Translation == "" {
					continue
				}
				out := re.ReplaceAllString(b.Translation, t.Translation)
				if out != b.Translation {
					b.Translation = out
					b.TermUnified = true
					changed++
				}
			}
		}
	}
	if changed > 0 {
		u.logger.Info("term usage unified",
			zap.Int("terms", len(terms)), zap.Int("blocksChanged", changed))
	}
	return changed
}

// wordBoundaryPattern ASCII 词才加 \b，CJK 文本无词边界概念
func wordBoundaryPattern(s string) (*regexp.Regexp, error) {
	quoted := regexp.QuoteMeta(s)
	if isASCIIWord(s) {
		return regexp.Compile(`(?i)\b` + quoted + `\b`)
	}
	return regexp.Compile(quoted)
}

func isASCIIWord(s string) bool {
	for _, r := range s {
		if r > 127 {
			return false
		}
	}
	return len(s) > 0
}

func isTermStopword(s string) bool {
	_, ok := termStopwords[strings.ToLower(s)]
	return ok
}

func dedupeNonEmpty(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
