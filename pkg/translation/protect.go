package translation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dlclark/regexp2"
)

// 数学公式匹配模式，行间公式优先于行内公式
var (
	displayMathRe = regexp.MustCompile(`(?s)\$\$.+?\$\$`)
	parenMathRe   = regexp.MustCompile(`(?s)\\\(.+?\\\)`)
	bracketMathRe = regexp.MustCompile(`(?s)\\\[.+?\\\]`)
	// 单美元行内公式需要环视排除 $$ 的边界
	inlineMathRe = regexp2.MustCompile(`(?s)(?<!\$)\$(?!\$).+?(?<!\$)\$(?!\$)`, regexp2.None)
)

type mathSpan struct {
	start int
	end   int
}

// ProtectMath 把文本中的数学公式替换为 {vN} 占位符，返回保护后文本和占位符映射。
// 占位符按出现顺序从 {v1} 起编号，嵌套或重叠时外层公式胜出。
func ProtectMath(text string) (string, map[string]string) {
	mapping := make(map[string]string)
	if text == "" {
		return text, mapping
	}

	var spans []mathSpan
	for _, loc := range displayMathRe.FindAllStringIndex(text, -1) {
		spans = append(spans, mathSpan{loc[0], loc[1]})
	}
	spans = append(spans, findInlineMath(text)...)
	for _, loc := range parenMathRe.FindAllStringIndex(text, -1) {
		spans = append(spans, mathSpan{loc[0], loc[1]})
	}
	for _, loc := range bracketMathRe.FindAllStringIndex(text, -1) {
		spans = append(spans, mathSpan{loc[0], loc[1]})
	}
	if len(spans) == 0 {
		return text, mapping
	}

	// 起点升序，同起点长者优先，保证外层覆盖内层
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end-spans[i].start > spans[j].end-spans[j].start
	})

	var kept []mathSpan
	lastEnd := -1
	for _, s := range spans {
		if s.start < lastEnd {
			continue
		}
		kept = append(kept, s)
		lastEnd = s.end
	}

	protected := text
	for i := len(kept) - 1; i >= 0; i-- {
		ph := fmt.Sprintf("{v%d}", i+1)
		mapping[ph] = text[kept[i].start:kept[i].end]
		protected = protected[:kept[i].start] + ph + protected[kept[i].end:]
	}
	return protected, mapping
}

// RestoreMath 把占位符还原为原始公式，长占位符优先避免 {v1} 吃掉 {v12} 的前缀
func RestoreMath(text string, mapping map[string]string) string {
	if len(mapping) == 0 {
		return text
	}
	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		text = strings.ReplaceAll(text, k, mapping[k])
	}
	return text
}

// findInlineMath 用环视正则找单美元行内公式，regexp2 的偏移是 rune 级，需换算回字节
func findInlineMath(text string) []mathSpan {
	var spans []mathSpan
	runes := []rune(text)
	m, err := inlineMathRe.FindRunesMatch(runes)
	for err == nil && m != nil {
		start := len(string(runes[:m.Index]))
		end := start + len(string(runes[m.Index:m.Index+m.Length]))
		spans = append(spans, mathSpan{start, end})
		m, err = inlineMathRe.FindNextMatch(m)
	}
	return spans
}
