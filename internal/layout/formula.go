package layout

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// builtinMathFontRe 常见数学字体名模式，CM/MS 系列与各类 symbol/math 字体
var builtinMathFontRe = regexp.MustCompile(
	`(CM[^R]|MS.M|XY|MT|BL|RM|EU|LA|RS|LINE|LCIRCLE|TeX-|rsfs|txsy|wasy|stmary|` +
		`.*Mono|.*Code|.*Ital|.*Sym|.*Math)`)

// mathSymbolSet 固定数学符号集合
const mathSymbolSet = "=+-*/∑∏√≈≠≤≥→↔αβγδθλμσπ∞∂∇∫∬∭∮∯∰"

// latexMarkers 文本中出现即视为 LaTeX 语法的标记
var latexMarkers = []string{`\(`, `\[`, "$$", `\begin{`, `\frac`, `\sum`, `\int`}

// FormulaDetector 基于字体名和符号密度的公式检测器
type FormulaDetector struct {
	vfont *regexp.Regexp
	vchar *regexp.Regexp
}

// NewFormulaDetector 创建公式检测器，vfont/vchar 为空时使用内置模式
func NewFormulaDetector(vfontPattern, vcharPattern string) (*FormulaDetector, error) {
	d := &FormulaDetector{}
	if vfontPattern != "" {
		re, err := regexp.Compile(vfontPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid vfont pattern: %w", err)
		}
		d.vfont = re
	}
	if vcharPattern != "" {
		re, err := regexp.Compile(vcharPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid vchar pattern: %w", err)
		}
		d.vchar = re
	}
	return d, nil
}

// Detect 判断文本是否为公式，置信度取各独立信号的最大值
func (d *FormulaDetector) Detect(text, fontName string) (bool, float64) {
	text = strings.TrimSpace(text)
	if text == "" {
		return false, 0
	}

	confidence := 0.0

	// 字体名信号：用户模式优先于内置模式
	if fontName != "" {
		if d.vfont != nil {
			if d.vfont.MatchString(fontName) {
				confidence = max(confidence, 0.9)
			}
		} else if builtinMathFontRe.MatchString(fontName) {
			confidence = max(confidence, 0.85)
		}
	}

	// 用户字符模式信号
	if d.vchar != nil && d.vchar.MatchString(text) {
		confidence = max(confidence, 0.8)
	}

	// LaTeX 语法信号
	if hasLaTeXMarkers(text) {
		confidence = max(confidence, 0.9)
	}

	// 数学符号密度信号，孤立的单个数学字符不算
	count, total := countMathChars(text)
	if total > 0 && count >= 2 {
		ratio := float64(count) / float64(total)
		switch {
		case ratio > 0.3:
			confidence = max(confidence, min(0.95, 0.5+ratio))
		case ratio > 0.15:
			confidence = max(confidence, 0.6)
		default:
			confidence = max(confidence, 0.5)
		}
	}

	// 非字母数字占比信号
	if ratio := nonAlnumRatio(text); ratio > 0.4 {
		confidence = max(confidence, min(0.85, 0.4+ratio*0.5))
	}

	return confidence >= 0.5, confidence
}

// IsMathFont 字体名是否匹配数学字体模式
func (d *FormulaDetector) IsMathFont(fontName string) bool {
	if fontName == "" {
		return false
	}
	if d.vfont != nil {
		return d.vfont.MatchString(fontName)
	}
	return builtinMathFontRe.MatchString(fontName)
}

// hasLaTeXMarkers 文本是否包含 LaTeX 语法标记，成对的单 $ 也算
func hasLaTeXMarkers(text string) bool {
	for _, m := range latexMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return strings.Count(text, "$") >= 2
}

// isMathChar 字符是否属于数学符号：固定符号集、希腊字母区或特定 Unicode 类别
func isMathChar(r rune) bool {
	if strings.ContainsRune(mathSymbolSet, r) {
		return true
	}
	if r >= 0x370 && r < 0x400 {
		return true
	}
	return unicode.In(r, unicode.Lm, unicode.Mn, unicode.Sk, unicode.Sm, unicode.Zl, unicode.Zp)
}

// countMathChars 统计数学符号数和总字符数，空白不计入
func countMathChars(text string) (count, total int) {
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if isMathChar(r) {
			count++
		}
	}
	return count, total
}

// nonAlnumRatio 非字母数字字符占比，空白不计入
func nonAlnumRatio(text string) float64 {
	var nonAlnum, total int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			nonAlnum++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(nonAlnum) / float64(total)
}

// MathSymbolDensity 数学符号密度，特征提取和规则校验共用
func MathSymbolDensity(text string) float64 {
	count, total := countMathChars(text)
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total)
}

// HasMathSymbols 文本是否含有数学符号
func HasMathSymbols(text string) bool {
	count, _ := countMathChars(text)
	return count > 0
}
