package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormulaDetectorDetect(t *testing.T) {
	d, err := NewFormulaDetector("", "")
	require.NoError(t, err)

	tests := []struct {
		name     string
		text     string
		fontName string
		want     bool
	}{
		{"空文本", "   ", "CMMI10", false},
		{"数学字体触发", "x y z", "CMMI10", true},
		{"LaTeX行间标记", "$$E = mc^2$$", "", true},
		{"LaTeX命令", `\frac{a}{b}`, "", true},
		{"成对单美元符", "let $x$ be a value", "", true},
		{"高数学符号密度", "α + β = γ ∑ ∫", "", true},
		{"孤立单个数学字符", "α", "", false},
		{"普通英文段落", "This is a plain sentence about cats.", "Times-Roman", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, conf := d.Detect(tt.text, tt.fontName)
			assert.Equal(t, tt.want, got, "confidence=%f", conf)
			if tt.want {
				assert.GreaterOrEqual(t, conf, 0.5)
			}
		})
	}
}

func TestFormulaDetectorCustomPatterns(t *testing.T) {
	t.Run("用户字体模式优先", func(t *testing.T) {
		d, err := NewFormulaDetector(`^MyMathFont`, "")
		require.NoError(t, err)
		assert.True(t, d.IsMathFont("MyMathFont-Regular"))
		// 用户模式生效后内置模式不再参与
		assert.False(t, d.IsMathFont("CMMI10"))
	})

	t.Run("用户字符模式", func(t *testing.T) {
		d, err := NewFormulaDetector("", `⟨[^⟩]+⟩`)
		require.NoError(t, err)
		ok, conf := d.Detect("the state ⟨ψ⟩ evolves", "")
		assert.True(t, ok)
		assert.GreaterOrEqual(t, conf, 0.8)
	})

	t.Run("非法模式报错", func(t *testing.T) {
		_, err := NewFormulaDetector(`(unclosed`, "")
		assert.Error(t, err)
		_, err = NewFormulaDetector("", `[bad`)
		assert.Error(t, err)
	})
}

func TestIsMathFontBuiltin(t *testing.T) {
	d, err := NewFormulaDetector("", "")
	require.NoError(t, err)

	tests := []struct {
		fontName string
		want     bool
	}{
		{"CMMI10", true},
		{"CMSY7", true},
		{"MSBM10", true},
		{"Cambria-Math", true},
		{"FiraCode", true},
		{"Times-Roman", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.fontName, func(t *testing.T) {
			assert.Equal(t, tt.want, d.IsMathFont(tt.fontName))
		})
	}
}

func TestMathSymbolDensity(t *testing.T) {
	assert.Zero(t, MathSymbolDensity(""))
	assert.Zero(t, MathSymbolDensity("plain text"))
	assert.InDelta(t, 1.0, MathSymbolDensity("∑∫√"), 1e-9)
	assert.True(t, HasMathSymbols("a = b"))
	assert.False(t, HasMathSymbols("hello world"))
}
