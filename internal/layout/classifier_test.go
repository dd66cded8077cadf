package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
)

func TestFeatureVectorDim(t *testing.T) {
	var f Features
	assert.Len(t, f.Vector(), FeatureDim)
}

func TestRuleFallback(t *testing.T) {
	tests := []struct {
		name string
		f    Features
		want document.BlockType
	}{
		{"说明文字前缀", Features{StartsWithCaption: 1}, document.BlockTypeCaption},
		{"数学字体高密度", Features{IsMathFont: 1, MathSymbolDensity: 0.3}, document.BlockTypeFormula},
		{"大字号短行", Features{FontSizeHierarchy: 0.9, IsShortLine: 1}, document.BlockTypeHeading},
		{"扁平含数字", Features{AspectRatio: 5, HasNumbers: 1}, document.BlockTypeTable},
		{"扁平无数字", Features{AspectRatio: 5}, document.BlockTypeFigure},
		{"默认段落", Features{AspectRatio: 1}, document.BlockTypeParagraph},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred := RuleFallback(tt.f)
			assert.Equal(t, tt.want, pred.Type)
			assert.Greater(t, pred.Confidence, 0.0)
		})
	}
}

func TestClassifierUntrainedUsesFallback(t *testing.T) {
	c := NewClassifier(DefaultClassifierConfig())
	require.False(t, c.Trained())

	preds := c.Predict([]Features{{StartsWithCaption: 1}, {AspectRatio: 1}})
	require.Len(t, preds, 2)
	assert.Equal(t, document.BlockTypeCaption, preds[0].Type)
	assert.Equal(t, document.BlockTypeParagraph, preds[1].Type)
}

func TestClassifierTrainPredict(t *testing.T) {
	// 两个线性可分的类：大字号短行标题与小字号长段落
	var features []Features
	var labels []document.BlockType
	for i := 0; i < 20; i++ {
		features = append(features, Features{
			FontSize:          18 + float64(i%3),
			FontSizeHierarchy: 1,
			IsShortLine:       1,
			TextLength:        20 + float64(i),
		})
		labels = append(labels, document.BlockTypeHeading)

		features = append(features, Features{
			FontSize:   10,
			TextLength: 300 + float64(i*10),
			LineCount:  6,
			WordCount:  60,
		})
		labels = append(labels, document.BlockTypeParagraph)
	}

	c := NewClassifier(ClassifierConfig{NumTrees: 20, MaxDepth: 6, MinSamples: 2, RandomSeed: 7})
	metrics, err := c.Train(features, labels)
	require.NoError(t, err)
	require.True(t, c.Trained())

	assert.Greater(t, metrics.Accuracy, 0.9, "训练集上应接近全对")
	assert.Equal(t, 20, metrics.Classes[string(document.BlockTypeHeading)].Support)

	preds := c.Predict([]Features{
		{FontSize: 19, FontSizeHierarchy: 1, IsShortLine: 1, TextLength: 25},
		{FontSize: 10, TextLength: 400, LineCount: 6, WordCount: 60},
	})
	assert.Equal(t, document.BlockTypeHeading, preds[0].Type)
	assert.Equal(t, document.BlockTypeParagraph, preds[1].Type)
}

func TestClassifierTrainErrors(t *testing.T) {
	c := NewClassifier(DefaultClassifierConfig())

	t.Run("空样本", func(t *testing.T) {
		_, err := c.Train(nil, nil)
		assert.Error(t, err)
	})

	t.Run("长度不一致", func(t *testing.T) {
		_, err := c.Train([]Features{{}}, nil)
		assert.Error(t, err)
	})

	t.Run("未知标签", func(t *testing.T) {
		_, err := c.Train([]Features{{}}, []document.BlockType{document.BlockTypeUnknown})
		assert.Error(t, err)
	})
}
