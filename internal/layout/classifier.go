package layout

import (
	"errors"
	"math"
	"math/rand"
	"sort"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
)

// Classes 分类器输出的六个类别，索引即标签编码
var Classes = []document.BlockType{
	document.BlockTypeParagraph,
	document.BlockTypeHeading,
	document.BlockTypeCaption,
	document.BlockTypeFormula,
	document.BlockTypeFigure,
	document.BlockTypeTable,
}

// Prediction 单块分类结果
type Prediction struct {
	Type       document.BlockType
	Confidence float64
}

// ClassMetrics 单类评估指标
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	Support   int     `json:"support"`
}

// Metrics 训练评估指标
type Metrics struct {
	Accuracy float64                 `json:"accuracy"`
	Classes  map[string]ClassMetrics `json:"classes"`
}

// ClassifierConfig 分类器训练配置
type ClassifierConfig struct {
	NumTrees   int   `json:"num_trees"`
	MaxDepth   int   `json:"max_depth"`
	MinSamples int   `json:"min_samples"`
	RandomSeed int64 `json:"random_seed"`
}

// DefaultClassifierConfig 返回默认训练配置
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		NumTrees:   50,
		MaxDepth:   12,
		MinSamples: 2,
		RandomSeed: 42,
	}
}

// Classifier 六类版面分类器，随机森林加规则回退
type Classifier struct {
	config ClassifierConfig
	trees  []*treeNode
}

// NewClassifier 创建未训练的分类器，预测走规则回退
func NewClassifier(config ClassifierConfig) *Classifier {
	return &Classifier{config: config}
}

// Trained 是否已完成训练
func (c *Classifier) Trained() bool {
	return len(c.trees) > 0
}

// Train 训练森林，类权重按样本数反比平衡段落类占多数的标签倾斜
func (c *Classifier) Train(features []Features, labels []document.BlockType) (Metrics, error) {
	if len(features) == 0 || len(features) != len(labels) {
		return Metrics{}, errors.New("features and labels must be non-empty and equal length")
	}

	classIndex := make(map[document.BlockType]int, len(Classes))
	for i, cls := range Classes {
		classIndex[cls] = i
	}

	samples := make([][]float64, len(features))
	encoded := make([]int, len(labels))
	counts := make([]float64, len(Classes))
	for i, f := range features {
		samples[i] = f.Vector()
		idx, ok := classIndex[labels[i]]
		if !ok {
			return Metrics{}, errors.New("unknown label: " + string(labels[i]))
		}
		encoded[i] = idx
		counts[idx]++
	}

	// 平衡类权重 n/(k*count)
	weights := make([]float64, len(Classes))
	for i, cnt := range counts {
		if cnt > 0 {
			weights[i] = float64(len(samples)) / (float64(len(Classes)) * cnt)
		}
	}

	rng := rand.New(rand.NewSource(c.config.RandomSeed))
	featureSub := int(math.Ceil(math.Sqrt(FeatureDim)))

	trees := make([]*treeNode, 0, c.config.NumTrees)
	for t := 0; t < c.config.NumTrees; t++ {
		idxs := make([]int, len(samples))
		for i := range idxs {
			idxs[i] = rng.Intn(len(samples))
		}
		trees = append(trees, growTree(samples, encoded, weights, idxs, featureSub, c.config.MaxDepth, c.config.MinSamples, rng))
	}
	c.trees = trees

	return c.evaluate(samples, encoded), nil
}

// Predict 批量预测，未训练时逐块走规则回退
func (c *Classifier) Predict(features []Features) []Prediction {
	out := make([]Prediction, len(features))
	for i, f := range features {
		if c.Trained() {
			out[i] = c.predictForest(f.Vector())
		} else {
			out[i] = RuleFallback(f)
		}
	}
	return out
}

func (c *Classifier) predictForest(vec []float64) Prediction {
	probs := make([]float64, len(Classes))
	for _, t := range c.trees {
		leaf := t.find(vec)
		var total float64
		for _, w := range leaf.classWeights {
			total += w
		}
		if total == 0 {
			continue
		}
		for i, w := range leaf.classWeights {
			probs[i] += w / total
		}
	}
	best, bestProb, total := 0, 0.0, 0.0
	for i, p := range probs {
		total += p
		if p > bestProb {
			best, bestProb = i, p
		}
	}
	if total == 0 {
		return Prediction{Type: document.BlockTypeParagraph, Confidence: 0}
	}
	return Prediction{Type: Classes[best], Confidence: bestProb / total}
}

// RuleFallback 未训练时的确定性规则分类
func RuleFallback(f Features) Prediction {
	switch {
	case f.StartsWithCaption > 0:
		return Prediction{Type: document.BlockTypeCaption, Confidence: 0.7}
	case f.IsMathFont > 0 && f.MathSymbolDensity > 0.1:
		return Prediction{Type: document.BlockTypeFormula, Confidence: 0.7}
	case f.FontSizeHierarchy > 0.7 && f.IsShortLine > 0:
		return Prediction{Type: document.BlockTypeHeading, Confidence: 0.6}
	case f.AspectRatio > 2.0 || f.AspectRatio < 0.5:
		if f.HasNumbers > 0 {
			return Prediction{Type: document.BlockTypeTable, Confidence: 0.5}
		}
		return Prediction{Type: document.BlockTypeFigure, Confidence: 0.5}
	default:
		return Prediction{Type: document.BlockTypeParagraph, Confidence: 0.5}
	}
}

// evaluate 用训练集计算指标
func (c *Classifier) evaluate(samples [][]float64, labels []int) Metrics {
	correct := 0
	tp := make([]int, len(Classes))
	fp := make([]int, len(Classes))
	fn := make([]int, len(Classes))
	support := make([]int, len(Classes))

	for i, vec := range samples {
		pred := c.predictForest(vec)
		predIdx := 0
		for j, cls := range Classes {
			if cls == pred.Type {
				predIdx = j
				break
			}
		}
		support[labels[i]]++
		if predIdx == labels[i] {
			correct++
			tp[predIdx]++
		} else {
			fp[predIdx]++
			fn[labels[i]]++
		}
	}

	m := Metrics{
		Accuracy: float64(correct) / float64(len(samples)),
		Classes:  make(map[string]ClassMetrics, len(Classes)),
	}
	for i, cls := range Classes {
		cm := ClassMetrics{Support: support[i]}
		if tp[i]+fp[i] > 0 {
			cm.Precision = float64(tp[i]) / float64(tp[i]+fp[i])
		}
		if tp[i]+fn[i] > 0 {
			cm.Recall = float64(tp[i]) / float64(tp[i]+fn[i])
		}
		m.Classes[string(cls)] = cm
	}
	return m
}

// treeNode CART 树节点，叶节点携带加权类分布
type treeNode struct {
	feature      int
	threshold    float64
	left, right  *treeNode
	classWeights []float64
}

func (n *treeNode) find(vec []float64) *treeNode {
	node := n
	for node.left != nil {
		if vec[node.feature] <= node.threshold {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node
}

// growTree 递归生长一棵树，每个节点随机抽 featureSub 个特征找最优基尼分裂
func growTree(samples [][]float64, labels []int, weights []float64, idxs []int, featureSub, maxDepth, minSamples int, rng *rand.Rand) *treeNode {
	dist := classDistribution(labels, weights, idxs)
	if maxDepth <= 0 || len(idxs) < minSamples || isPure(labels, idxs) {
		return &treeNode{classWeights: dist}
	}

	bestGini := math.Inf(1)
	bestFeature, bestThreshold := -1, 0.0
	var bestLeft, bestRight []int

	perm := rng.Perm(FeatureDim)
	for _, feat := range perm[:featureSub] {
		thresholds := candidateThresholds(samples, idxs, feat)
		for _, th := range thresholds {
			var left, right []int
			for _, i := range idxs {
				if samples[i][feat] <= th {
					left = append(left, i)
				} else {
					right = append(right, i)
				}
			}
			if len(left) == 0 || len(right) == 0 {
				continue
			}
			g := weightedGini(labels, weights, left, right)
			if g < bestGini {
				bestGini = g
				bestFeature, bestThreshold = feat, th
				bestLeft, bestRight = left, right
			}
		}
	}

	if bestFeature < 0 {
		return &treeNode{classWeights: dist}
	}

	return &treeNode{
		feature:      bestFeature,
		threshold:    bestThreshold,
		left:         growTree(samples, labels, weights, bestLeft, featureSub, maxDepth-1, minSamples, rng),
		right:        growTree(samples, labels, weights, bestRight, featureSub, maxDepth-1, minSamples, rng),
		classWeights: dist,
	}
}

func classDistribution(labels []int, weights []float64, idxs []int) []float64 {
	dist := make([]float64, len(Classes))
	for _, i := range idxs {
		dist[labels[i]] += weights[labels[i]]
	}
	return dist
}

func isPure(labels []int, idxs []int) bool {
	if len(idxs) == 0 {
		return true
	}
	first := labels[idxs[0]]
	for _, i := range idxs[1:] {
		if labels[i] != first {
			return false
		}
	}
	return true
}

// candidateThresholds 取该特征去重后相邻值的中点
func candidateThresholds(samples [][]float64, idxs []int, feat int) []float64 {
	seen := map[float64]struct{}{}
	var vals []float64
	for _, i := range idxs {
		v := samples[i][feat]
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			vals = append(vals, v)
		}
	}
	if len(vals) < 2 {
		return nil
	}
	sort.Float64s(vals)
	out := make([]float64, 0, len(vals)-1)
	for i := 1; i < len(vals); i++ {
		out = append(out, (vals[i-1]+vals[i])/2)
	}
	return out
}

func weightedGini(labels []int, weights []float64, left, right []int) float64 {
	lw := giniImpurity(labels, weights, left)
	rw := giniImpurity(labels, weights, right)
	lt := totalWeight(labels, weights, left)
	rt := totalWeight(labels, weights, right)
	total := lt + rt
	if total == 0 {
		return 0
	}
	return (lt*lw + rt*rw) / total
}

func giniImpurity(labels []int, weights []float64, idxs []int) float64 {
	dist := classDistribution(labels, weights, idxs)
	var total float64
	for _, w := range dist {
		total += w
	}
	if total == 0 {
		return 0
	}
	g := 1.0
	for _, w := range dist {
		p := w / total
		g -= p * p
	}
	return g
}

func totalWeight(labels []int, weights []float64, idxs []int) float64 {
	var total float64
	for _, i := range idxs {
		total += weights[labels[i]]
	}
	return total
}
