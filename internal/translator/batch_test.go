package translator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/translation"
)

// scriptedProvider 记录调用顺序并按脚本决定每次调用的结果
type scriptedProvider struct {
	mu       sync.Mutex
	calls    []string
	failures map[string]int
	failErr  error
	prefix   string
}

func newScriptedProvider() *scriptedProvider {
	return &scriptedProvider{failures: map[string]int{}, prefix: "译:"}
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Translate(ctx context.Context, text string, meta translation.TranslateMeta) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, text)
	if p.failures[text] > 0 {
		p.failures[text]--
		if p.failErr != nil {
			return "", p.failErr
		}
		return "", translation.NewRetryableError(translation.ErrCodeProvider, "scripted failure", nil)
	}
	return p.prefix + text, nil
}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *scriptedProvider) callOrder() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// trackingProvider 记录并发调用峰值
type trackingProvider struct {
	active atomic.Int32
	peak   atomic.Int32
}

func (p *trackingProvider) Name() string { return "tracking" }

func (p *trackingProvider) Translate(ctx context.Context, text string, meta translation.TranslateMeta) (string, error) {
	cur := p.active.Add(1)
	for {
		old := p.peak.Load()
		if cur <= old || p.peak.CompareAndSwap(old, cur) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	p.active.Add(-1)
	return "译:" + text, nil
}

func singleWorkerConfig() BatchConfig {
	cfg := DefaultBatchConfig()
	cfg.Workers = 1
	return cfg
}

func TestTranslateAllKeepsSubmissionOrder(t *testing.T) {
	provider := newScriptedProvider()
	b := NewSmartBatchTranslator(provider, singleWorkerConfig(), nil, nil)

	tasks := []Task{
		{BlockID: "p1", Text: "first paragraph", Kind: KindParagraph},
		{BlockID: "t1", Text: "the title", Kind: KindTitle},
		{BlockID: "f1", Text: "a footnote", Kind: KindFootnote},
		{BlockID: "h1", Text: "a heading", Kind: KindHeading},
	}
	results := b.TranslateAll(context.Background(), tasks)

	require.Len(t, results, len(tasks))
	for i, res := range results {
		assert.Equal(t, tasks[i].BlockID, res.BlockID, "结果按提交顺序对位")
		assert.NoError(t, res.Err)
		assert.Equal(t, "译:"+tasks[i].Text, res.Translation)
	}

	t.Run("执行顺序按优先级", func(t *testing.T) {
		assert.Equal(t, []string{"the title", "a heading", "first paragraph", "a footnote"}, provider.callOrder())
	})
}

func TestTranslateAllWithoutPriority(t *testing.T) {
	provider := newScriptedProvider()
	cfg := singleWorkerConfig()
	cfg.UsePriority = false
	b := NewSmartBatchTranslator(provider, cfg, nil, nil)

	tasks := []Task{
		{BlockID: "p1", Text: "first", Kind: KindParagraph},
		{BlockID: "t1", Text: "second", Kind: KindTitle},
	}
	b.TranslateAll(context.Background(), tasks)
	assert.Equal(t, []string{"first", "second"}, provider.callOrder())
}

func TestTranslateAllEmpty(t *testing.T) {
	b := NewSmartBatchTranslator(newScriptedProvider(), DefaultBatchConfig(), nil, nil)
	assert.Empty(t, b.TranslateAll(context.Background(), nil))
}

func TestTranslateOneRetries(t *testing.T) {
	t.Run("瞬时失败后成功", func(t *testing.T) {
		provider := newScriptedProvider()
		provider.failures["flaky text"] = 1
		cfg := singleWorkerConfig()
		cfg.MaxRetries = 2
		b := NewSmartBatchTranslator(provider, cfg, nil, nil)

		results := b.TranslateAll(context.Background(), []Task{{BlockID: "b1", Text: "flaky text", Kind: KindParagraph}})
		require.NoError(t, results[0].Err)
		assert.Equal(t, "译:flaky text", results[0].Translation)
		assert.Equal(t, 1, results[0].Retries)
		assert.Equal(t, 2, provider.callCount())
	})

	t.Run("不可重试错误立即失败", func(t *testing.T) {
		provider := newScriptedProvider()
		provider.failures["bad text"] = 5
		provider.failErr = translation.NewTranslationError(translation.ErrCodeProvider, "invalid request", nil)
		cfg := singleWorkerConfig()
		cfg.MaxRetries = 3
		b := NewSmartBatchTranslator(provider, cfg, nil, nil)

		results := b.TranslateAll(context.Background(), []Task{{BlockID: "b1", Text: "bad text", Kind: KindParagraph}})
		assert.Error(t, results[0].Err)
		assert.Empty(t, results[0].Translation)
		assert.Equal(t, 1, provider.callCount())
	})
}

func TestTranslateAllQualityCheck(t *testing.T) {
	provider := newScriptedProvider()
	provider.prefix = "" // 原样返回，触发相似度校验
	cfg := singleWorkerConfig()
	cfg.QualityCheck = true
	cfg.MaxRetries = 0
	b := NewSmartBatchTranslator(provider, cfg, nil, nil)

	results := b.TranslateAll(context.Background(), []Task{{BlockID: "b1", Text: "unchanged output", Kind: KindParagraph}})
	require.Error(t, results[0].Err)
	assert.Contains(t, results[0].Err.Error(), "相似度")
}

func TestTranslateAllCanceled(t *testing.T) {
	provider := newScriptedProvider()
	control := NewControl()
	control.Cancel()
	b := NewSmartBatchTranslator(provider, singleWorkerConfig(), control, nil)

	tasks := []Task{
		{BlockID: "b1", Text: "one", Kind: KindParagraph},
		{BlockID: "b2", Text: "two", Kind: KindParagraph},
	}
	results := b.TranslateAll(context.Background(), tasks)

	for _, res := range results {
		assert.ErrorIs(t, res.Err, translation.ErrCanceled)
	}
	assert.Zero(t, provider.callCount(), "取消后不再发起调用")
}

func TestTranslateAllConcurrencyBound(t *testing.T) {
	provider := &trackingProvider{}
	cfg := DefaultBatchConfig()
	cfg.Workers = 2
	b := NewSmartBatchTranslator(provider, cfg, nil, nil)

	tasks := make([]Task, 40)
	for i := range tasks {
		tasks[i] = Task{BlockID: fmt.Sprintf("b%d", i), Text: fmt.Sprintf("text %d", i), Kind: KindParagraph}
	}
	results := b.TranslateAll(context.Background(), tasks)

	require.Len(t, results, len(tasks))
	for _, res := range results {
		assert.NoError(t, res.Err)
	}
	assert.LessOrEqual(t, provider.peak.Load(), int32(2), "并发调用不超过配置的 worker 数")
}

func TestBackoffDelay(t *testing.T) {
	assert.Equal(t, 2*time.Second, backoffDelay(1))
	assert.Equal(t, 4*time.Second, backoffDelay(2))
	assert.Equal(t, 8*time.Second, backoffDelay(3))
	assert.Equal(t, 10*time.Second, backoffDelay(4), "封顶十秒")
}

func TestTextLevenshteinSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"双空串", "", "", 1},
		{"完全相同", "hello", "hello", 1},
		{"完全不同", "aaaa", "zzzz", 0},
		{"半数改动", "abcd", "abxy", 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, textLevenshteinSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}
