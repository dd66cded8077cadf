package translator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/translation"
)

// TaskKind 任务类别，决定优先级调度顺序
type TaskKind string

const (
	KindTitle     TaskKind = "title"
	KindHeading   TaskKind = "heading"
	KindCaption   TaskKind = "caption"
	KindParagraph TaskKind = "paragraph"
	KindFootnote  TaskKind = "footnote"
)

// kindPriority 数字越小越先翻译
var kindPriority = map[TaskKind]int{
	KindTitle:     1,
	KindHeading:   2,
	KindCaption:   3,
	KindParagraph: 4,
	KindFootnote:  5,
}

// Task 一个待翻译的文本单元
type Task struct {
	BlockID string
	Text    string
	Kind    TaskKind
	Meta    translation.TranslateMeta
}

// TaskResult 单个任务的翻译结果，失败时 Translation 为空且 Err 非空
type TaskResult struct {
	BlockID     string
	Translation string
	Err         error
	Retries     int
	Latency     time.Duration
}

// BatchConfig 批量翻译配置
type BatchConfig struct {
	// Workers 并发 worker 数
	Workers int `mapstructure:"workers" json:"workers" yaml:"workers"`
	// MaxRetries 单任务最大重试次数
	MaxRetries int `mapstructure:"max_retries" json:"max_retries" yaml:"max_retries"`
	// UsePriority 按任务类别优先级调度
	UsePriority bool `mapstructure:"use_priority" json:"use_priority" yaml:"use_priority"`
	// TargetLatency 自适应调参的目标单请求延迟
	TargetLatency time.Duration `mapstructure:"target_latency" json:"target_latency" yaml:"target_latency"`
	// TargetErrorRate 自适应调参的目标错误率
	TargetErrorRate float64 `mapstructure:"target_error_rate" json:"target_error_rate" yaml:"target_error_rate"`
	// QualityCheck 译文与原文过于相似时视为失败
	QualityCheck bool `mapstructure:"quality_check" json:"quality_check" yaml:"quality_check"`
	// QualityThreshold 相似度阈值，超过视为未翻译
	QualityThreshold float64 `mapstructure:"quality_threshold" json:"quality_threshold" yaml:"quality_threshold"`
}

// DefaultBatchConfig 默认批量配置
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		Workers:          5,
		MaxRetries:       3,
		UsePriority:      true,
		TargetLatency:    1200 * time.Millisecond,
		TargetErrorRate:  0.05,
		QualityCheck:     false,
		QualityThreshold: 0.95,
	}
}

// SmartBatchTranslator 带优先级调度、重试退避与自适应并发的批量翻译器
type SmartBatchTranslator struct {
	provider   translation.Provider
	config     BatchConfig
	controller *adaptiveController
	control    *Control
	logger     *zap.Logger
}

// NewSmartBatchTranslator 创建批量翻译器，control 可为 nil
func NewSmartBatchTranslator(provider translation.Provider, cfg BatchConfig, control *Control, logger *zap.Logger) *SmartBatchTranslator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.TargetLatency <= 0 {
		cfg.TargetLatency = 1200 * time.Millisecond
	}
	if cfg.TargetErrorRate <= 0 {
		cfg.TargetErrorRate = 0.05
	}
	if cfg.QualityThreshold <= 0 {
		cfg.QualityThreshold = 0.95
	}
	if control == nil {
		control = NewControl()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SmartBatchTranslator{
		provider:   provider,
		config:     cfg,
		controller: newAdaptiveController(cfg.Workers, cfg.Workers, cfg.TargetLatency, cfg.TargetErrorRate),
		control:    control,
		logger:     logger,
	}
}

// TranslateAll 翻译全部任务，结果按提交顺序返回
func (t *SmartBatchTranslator) TranslateAll(ctx context.Context, tasks []Task) []TaskResult {
	results := make([]TaskResult, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	order := t.scheduleOrder(tasks)

	// 并发上限固定为 Workers，自适应控制只在其下收缩批大小
	sem := make(chan struct{}, t.config.Workers)
	done := make(chan int, len(order))
	running := 0
	next := 0

	launch := func(idx int) {
		sem <- struct{}{}
		go func() {
			defer func() { <-sem }()
			results[idx] = t.translateOne(ctx, tasks[idx])
			done <- idx
		}()
	}

	for next < len(order) || running > 0 {
		limit := t.controller.size()
		for next < len(order) && running < limit {
			if err := t.control.Wait(ctx); err != nil {
				t.drainCanceled(tasks, results, order[next:], err)
				next = len(order)
				break
			}
			launch(order[next])
			next++
			running++
		}
		if running == 0 {
			continue
		}
		<-done
		running--
	}

	t.logSummary(results)
	return results
}

// scheduleOrder 返回执行顺序的任务下标，优先级模式按类别分桶
func (t *SmartBatchTranslator) scheduleOrder(tasks []Task) []int {
	order := make([]int, len(tasks))
	for i := range order {
		order[i] = i
	}
	if !t.config.UsePriority {
		return order
	}
	sort.SliceStable(order, func(a, b int) bool {
		return taskPriority(tasks[order[a]]) < taskPriority(tasks[order[b]])
	})
	return order
}

func taskPriority(task Task) int {
	if p, ok := kindPriority[task.Kind]; ok {
		return p
	}
	return len(kindPriority) + 1
}

// translateOne 单任务翻译，含重试退避与质量校验
func (t *SmartBatchTranslator) translateOne(ctx context.Context, task Task) TaskResult {
	res := TaskResult{BlockID: task.BlockID}
	start := time.Now()

	var lastErr error
	for attempt := 0; attempt <= t.config.MaxRetries; attempt++ {
		if attempt > 0 {
			res.Retries = attempt
			delay := backoffDelay(attempt)
			select {
			case <-ctx.Done():
				res.Err = ctx.Err()
				res.Latency = time.Since(start)
				return res
			case <-time.After(delay):
			}
		}
		if err := t.control.Wait(ctx); err != nil {
			res.Err = err
			res.Latency = time.Since(start)
			return res
		}

		callStart := time.Now()
		out, err := t.provider.Translate(ctx, task.Text, task.Meta)
		callLatency := time.Since(callStart)

		if err == nil && t.config.QualityCheck {
			if sim := textLevenshteinSimilarity(task.Text, out); sim >= t.config.QualityThreshold {
				err = translation.NewRetryableError(translation.ErrCodeProvider,
					fmt.Sprintf("译文与原文相似度 %.2f 超过阈值", sim), nil)
			}
		}
		t.controller.record(callLatency, err != nil)

		if err == nil {
			res.Translation = out
			res.Latency = time.Since(start)
			return res
		}
		lastErr = err
		if !translation.IsRetryableError(err) {
			break
		}
	}

	res.Err = lastErr
	res.Latency = time.Since(start)
	return res
}

// drainCanceled 将未启动的任务标记为取消
func (t *SmartBatchTranslator) drainCanceled(tasks []Task, results []TaskResult, remaining []int, err error) {
	for _, idx := range remaining {
		results[idx] = TaskResult{BlockID: tasks[idx].BlockID, Err: err}
	}
}

func (t *SmartBatchTranslator) logSummary(results []TaskResult) {
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	t.logger.Info("batch translation finished",
		zap.Int("total", len(results)),
		zap.Int("failed", failed),
		zap.Int("batchSize", t.controller.size()))
}

// backoffDelay 指数退避，上限 10 秒
func backoffDelay(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt)) * time.Second
	if d > 10*time.Second {
		d = 10 * time.Second
	}
	return d
}

// textLevenshteinSimilarity 归一化编辑距离相似度，两文本都为空时为 1
func textLevenshteinSimilarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longer := len(ra)
	if len(rb) > longer {
		longer = len(rb)
	}
	if longer == 0 {
		return 1
	}
	dist := fuzzy.LevenshteinDistance(a, b)
	return 1 - float64(dist)/float64(longer)
}
