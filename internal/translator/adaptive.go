package translator

import (
	"sync"
	"time"
)

const (
	latencyWindow = 100
	errorWindow   = 200
	tuneInterval  = time.Second
)

// adaptiveController 根据滑动窗口内的延迟与错误率动态调节并发批大小
type adaptiveController struct {
	mu sync.Mutex

	batchSize int
	minSize   int
	maxSize   int

	targetLatency   time.Duration
	targetErrorRate float64

	latencies []time.Duration
	errors    []bool
	lastTune  time.Time
}

func newAdaptiveController(initial, max int, targetLatency time.Duration, targetErrorRate float64) *adaptiveController {
	if initial < 1 {
		initial = 1
	}
	if max < initial {
		max = initial
	}
	return &adaptiveController{
		batchSize:       initial,
		minSize:         1,
		maxSize:         max,
		targetLatency:   targetLatency,
		targetErrorRate: targetErrorRate,
	}
}

// record 记录一次请求的延迟与成败，并尝试调参
func (a *adaptiveController) record(latency time.Duration, failed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.latencies = append(a.latencies, latency)
	if len(a.latencies) > latencyWindow {
		a.latencies = a.latencies[1:]
	}
	a.errors = append(a.errors, failed)
	if len(a.errors) > errorWindow {
		a.errors = a.errors[1:]
	}
	a.tuneLocked()
}

// tuneLocked 错误率优先于延迟，每秒最多调整一次
func (a *adaptiveController) tuneLocked() {
	if len(a.latencies) < 10 || len(a.errors) < 20 {
		return
	}
	now := time.Now()
	if now.Sub(a.lastTune) < tuneInterval {
		return
	}

	failures := 0
	for _, e := range a.errors {
		if e {
			failures++
		}
	}
	errRate := float64(failures) / float64(len(a.errors))

	var total time.Duration
	for _, l := range a.latencies {
		total += l
	}
	avg := total / time.Duration(len(a.latencies))

	switch {
	case errRate > a.targetErrorRate:
		a.batchSize--
	case avg < time.Duration(float64(a.targetLatency)*0.7):
		a.batchSize++
	case avg > time.Duration(float64(a.targetLatency)*1.7):
		a.batchSize--
	default:
		return
	}
	if a.batchSize < a.minSize {
		a.batchSize = a.minSize
	}
	if a.batchSize > a.maxSize {
		a.batchSize = a.maxSize
	}
	a.lastTune = now
}

// size 当前批大小
func (a *adaptiveController) size() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.batchSize
}
