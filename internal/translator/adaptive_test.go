package translator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAdaptiveControllerClamps(t *testing.T) {
	t.Run("初值下限", func(t *testing.T) {
		a := newAdaptiveController(0, 0, time.Second, 0.05)
		assert.Equal(t, 1, a.size())
	})

	t.Run("上限不低于初值", func(t *testing.T) {
		a := newAdaptiveController(5, 2, time.Second, 0.05)
		assert.Equal(t, 5, a.maxSize)
	})
}

func TestAdaptiveControllerGrowsOnFastLatency(t *testing.T) {
	a := newAdaptiveController(4, 8, time.Second, 0.05)
	for i := 0; i < 20; i++ {
		a.record(100*time.Millisecond, false)
	}
	assert.Equal(t, 5, a.size(), "低延迟无错误时扩批")
}

func TestAdaptiveControllerShrinksOnErrors(t *testing.T) {
	a := newAdaptiveController(4, 8, time.Second, 0.05)
	for i := 0; i < 20; i++ {
		// 延迟落在目标区间内，只有错误率超标
		a.record(time.Second, true)
	}
	assert.Equal(t, 3, a.size(), "错误率超标时缩批")
}

func TestAdaptiveControllerShrinksOnSlowLatency(t *testing.T) {
	a := newAdaptiveController(4, 8, time.Second, 0.05)
	for i := 0; i < 20; i++ {
		a.record(3*time.Second, false)
	}
	assert.Equal(t, 3, a.size())
}

func TestAdaptiveControllerBounds(t *testing.T) {
	t.Run("不低于一", func(t *testing.T) {
		a := newAdaptiveController(1, 2, time.Second, 0.05)
		for i := 0; i < 20; i++ {
			a.record(time.Second, true)
		}
		assert.Equal(t, 1, a.size())
	})

	t.Run("不超过上限", func(t *testing.T) {
		a := newAdaptiveController(4, 4, time.Second, 0.05)
		for i := 0; i < 20; i++ {
			a.record(100*time.Millisecond, false)
		}
		assert.Equal(t, 4, a.size())
	})
}

func TestAdaptiveControllerTuneSpacing(t *testing.T) {
	a := newAdaptiveController(2, 8, time.Second, 0.05)
	// 一口气喂 40 条样本，一秒内最多调整一次
	for i := 0; i < 40; i++ {
		a.record(100*time.Millisecond, false)
	}
	assert.Equal(t, 3, a.size())
}

func TestAdaptiveControllerKeepsSizeInTargetBand(t *testing.T) {
	a := newAdaptiveController(4, 8, time.Second, 0.05)
	for i := 0; i < 30; i++ {
		a.record(time.Second, false)
	}
	assert.Equal(t, 4, a.size(), "延迟在目标区间内不调整")
}
