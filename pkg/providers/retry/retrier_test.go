package retry

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	return Config{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func TestRetrierDo(t *testing.T) {
	t.Run("首次成功不重试", func(t *testing.T) {
		calls := 0
		r := New(fastConfig(), func(error) bool { return true })
		err := r.Do(context.Background(), func() error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("瞬时错误后成功", func(t *testing.T) {
		calls := 0
		r := New(fastConfig(), func(error) bool { return true })
		err := r.Do(context.Background(), func() error {
			calls++
			if calls < 3 {
				return errors.New("temporary failure")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("不可重试立即返回", func(t *testing.T) {
		calls := 0
		permanent := errors.New("bad request")
		r := New(fastConfig(), func(err error) bool { return false })
		err := r.Do(context.Background(), func() error {
			calls++
			return permanent
		})
		assert.ErrorIs(t, err, permanent)
		assert.Equal(t, 1, calls)
	})

	t.Run("尝试耗尽返回最后错误", func(t *testing.T) {
		calls := 0
		r := New(fastConfig(), func(error) bool { return true })
		err := r.Do(context.Background(), func() error {
			calls++
			return errors.New("still failing")
		})
		assert.Error(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("上下文取消", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		r := New(fastConfig(), func(error) bool { return true })
		err := r.Do(ctx, func() error { return errors.New("x") })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRetrierDelay(t *testing.T) {
	r := New(Config{
		MaxAttempts:   5,
		InitialDelay:  time.Second,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
	}, nil)

	assert.Equal(t, time.Second, r.Delay(1))
	assert.Equal(t, 2*time.Second, r.Delay(2))
	assert.Equal(t, 4*time.Second, r.Delay(3))
	assert.Equal(t, 8*time.Second, r.Delay(4))
	assert.Equal(t, 10*time.Second, r.Delay(5), "封顶在最大延迟")
}

func TestIsNetworkError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"空错误", nil, false},
		{"连接拒绝", syscall.ECONNREFUSED, true},
		{"连接重置", syscall.ECONNRESET, true},
		{"文本匹配超时", errors.New("dial tcp: i/o timeout"), true},
		{"普通业务错误", errors.New("invalid api key"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNetworkError(tt.err))
		})
	}
}
