package translator

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/translation"
)

// ControlState 批量翻译的协作式控制状态
type ControlState int32

const (
	// ControlRunning 正常执行
	ControlRunning ControlState = iota
	// ControlPaused 暂停，任务间轮询等待
	ControlPaused
	// ControlCanceled 取消，剩余任务立即放弃
	ControlCanceled
)

// Control 协作式暂停与取消令牌，任务之间检查，不抢占执行中的调用
type Control struct {
	state        atomic.Int32
	pollInterval time.Duration
}

// NewControl 创建控制令牌
func NewControl() *Control {
	return &Control{pollInterval: 200 * time.Millisecond}
}

// Pause 请求暂停
func (c *Control) Pause() {
	c.state.CompareAndSwap(int32(ControlRunning), int32(ControlPaused))
}

// Resume 恢复执行
func (c *Control) Resume() {
	c.state.CompareAndSwap(int32(ControlPaused), int32(ControlRunning))
}

// Cancel 请求取消，不可逆
func (c *Control) Cancel() {
	c.state.Store(int32(ControlCanceled))
}

// State 当前状态
func (c *Control) State() ControlState {
	return ControlState(c.state.Load())
}

// Wait 暂停时按固定间隔轮询，取消或上下文结束时返回错误
func (c *Control) Wait(ctx context.Context) error {
	for {
		switch c.State() {
		case ControlCanceled:
			return translation.ErrCanceled
		case ControlRunning:
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}
