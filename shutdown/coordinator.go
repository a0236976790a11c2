// Package shutdown 进程级别的一次性退出协调：Running -> ShuttingDown -> Terminated。
//
// 重复 trace id 和 SIGINT/SIGTERM 都走同一个 Trigger，谁先到谁生效，
// 后到的触发是 no-op；退出 hook 只执行一次。
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
)

// Reason 触发退出的原因
type Reason int32

const (
	ReasonNone Reason = iota
	ReasonSignal
	ReasonDuplicate
)

func (r Reason) String() string {
	switch r {
	case ReasonSignal:
		return "signal"
	case ReasonDuplicate:
		return "duplicate_trace_id"
	default:
		return "none"
	}
}

// ExitCode 信号触发正常退出，重复 id 触发视为失败
func (r Reason) ExitCode() int {
	if r == ReasonDuplicate {
		return 1
	}
	return 0
}

// Hook 退出时执行的一步（写汇总、关 server、刷 span、关日志）
type Hook struct {
	Name string
	Fn   func(ctx context.Context, reason Reason) error
}

// Coordinator 零值不可用，使用 New 创建
type Coordinator struct {
	reason atomic.Int32
	done   chan struct{}

	once  sync.Once
	hooks []Hook
	err   error
}

func New(hooks ...Hook) *Coordinator {
	return &Coordinator{
		done:  make(chan struct{}),
		hooks: hooks,
	}
}

// Trigger 发起退出，只有第一次调用返回 true
func (c *Coordinator) Trigger(reason Reason) bool {
	if reason == ReasonNone {
		return false
	}
	if !c.reason.CompareAndSwap(int32(ReasonNone), int32(reason)) {
		return false
	}
	close(c.done)
	return true
}

// ShuttingDown 已触发退出后返回 true，此后不再接收新请求
func (c *Coordinator) ShuttingDown() bool {
	return c.Reason() != ReasonNone
}

func (c *Coordinator) Reason() Reason {
	return Reason(c.reason.Load())
}

// Done 触发退出后关闭
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Wait 阻塞到 Trigger 被调用或 ctx 结束（ctx 结束按信号处理），
// 然后按顺序执行所有 hook。hook 使用脱离 ctx 取消的 context，
// 即使 ctx 已取消，汇总也会完整写完。多次调用只执行一次 hook。
func (c *Coordinator) Wait(ctx context.Context) (Reason, error) {
	select {
	case <-c.done:
	case <-ctx.Done():
		c.Trigger(ReasonSignal)
	}

	reason := c.Reason()
	c.once.Do(func() {
		hookCtx := context.WithoutCancel(ctx)
		var errs []error
		for _, h := range c.hooks {
			if err := h.Fn(hookCtx, reason); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", h.Name, err))
			}
		}
		c.err = errors.Join(errs...)
	})
	return reason, c.err
}

// SignalContext 返回在 SIGINT / SIGTERM 时取消的 ctx
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
