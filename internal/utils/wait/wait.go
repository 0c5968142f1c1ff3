// Package wait 提供可替换时钟的定时等待与条件轮询
package wait

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock 时钟抽象，发布流程中的所有等待都经由它完成
type Clock interface {
	Now() time.Time
	// Sleep 等待 d，ctx 结束时提前返回 ctx.Err()
	Sleep(ctx context.Context, d time.Duration) error
}

type clockworkClock struct {
	clock clockwork.Clock
}

// RealClock 返回基于系统时间的时钟
func RealClock() Clock { return FromClockwork(clockwork.NewRealClock()) }

// FromClockwork 把 clockwork 时钟包装为 Clock
// 配合 clockwork.FakeClock 时 Sleep 会阻塞到测试调用 Advance
func FromClockwork(c clockwork.Clock) Clock { return clockworkClock{clock: c} }

func (c clockworkClock) Now() time.Time { return c.clock.Now() }

func (c clockworkClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := c.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}

// FakeClock 虚拟时钟，Sleep 立即推进时间，测试不需要驱动协程
type FakeClock struct {
	mutex  sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

// NewFakeClock 创建起始于 start 的虚拟时钟
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if d > 0 {
		c.now = c.now.Add(d)
	}
	c.sleeps = append(c.sleeps, d)
	return nil
}

// Advance 手动推进时间
func (c *FakeClock) Advance(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.now = c.now.Add(d)
}

// Sleeps 返回所有 Sleep 调用的时长记录
func (c *FakeClock) Sleeps() []time.Duration {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// Condition 轮询条件，返回 true 表示已满足
type Condition func(ctx context.Context) bool

// Result 轮询结果
type Result struct {
	Satisfied bool
	Polls     int
	Elapsed   time.Duration
}

// Until 在 deadline 之前每隔 interval 检查一次 cond
// cond 为 nil 时直接等到 deadline；超时不视为错误，只有 ctx 结束才返回 error
func Until(ctx context.Context, clock Clock, deadline time.Time, interval time.Duration, cond Condition) (Result, error) {
	start := clock.Now()
	var res Result

	if cond == nil {
		err := clock.Sleep(ctx, deadline.Sub(start))
		res.Elapsed = clock.Now().Sub(start)
		return res, err
	}
	if interval <= 0 {
		interval = time.Second
	}

	for {
		res.Polls++
		if cond(ctx) {
			res.Satisfied = true
			res.Elapsed = clock.Now().Sub(start)
			return res, nil
		}

		remaining := deadline.Sub(clock.Now())
		if remaining <= 0 {
			res.Elapsed = clock.Now().Sub(start)
			return res, nil
		}
		if remaining > interval {
			remaining = interval
		}
		if err := clock.Sleep(ctx, remaining); err != nil {
			res.Elapsed = clock.Now().Sub(start)
			return res, err
		}
	}
}
