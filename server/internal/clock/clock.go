// Package clock 提供辩论计时器：每秒递减一次的独立倒计时。
// 它不持有任何辩论语义，只维护一个倒计时整数；到期信号恰好触发一次。
package clock

import (
	"sync"
	"time"
)

// TickFunc 每次倒计时递减后回调，携带 Arm 时传入的 tag 与最新剩余秒数。
type TickFunc func(tag int64, remaining int)

// ExpireFunc 倒计时归零后回调，每次 Arm 至多触发一次。
type ExpireFunc func(tag int64)

// Clock 独立的 1 秒重复计时器。
// 并发契约：回调在计时器自己的 goroutine 中触发；
// 调用方应把回调转投给自己的串行事件循环，而不是直接改共享状态。
type Clock struct {
	mu sync.Mutex

	interval  time.Duration
	remaining int
	tag       int64

	running bool
	expired bool
	stopCh  chan struct{}

	onTick   TickFunc
	onExpire ExpireFunc
}

// New 创建计时器，默认 1 秒间隔。
func New(onTick TickFunc, onExpire ExpireFunc) *Clock {
	return NewWithInterval(time.Second, onTick, onExpire)
}

// NewWithInterval 创建自定义间隔的计时器（测试用）。
func NewWithInterval(interval time.Duration, onTick TickFunc, onExpire ExpireFunc) *Clock {
	if interval <= 0 {
		interval = time.Second
	}
	return &Clock{
		interval: interval,
		onTick:   onTick,
		onExpire: onExpire,
	}
}

// Arm 重置倒计时为 seconds 秒，并关联一个调用方 tag（随回调原样带回）。
// 如果计时器正在运行会先停止；Arm 之后需要显式 Start。
func (c *Clock) Arm(seconds int, tag int64) {
	c.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.remaining = seconds
	c.tag = tag
	c.expired = false
}

// Start 启动计时。幂等：已在运行或没有剩余时间时为 no-op。
func (c *Clock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running || c.expired || c.remaining <= 0 {
		return
	}

	c.running = true
	c.stopCh = make(chan struct{})
	go c.run(c.stopCh)
}

// Stop 停止计时，保留剩余时间。幂等：未在运行时为 no-op。
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}
	c.running = false
	close(c.stopCh)
}

// Pause 暂停计时：等价于 Stop，但表达"稍后会 Resume"的意图。
func (c *Clock) Pause() {
	c.Stop()
}

// Resume 从当前剩余时间继续计时。
func (c *Clock) Resume() {
	c.Start()
}

// Remaining 返回当前剩余秒数。
func (c *Clock) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// run 计时循环。归零时：先递减并通知，再触发一次到期信号，然后停止，
// 不会继续对一个已结束的轮次空转。
func (c *Clock) run(stopCh chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return

		case <-ticker.C:
			c.mu.Lock()
			if !c.running || stopCh != c.stopCh {
				c.mu.Unlock()
				return
			}
			c.remaining--
			remaining := c.remaining
			tag := c.tag

			var expire bool
			if remaining <= 0 && !c.expired {
				c.expired = true
				c.running = false
				expire = true
			}
			c.mu.Unlock()

			if c.onTick != nil {
				c.onTick(tag, remaining)
			}
			if expire {
				if c.onExpire != nil {
					c.onExpire(tag)
				}
				return
			}
		}
	}
}
