package clock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestClockCountsDownAndExpiresOnce 验证倒计时递减到 0，且到期信号恰好触发一次。
func TestClockCountsDownAndExpiresOnce(t *testing.T) {
	var mu sync.Mutex
	var ticks []int
	var expireCount int64

	c := NewWithInterval(5*time.Millisecond, func(tag int64, remaining int) {
		mu.Lock()
		ticks = append(ticks, remaining)
		mu.Unlock()
	}, func(tag int64) {
		atomic.AddInt64(&expireCount, 1)
	})

	c.Arm(3, 1)
	c.Start()

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(ticks) != 3 {
		t.Fatalf("expected 3 ticks, got %d (%v)", len(ticks), ticks)
	}
	for i, want := range []int{2, 1, 0} {
		if ticks[i] != want {
			t.Fatalf("tick %d: expected remaining %d, got %d", i, want, ticks[i])
		}
	}
	if got := atomic.LoadInt64(&expireCount); got != 1 {
		t.Fatalf("expected exactly one expire, got %d", got)
	}
}

// TestClockStartIdempotent 验证重复 Start 的效果与单次 Start 相同。
// 场景：连续两次 Start 之后，tick 不会以双倍频率触发。
func TestClockStartIdempotent(t *testing.T) {
	var tickCount int64

	c := NewWithInterval(10*time.Millisecond, func(tag int64, remaining int) {
		atomic.AddInt64(&tickCount, 1)
	}, nil)

	c.Arm(100, 1)
	c.Start()
	c.Start()

	time.Sleep(55 * time.Millisecond)
	c.Stop()
	c.Stop() // Stop 同样幂等

	got := atomic.LoadInt64(&tickCount)
	if got < 3 || got > 7 {
		t.Fatalf("expected roughly 5 ticks from a single loop, got %d", got)
	}
}

// TestClockPauseKeepsRemaining 验证 Pause 停止递减但保留剩余时间，Resume 从原值继续。
func TestClockPauseKeepsRemaining(t *testing.T) {
	c := NewWithInterval(5*time.Millisecond, nil, nil)

	c.Arm(100, 1)
	c.Start()
	time.Sleep(30 * time.Millisecond)
	c.Pause()

	remaining := c.Remaining()
	if remaining >= 100 || remaining <= 0 {
		t.Fatalf("expected remaining strictly between 0 and 100, got %d", remaining)
	}

	time.Sleep(30 * time.Millisecond)
	if got := c.Remaining(); got != remaining {
		t.Fatalf("expected remaining unchanged while paused, got %d (was %d)", got, remaining)
	}

	c.Resume()
	time.Sleep(30 * time.Millisecond)
	c.Stop()
	if got := c.Remaining(); got >= remaining {
		t.Fatalf("expected countdown to continue after resume, got %d (was %d)", got, remaining)
	}
}

// TestClockNoTicksAfterExpiry 验证到期后不再产生 tick。
func TestClockNoTicksAfterExpiry(t *testing.T) {
	var tickCount int64

	c := NewWithInterval(5*time.Millisecond, func(tag int64, remaining int) {
		atomic.AddInt64(&tickCount, 1)
	}, nil)

	c.Arm(2, 1)
	c.Start()
	time.Sleep(60 * time.Millisecond)

	if got := atomic.LoadInt64(&tickCount); got != 2 {
		t.Fatalf("expected 2 ticks total, got %d", got)
	}
}

// TestClockArmCarriesTag 验证回调携带 Arm 时传入的 tag。
func TestClockArmCarriesTag(t *testing.T) {
	var gotTag int64

	done := make(chan struct{})
	c := NewWithInterval(5*time.Millisecond, nil, func(tag int64) {
		atomic.StoreInt64(&gotTag, tag)
		close(done)
	})

	c.Arm(1, 42)
	c.Start()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expire not fired")
	}
	if atomic.LoadInt64(&gotTag) != 42 {
		t.Fatalf("expected tag 42, got %d", gotTag)
	}
}
