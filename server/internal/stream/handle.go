package stream

import (
	"context"
	"strings"
	"sync"

	"debate-sim/server/internal/model"
)

// handleState StreamHandle 的生命周期状态。
// open → {finalized | cancelled}，终态转换恰好发生一次。
type handleState int

const (
	stateOpen handleState = iota
	stateFinalized
	stateCancelled
)

// Handle 表示一次进行中的语音生成。
// 缓冲区只追加不替换（单调累积）；进入终态后缓冲区冻结。
type Handle struct {
	id      string
	gen     int64
	speaker model.Role

	mu    sync.Mutex
	buf   strings.Builder
	state handleState

	cancel context.CancelFunc
}

func newHandle(id string, gen int64, speaker model.Role, cancel context.CancelFunc) *Handle {
	return &Handle{
		id:      id,
		gen:     gen,
		speaker: speaker,
		cancel:  cancel,
	}
}

// ID 返回句柄的不透明标识。
func (h *Handle) ID() string { return h.id }

// Gen 返回句柄关联的轮次代数（用于丢弃过期回调）。
func (h *Handle) Gen() int64 { return h.gen }

// Speaker 返回该句柄对应的发言人。
func (h *Handle) Speaker() model.Role { return h.speaker }

// append 追加一个增量。句柄已进入终态时返回 false，增量被丢弃。
// 这是"取消后迟到的增量不得进入缓冲区"的执行点。
func (h *Handle) append(delta string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != stateOpen {
		return false
	}
	h.buf.WriteString(delta)
	return true
}

// PartialText 返回当前累积的文本快照。
// 取消后的部分文本只有显式调用这里才会被读取，默认被丢弃。
func (h *Handle) PartialText() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buf.String()
}

// Cancel 把句柄转入 cancelled 终态并停止底层消费。
// 从调用方视角取消是同步的：返回后不会再有增量进入缓冲区，
// 底层 I/O 的拆除则异步完成。重复调用返回 false。
func (h *Handle) Cancel() bool {
	h.mu.Lock()
	if h.state != stateOpen {
		h.mu.Unlock()
		return false
	}
	h.state = stateCancelled
	h.mu.Unlock()

	h.cancel()
	return true
}

// Finalize 把句柄转入 finalized 终态，返回完整文本与词数。
// 只在底层序列自然耗尽后由调度器调用；重复或对已取消句柄调用返回 ok=false。
func (h *Handle) Finalize() (text string, wordCount int, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != stateOpen {
		return "", 0, false
	}
	h.state = stateFinalized
	h.cancel()

	text = h.buf.String()
	return text, len(strings.Fields(text)), true
}

// terminated 返回句柄是否已进入终态。
func (h *Handle) terminated() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state != stateOpen
}
