package stream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"debate-sim/server/internal/llm"
	"debate-sim/server/internal/model"
)

// fakeLLM 可编排的假流式客户端，用于驱动适配器测试。
type fakeLLM struct {
	deltas  []string
	delay   time.Duration
	openErr error
	midErr  error
	// hold 非空时，流在发完全部增量后保持打开，直到通道关闭。
	hold chan struct{}
}

func (f *fakeLLM) Complete(_ context.Context, _ []llm.Message, _ *llm.JSONSchema) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeLLM) Stream(ctx context.Context, _ []llm.Message) (<-chan llm.Chunk, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}

	out := make(chan llm.Chunk)
	go func() {
		defer close(out)
		for _, d := range f.deltas {
			select {
			case out <- llm.Chunk{Delta: d}:
			case <-ctx.Done():
				return
			}
			if f.delay > 0 {
				time.Sleep(f.delay)
			}
		}
		if f.midErr != nil {
			select {
			case out <- llm.Chunk{Err: f.midErr}:
			case <-ctx.Done():
			}
			return
		}
		if f.hold != nil {
			select {
			case <-f.hold:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

// TestAdapterNaturalCompletion 验证序列自然耗尽后：最终刷新恰好一次、OnDone 触发、
// Finalize 返回完整文本和词数。
func TestAdapterNaturalCompletion(t *testing.T) {
	client := &fakeLLM{deltas: []string{"Ladies ", "and ", "gentlemen, ", "the motion stands."}}
	adapter := NewAdapter(client, 10*time.Millisecond)

	var mu sync.Mutex
	var updates []string
	done := make(chan int64, 1)

	h := adapter.Open(OpenRequest{SessionID: "s1", Gen: 1, Speaker: model.RolePM}, Callbacks{
		OnUpdate: func(gen int64, text string) {
			mu.Lock()
			updates = append(updates, text)
			mu.Unlock()
		},
		OnDone: func(gen int64) { done <- gen },
	})

	select {
	case gen := <-done:
		if gen != 1 {
			t.Fatalf("expected gen 1, got %d", gen)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("stream did not complete")
	}

	mu.Lock()
	if len(updates) == 0 {
		t.Fatalf("expected at least the guaranteed final flush")
	}
	final := updates[len(updates)-1]
	mu.Unlock()

	want := "Ladies and gentlemen, the motion stands."
	if final != want {
		t.Fatalf("final flush mismatch: %q", final)
	}

	text, wordCount, ok := h.Finalize()
	if !ok {
		t.Fatalf("expected Finalize to succeed")
	}
	if text != want {
		t.Fatalf("finalized text mismatch: %q", text)
	}
	if wordCount != 6 {
		t.Fatalf("expected word count 6, got %d", wordCount)
	}

	// 终态转换恰好一次
	if _, _, ok := h.Finalize(); ok {
		t.Fatalf("second Finalize must fail")
	}
	if h.Cancel() {
		t.Fatalf("Cancel after Finalize must fail")
	}
}

// TestAdapterThrottlesUpdates 验证通知频率受刷新间隔限制，而不是每个增量一次。
func TestAdapterThrottlesUpdates(t *testing.T) {
	deltas := make([]string, 200)
	for i := range deltas {
		deltas[i] = "x"
	}
	client := &fakeLLM{deltas: deltas, delay: time.Millisecond}
	adapter := NewAdapter(client, 50*time.Millisecond)

	var updateCount int64
	done := make(chan struct{})

	adapter.Open(OpenRequest{SessionID: "s1", Gen: 1, Speaker: model.RolePM}, Callbacks{
		OnUpdate: func(gen int64, text string) { atomic.AddInt64(&updateCount, 1) },
		OnDone:   func(gen int64) { close(done) },
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("stream did not complete")
	}

	// 200 个增量、约 200ms 总时长、50ms 节流 → 更新次数应远小于增量数
	if got := atomic.LoadInt64(&updateCount); got > 20 {
		t.Fatalf("expected throttled updates, got %d for %d deltas", got, len(deltas))
	}
}

// TestAdapterCancelDropsLateDeltas 验证取消后：缓冲区冻结、OnDone 不触发、
// 部分文本仅在显式读取时可见。
func TestAdapterCancelDropsLateDeltas(t *testing.T) {
	hold := make(chan struct{})
	client := &fakeLLM{deltas: []string{"partial "}, hold: hold}
	adapter := NewAdapter(client, 5*time.Millisecond)

	var doneCount int64
	h := adapter.Open(OpenRequest{SessionID: "s1", Gen: 1, Speaker: model.RoleLO}, Callbacks{
		OnDone: func(gen int64) { atomic.AddInt64(&doneCount, 1) },
	})

	// 等第一个增量进入缓冲区
	deadline := time.Now().Add(time.Second)
	for h.PartialText() == "" {
		if time.Now().After(deadline) {
			t.Fatalf("no delta buffered")
		}
		time.Sleep(time.Millisecond)
	}

	if !h.Cancel() {
		t.Fatalf("expected Cancel to succeed")
	}
	if h.Cancel() {
		t.Fatalf("second Cancel must fail")
	}
	close(hold)

	// 取消后迟到的增量不得进入缓冲区
	buffered := h.PartialText()
	time.Sleep(30 * time.Millisecond)
	if h.PartialText() != buffered {
		t.Fatalf("buffer mutated after cancel")
	}
	if _, _, ok := h.Finalize(); ok {
		t.Fatalf("Finalize after Cancel must fail")
	}
	if atomic.LoadInt64(&doneCount) != 0 {
		t.Fatalf("OnDone fired for cancelled stream")
	}
}

// TestAdapterOpenErrorReported 验证发起请求失败通过 OnError 上报。
func TestAdapterOpenErrorReported(t *testing.T) {
	client := &fakeLLM{openErr: errors.New("service unavailable")}
	adapter := NewAdapter(client, 5*time.Millisecond)

	errCh := make(chan error, 1)
	adapter.Open(OpenRequest{SessionID: "s1", Gen: 7, Speaker: model.RoleMO}, Callbacks{
		OnError: func(gen int64, err error) {
			if gen != 7 {
				t.Errorf("expected gen 7, got %d", gen)
			}
			errCh <- err
		},
	})

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatalf("expected non-nil error")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("OnError not fired")
	}
}

// TestAdapterMidFlightErrorReported 验证流中途出错通过 OnError 上报且 OnDone 不触发。
func TestAdapterMidFlightErrorReported(t *testing.T) {
	client := &fakeLLM{deltas: []string{"a ", "b "}, midErr: errors.New("connection reset")}
	adapter := NewAdapter(client, 5*time.Millisecond)

	errCh := make(chan error, 1)
	var doneCount int64
	adapter.Open(OpenRequest{SessionID: "s1", Gen: 2, Speaker: model.RolePW}, Callbacks{
		OnDone:  func(gen int64) { atomic.AddInt64(&doneCount, 1) },
		OnError: func(gen int64, err error) { errCh <- err },
	})

	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatalf("OnError not fired")
	}
	if atomic.LoadInt64(&doneCount) != 0 {
		t.Fatalf("OnDone fired for errored stream")
	}
}
