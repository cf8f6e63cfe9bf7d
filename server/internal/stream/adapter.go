// Package stream 把一次 LLM 生成请求包装为可取消的增量文本序列，
// 并以固定上限频率向外刷新累积文本，避免按增量逐条通知压垮消费方。
package stream

import (
	"context"
	"fmt"
	"log"
	"time"

	"debate-sim/server/internal/llm"
	"debate-sim/server/internal/model"
)

// Callbacks 消费过程中的回调。所有回调都携带轮次代数，
// 由调用方负责丢弃过期代数的回调。
type Callbacks struct {
	// OnUpdate 节流后的累积文本快照，至多每个刷新间隔一次；
	// 序列自然结束后保证再触发恰好一次（最终刷新）。
	OnUpdate func(gen int64, text string)
	// OnDone 底层序列自然耗尽（在最终刷新之后触发）。
	OnDone func(gen int64)
	// OnError 发起请求失败或流中途出错。
	OnError func(gen int64, err error)
}

// OpenRequest 一次生成请求。
type OpenRequest struct {
	SessionID string
	// Gen 单调递增的轮次代数，调度器用它识别过期回调。
	Gen      int64
	Speaker  model.Role
	Messages []llm.Message
}

// Adapter 内容流适配器。
// 并发契约：每个 Session 同一时刻至多一个未终结的 Handle，由调度器保证。
type Adapter struct {
	client        llm.Client
	flushInterval time.Duration
	logger        *log.Logger
}

// NewAdapter 创建适配器。flushInterval 是对外刷新的最小间隔。
func NewAdapter(client llm.Client, flushInterval time.Duration) *Adapter {
	if flushInterval <= 0 {
		flushInterval = 40 * time.Millisecond
	}
	return &Adapter{
		client:        client,
		flushInterval: flushInterval,
		logger:        log.Default(),
	}
}

// Open 发起一次生成并立即返回句柄。
// 与生成服务的首次握手在后台进行：失败通过 OnError 上报，
// 这样调度器的事件循环不会被网络等待阻塞。
func (a *Adapter) Open(req OpenRequest, cb Callbacks) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	h := newHandle(fmt.Sprintf("h_%s_%d", req.SessionID, req.Gen), req.Gen, req.Speaker, cancel)

	a.logger.Printf("[Stream] Opening stream: session=%s gen=%d speaker=%s", req.SessionID, req.Gen, req.Speaker)

	go a.consume(ctx, h, req, cb)
	return h
}

// consume 消费底层增量序列：累积进缓冲区，按节流频率刷新，
// 自然结束后做一次保证性的最终刷新。
func (a *Adapter) consume(ctx context.Context, h *Handle, req OpenRequest, cb Callbacks) {
	chunks, err := a.client.Stream(ctx, req.Messages)
	if err != nil {
		if ctx.Err() != nil {
			// 句柄已被取消，握手失败无需上报。
			return
		}
		a.logger.Printf("[Stream] ❌ Open failed: session=%s gen=%d err=%v", req.SessionID, req.Gen, err)
		if cb.OnError != nil {
			cb.OnError(req.Gen, err)
		}
		return
	}

	ticker := time.NewTicker(a.flushInterval)
	defer ticker.Stop()

	dirty := false
	for {
		select {
		case <-ctx.Done():
			return

		case chunk, ok := <-chunks:
			if !ok {
				// 序列自然耗尽：最终状态必须恰好再刷新一次，
				// 即使上一个节流周期恰好刚刷过。
				if !h.terminated() {
					if cb.OnUpdate != nil {
						cb.OnUpdate(req.Gen, h.PartialText())
					}
					a.logger.Printf("[Stream] ✅ Stream completed: session=%s gen=%d chars=%d",
						req.SessionID, req.Gen, len(h.PartialText()))
					if cb.OnDone != nil {
						cb.OnDone(req.Gen)
					}
				}
				return
			}
			if chunk.Err != nil {
				a.logger.Printf("[Stream] ❌ Stream error mid-flight: session=%s gen=%d err=%v",
					req.SessionID, req.Gen, chunk.Err)
				if cb.OnError != nil && !h.terminated() {
					cb.OnError(req.Gen, chunk.Err)
				}
				return
			}
			if !h.append(chunk.Delta) {
				// 句柄已终结，迟到的增量直接丢弃。
				return
			}
			dirty = true

		case <-ticker.C:
			if dirty && !h.terminated() {
				if cb.OnUpdate != nil {
					cb.OnUpdate(req.Gen, h.PartialText())
				}
				dirty = false
			}
		}
	}
}
