// Package poi 负责 Point of Information（质询插话）请求的校验与状态跟踪。
// 状态机：pending → {accepted, rejected, timed-out}，终态转换恰好一次。
package poi

import (
	"errors"
	"fmt"
	"time"

	"debate-sim/server/internal/model"
)

var (
	// ErrSelfInterrupt 当前发言人不能向自己提出质询。
	ErrSelfInterrupt = errors.New("current speaker cannot raise a point of information")
	// ErrNotActive 只有会话处于 active 状态时才能质询。
	ErrNotActive = errors.New("debate is not active")
	// ErrProtectedWindow 当前时间落在发言首尾的保护窗口内。
	ErrProtectedWindow = errors.New("inside protected window")
	// ErrAlreadyPending 已有一个待裁决的质询。
	ErrAlreadyPending = errors.New("another point of information is pending")
	// ErrNotPending 目标请求不存在或已进入终态。
	ErrNotPending = errors.New("request is not pending")
)

// InProtectedWindow 判断 elapsed 时刻是否落在保护窗口内。
// 保护窗口是发言的前 window 秒和后 window 秒；判断只依赖
// (elapsed, total)，与具体角色无关。
func InProtectedWindow(elapsedSec, totalSec, windowSec int) bool {
	if windowSec <= 0 {
		return false
	}
	return elapsedSec < windowSec || elapsedSec >= totalSec-windowSec
}

// Handler 质询处理器。
// 并发契约：所有方法都必须在调度器的事件循环内调用；
// 自动超时的定时器由调度器持有并回投事件。
type Handler struct {
	windowSec  int
	timeoutSec int
	counter    int64
	now        func() time.Time
}

// NewHandler 创建处理器。
func NewHandler(windowSec, timeoutSec int, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{
		windowSec:  windowSec,
		timeoutSec: timeoutSec,
		now:        now,
	}
}

// Timeout 返回 pending 请求的自动超时时长。
func (h *Handler) Timeout() time.Duration {
	return time.Duration(h.timeoutSec) * time.Second
}

// Request 校验并创建一个 pending 质询。
// 以下情况直接拒绝且不产生任何记录：
// (a) 请求者就是当前发言人；(b) 会话不处于 active；
// (c) 当前时间在保护窗口内；(d) 已有 pending 请求。
func (h *Handler) Request(state *model.DebateState, allocSec int, requester model.Role, content string) (*model.InterruptRequest, error) {
	if state.Status != model.StatusActive {
		return nil, ErrNotActive
	}

	speaker, ok := state.CurrentSpeaker()
	if !ok {
		return nil, ErrNotActive
	}
	if requester == speaker {
		return nil, ErrSelfInterrupt
	}

	elapsed := allocSec - state.TimeRemainingSec
	if InProtectedWindow(elapsed, allocSec, h.windowSec) {
		return nil, ErrProtectedWindow
	}

	if state.PendingInterrupt != nil {
		return nil, ErrAlreadyPending
	}

	h.counter++
	req := &model.InterruptRequest{
		ID:        fmt.Sprintf("poi_%s_%d", state.SessionID, h.counter),
		Requester: requester,
		Target:    speaker,
		Content:   content,
		Status:    model.InterruptPending,
		CreatedAt: h.now(),
	}
	state.PendingInterrupt = req
	return req, nil
}

// Accept 把 pending 请求转入 accepted 终态。
func (h *Handler) Accept(state *model.DebateState, id string) (*model.InterruptRequest, error) {
	return h.resolve(state, id, model.InterruptAccepted, "")
}

// Reject 把 pending 请求转入 rejected 终态，可附带理由。
func (h *Handler) Reject(state *model.DebateState, id, reason string) (*model.InterruptRequest, error) {
	return h.resolve(state, id, model.InterruptRejected, reason)
}

// Expire 把仍处于 pending 的请求转入 timed-out 终态。
// 请求已被裁决时返回 ok=false（定时器迟到属正常情况，不是错误）。
func (h *Handler) Expire(state *model.DebateState, id string) (*model.InterruptRequest, bool) {
	req, err := h.resolve(state, id, model.InterruptTimedOut, "")
	if err != nil {
		return nil, false
	}
	return req, true
}

// resolve 执行唯一一次的终态转换：清除 pending 指针并归档到历史。
func (h *Handler) resolve(state *model.DebateState, id string, status model.InterruptStatus, reason string) (*model.InterruptRequest, error) {
	req := state.PendingInterrupt
	if req == nil || req.ID != id || req.Status != model.InterruptPending {
		return nil, ErrNotPending
	}

	req.Status = status
	req.Reason = reason
	state.PendingInterrupt = nil
	state.Interrupts = append(state.Interrupts, *req)
	return req, nil
}
