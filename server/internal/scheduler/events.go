package scheduler

import (
	"debate-sim/server/internal/model"
)

// eventKind 事件循环中流转的事件类型。
// cmd* 是外部同步命令（带 resultCh）；ev* 是异步回投事件
// （时钟、内容流、POI 超时、评审结果），携带轮次代数以便丢弃过期事件。
type eventKind string

const (
	cmdStart            eventKind = "cmd_start"
	cmdPause            eventKind = "cmd_pause"
	cmdResume           eventKind = "cmd_resume"
	cmdReset            eventKind = "cmd_reset"
	cmdRequestInterrupt eventKind = "cmd_request_interrupt"
	cmdAcceptInterrupt  eventKind = "cmd_accept_interrupt"
	cmdRejectInterrupt  eventKind = "cmd_reject_interrupt"
	cmdSnapshot         eventKind = "cmd_snapshot"

	evClockTick        eventKind = "ev_clock_tick"
	evClockExpired     eventKind = "ev_clock_expired"
	evStreamText       eventKind = "ev_stream_text"
	evStreamDone       eventKind = "ev_stream_done"
	evStreamError      eventKind = "ev_stream_error"
	evInterruptTimeout eventKind = "ev_interrupt_timeout"
	evFeedbackReady    eventKind = "ev_feedback_ready"
)

// cmdResult 同步命令的处理结果。
type cmdResult struct {
	err       error
	interrupt *model.InterruptRequest
	snapshot  *model.DebateSnapshot
}

// event 事件循环的统一信封。按 kind 只有对应字段有意义。
type event struct {
	kind eventKind

	// gen 异步事件携带的轮次代数；与当前代数不符的事件被无条件丢弃。
	gen int64

	// 命令载荷
	motion      string
	requester   model.Role
	content     string
	interruptID string
	reason      string

	// 异步事件载荷
	remaining int
	text      string
	err       error
	feedback  *model.DebateFeedback

	// resultCh 同步命令的回执通道（容量 1）。异步事件为 nil。
	resultCh chan cmdResult
}
