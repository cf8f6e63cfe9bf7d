package scheduler

import (
	"fmt"
	"time"

	"debate-sim/server/internal/model"
)

// 本文件只做"事实归约"：纯状态转换，不触发时钟、内容流等外部调用。
// 外部副作用全部留在 scheduler.go 的事件处理器里，便于单独测试转换规则。

// beginDebate idle → active：写入辩题，指向第一位发言人并分配其时间预算。
func beginDebate(state *model.DebateState, format *model.DebateFormat, motion string, now time.Time) error {
	if state.Status != model.StatusIdle {
		return fmt.Errorf("%w: cannot start from %s", ErrInvalidOperation, state.Status)
	}
	if len(format.SpeakingOrder) == 0 {
		return fmt.Errorf("format %s has no speaking order", format.FormatID)
	}

	state.Motion = motion
	state.Status = model.StatusActive
	state.CurrentIndex = 0
	state.TimeRemainingSec = format.AllocationSec[format.SpeakingOrder[0]]
	state.StartedAt = now
	return nil
}

// advanceTurn 把指针移向下一位发言人；越过最后一位时会话进入 completed。
// 返回 done=true 表示会话已完成。
func advanceTurn(state *model.DebateState, format *model.DebateFormat) (done bool, err error) {
	if state.Status != model.StatusActive {
		return false, fmt.Errorf("%w: cannot advance from %s", ErrInvalidOperation, state.Status)
	}

	if state.CurrentIndex >= len(state.SpeakingOrder)-1 {
		state.Status = model.StatusCompleted
		state.TimeRemainingSec = 0
		return true, nil
	}

	state.CurrentIndex++
	state.TimeRemainingSec = format.AllocationSec[state.SpeakingOrder[state.CurrentIndex]]
	return false, nil
}

// applyTick 写入时钟报告的最新剩余秒数。剩余时间永不为负。
func applyTick(state *model.DebateState, remaining int) {
	if remaining < 0 {
		remaining = 0
	}
	state.TimeRemainingSec = remaining
}

// pauseDebate active → paused。剩余时间保持不变。
func pauseDebate(state *model.DebateState) error {
	if state.Status != model.StatusActive {
		return fmt.Errorf("%w: cannot pause from %s", ErrInvalidOperation, state.Status)
	}
	state.Status = model.StatusPaused
	return nil
}

// resumeDebate paused → active。
func resumeDebate(state *model.DebateState) error {
	if state.Status != model.StatusPaused {
		return fmt.Errorf("%w: cannot resume from %s", ErrInvalidOperation, state.Status)
	}
	state.Status = model.StatusActive
	return nil
}

// resetDebate 把会话退回初始 idle 形态。任何状态下都允许。
func resetDebate(state *model.DebateState) {
	state.Motion = ""
	state.Status = model.StatusIdle
	state.CurrentIndex = -1
	state.TimeRemainingSec = 0
	state.PendingInterrupt = nil
	state.Interrupts = nil
	state.Feedback = nil
	state.StartedAt = time.Time{}
}

// attachFeedback 把评审结果写入会话，恰好一次；重复写入被忽略。
func attachFeedback(state *model.DebateState, feedback *model.DebateFeedback) bool {
	if state.Status != model.StatusCompleted || state.Feedback != nil || feedback == nil {
		return false
	}
	state.Feedback = feedback
	return true
}
