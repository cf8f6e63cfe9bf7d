package scheduler

import (
	"errors"
	"testing"
	"time"

	"debate-sim/server/internal/model"
)

func testFormat() model.DebateFormat {
	return model.DebateFormat{
		FormatID:      "cpdl",
		SpeakingOrder: []model.Role{model.RolePM, model.RoleLO, model.RoleMO, model.RolePW},
		AllocationSec: map[model.Role]int{
			model.RolePM: 420,
			model.RoleLO: 420,
			model.RoleMO: 420,
			model.RolePW: 180,
		},
		ProtectedWindowSec: 60,
		POITimeoutSec:      15,
	}
}

func idleState() *model.DebateState {
	format := testFormat()
	return &model.DebateState{
		SessionID:     "s1",
		FormatID:      format.FormatID,
		Status:        model.StatusIdle,
		SpeakingOrder: format.SpeakingOrder,
		CurrentIndex:  -1,
	}
}

func TestBeginDebate(t *testing.T) {
	state := idleState()
	format := testFormat()
	now := time.Now()

	if err := beginDebate(state, &format, "Motion X", now); err != nil {
		t.Fatalf("beginDebate failed: %v", err)
	}
	if state.Status != model.StatusActive {
		t.Errorf("expected active, got %s", state.Status)
	}
	if state.CurrentIndex != 0 {
		t.Errorf("expected index 0, got %d", state.CurrentIndex)
	}
	if state.TimeRemainingSec != 420 {
		t.Errorf("expected first speaker allocation 420, got %d", state.TimeRemainingSec)
	}
	if state.Motion != "Motion X" || !state.StartedAt.Equal(now) {
		t.Errorf("motion/startedAt not recorded: %+v", state)
	}

	// 只能从 idle 启动。
	if err := beginDebate(state, &format, "again", now); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("expected ErrInvalidOperation, got %v", err)
	}
}

func TestAdvanceTurnWalksOrderThenCompletes(t *testing.T) {
	state := idleState()
	format := testFormat()
	if err := beginDebate(state, &format, "m", time.Now()); err != nil {
		t.Fatalf("beginDebate failed: %v", err)
	}

	wantAlloc := []int{420, 420, 180}
	for i := 0; i < 3; i++ {
		done, err := advanceTurn(state, &format)
		if err != nil || done {
			t.Fatalf("advance %d: done=%v err=%v", i, done, err)
		}
		if state.CurrentIndex != i+1 {
			t.Errorf("advance %d: expected index %d, got %d", i, i+1, state.CurrentIndex)
		}
		if state.TimeRemainingSec != wantAlloc[i] {
			t.Errorf("advance %d: expected allocation %d, got %d", i, wantAlloc[i], state.TimeRemainingSec)
		}
	}

	done, err := advanceTurn(state, &format)
	if err != nil || !done {
		t.Fatalf("final advance: done=%v err=%v", done, err)
	}
	if state.Status != model.StatusCompleted || state.TimeRemainingSec != 0 {
		t.Errorf("expected completed with zero time, got %s/%d", state.Status, state.TimeRemainingSec)
	}

	if _, err := advanceTurn(state, &format); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("advancing a completed debate should fail, got %v", err)
	}
}

func TestApplyTickNeverNegative(t *testing.T) {
	state := idleState()
	applyTick(state, 5)
	if state.TimeRemainingSec != 5 {
		t.Errorf("expected 5, got %d", state.TimeRemainingSec)
	}
	applyTick(state, -3)
	if state.TimeRemainingSec != 0 {
		t.Errorf("remaining time must never be negative, got %d", state.TimeRemainingSec)
	}
}

func TestPauseResume(t *testing.T) {
	state := idleState()
	format := testFormat()

	if err := pauseDebate(state); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("pause from idle should fail, got %v", err)
	}

	_ = beginDebate(state, &format, "m", time.Now())
	state.TimeRemainingSec = 100

	if err := pauseDebate(state); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if state.Status != model.StatusPaused || state.TimeRemainingSec != 100 {
		t.Errorf("pause must keep remaining time: %s/%d", state.Status, state.TimeRemainingSec)
	}
	if err := resumeDebate(state); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if state.Status != model.StatusActive || state.TimeRemainingSec != 100 {
		t.Errorf("resume must keep remaining time: %s/%d", state.Status, state.TimeRemainingSec)
	}

	if err := resumeDebate(state); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("resume while active should fail, got %v", err)
	}
}

func TestResetDebate(t *testing.T) {
	state := idleState()
	format := testFormat()
	_ = beginDebate(state, &format, "m", time.Now())
	state.PendingInterrupt = &model.InterruptRequest{ID: "poi_1"}
	state.Interrupts = []model.InterruptRequest{{ID: "poi_0"}}
	state.Feedback = &model.DebateFeedback{Winner: "government"}

	resetDebate(state)

	if state.Status != model.StatusIdle || state.CurrentIndex != -1 {
		t.Errorf("expected idle shape, got %s/%d", state.Status, state.CurrentIndex)
	}
	if state.Motion != "" || state.TimeRemainingSec != 0 {
		t.Errorf("motion/time not cleared: %+v", state)
	}
	if state.PendingInterrupt != nil || state.Interrupts != nil || state.Feedback != nil {
		t.Error("interrupts and feedback must be cleared")
	}
}

func TestAttachFeedbackExactlyOnce(t *testing.T) {
	state := idleState()
	state.Status = model.StatusCompleted

	first := &model.DebateFeedback{Winner: "government"}
	if !attachFeedback(state, first) {
		t.Fatal("first attach should succeed")
	}
	if attachFeedback(state, &model.DebateFeedback{Winner: "opposition"}) {
		t.Error("second attach must be rejected")
	}
	if state.Feedback.Winner != "government" {
		t.Errorf("feedback overwritten: %+v", state.Feedback)
	}

	idle := idleState()
	if attachFeedback(idle, first) {
		t.Error("feedback outside completed status must be rejected")
	}
}
