package model

import "time"

// Role 表示辩论中的一个固定角色。
type Role string

const (
	RolePM Role = "pm" // 正方一辩（Prime Minister）
	RoleLO Role = "lo" // 反方一辩（Leader of Opposition）
	RoleMO Role = "mo" // 反方二辩（Member of Opposition）
	RolePW Role = "pw" // 正方总结（PM Wrap-up）
)

// DisplayName 返回角色的展示名称。
func (r Role) DisplayName() string {
	switch r {
	case RolePM:
		return "Prime Minister"
	case RoleLO:
		return "Leader of Opposition"
	case RoleMO:
		return "Member of Opposition"
	case RolePW:
		return "PM Wrap-up"
	default:
		return string(r)
	}
}

// Status 表示一场辩论会话的生命周期状态。
// 状态机：idle → active ⇄ paused → completed；reset 回到 idle。
type Status string

const (
	StatusIdle Status = "idle"
	// StatusPreparing 为将来的赛前准备阶段（角色预热、素材检索）预留；
	// 当前没有任何转换会进入该状态。
	StatusPreparing Status = "preparing"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// EntryKind 表示 Transcript 条目的类型。
type EntryKind string

const (
	EntrySpeech            EntryKind = "speech"
	EntryInterruptRequest  EntryKind = "interrupt-request"
	EntryInterruptResponse EntryKind = "interrupt-response"
	EntryTransition        EntryKind = "transition"
)

// TranscriptEntry 表示辩论记录中的一个条目。
// 契约：条目一旦写入即不可修改、不可删除，插入顺序即为最终顺序。
type TranscriptEntry struct {
	// Seq 由 transcript store 分配的单调序号，用于回放与幂等。
	Seq int64 `json:"seq,omitempty"`
	// EntryID 用于去重与重试幂等，由调度器生成。
	EntryID string `json:"entry_id,omitempty"`

	Speaker   Role      `json:"speaker"`
	Kind      EntryKind `json:"kind"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	// WordCount 仅对 speech 类条目有意义。
	WordCount int `json:"word_count,omitempty"`
}

// InterruptStatus 表示一次 POI（Point of Information）请求的状态。
// 状态机：pending → {accepted, rejected, timed-out}，终态转换恰好发生一次。
type InterruptStatus string

const (
	InterruptPending  InterruptStatus = "pending"
	InterruptAccepted InterruptStatus = "accepted"
	InterruptRejected InterruptStatus = "rejected"
	InterruptTimedOut InterruptStatus = "timed-out"
)

// InterruptRequest 表示一次 POI 请求。
// 约定：Target 恒等于请求创建时刻的当前发言人。
type InterruptRequest struct {
	ID        string          `json:"id"`
	Requester Role            `json:"requester"`
	Target    Role            `json:"target"`
	Content   string          `json:"content"`
	Status    InterruptStatus `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	// Reason 仅在 rejected 时可能携带拒绝理由。
	Reason string `json:"reason,omitempty"`
}

// DebateFormat 描述一种辩论赛制：固定发言顺序与计时规则。
type DebateFormat struct {
	FormatID    string `json:"format_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	// SpeakingOrder 固定的 4 角色发言顺序，构造后不再变化。
	SpeakingOrder []Role `json:"speaking_order"`
	// AllocationSec 每个角色的发言时间预算（秒）。
	AllocationSec map[Role]int `json:"allocation_sec"`
	// ProtectedWindowSec 轮次首尾禁止 POI 的保护窗口时长（秒）。
	ProtectedWindowSec int `json:"protected_window_sec"`
	// POITimeoutSec pending POI 的自动超时时长（秒）。
	POITimeoutSec int `json:"poi_timeout_sec"`
}

// DebateState 保存一场辩论会话的全部可变状态。
// 并发契约：只有调度器的事件循环可以修改它；其他组件只读快照。
type DebateState struct {
	SessionID string `json:"session_id"`
	FormatID  string `json:"format_id"`

	// Motion 辩题，start 时写入一次，之后不可变。
	Motion string `json:"motion"`
	Status Status `json:"status"`

	// SpeakingOrder 固定发言顺序，来自 DebateFormat。
	SpeakingOrder []Role `json:"speaking_order"`
	// CurrentIndex 指向 SpeakingOrder 中的当前发言人；idle 时为 -1。
	CurrentIndex int `json:"current_index"`
	// TimeRemainingSec 当前发言人的剩余时间，永不为负。
	TimeRemainingSec int `json:"time_remaining_sec"`

	// PendingInterrupt 当前待裁决的 POI，最多一个。
	PendingInterrupt *InterruptRequest `json:"pending_interrupt,omitempty"`
	// Interrupts 本场会话内所有已进入终态的 POI 请求。
	Interrupts []InterruptRequest `json:"interrupts,omitempty"`

	// Feedback 会话结束后由评审引擎写入，恰好一次。
	Feedback *DebateFeedback `json:"feedback,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	StartedAt time.Time `json:"started_at,omitempty"`
}

// CurrentSpeaker 返回当前发言人；没有活跃轮次时返回 ok=false。
func (s *DebateState) CurrentSpeaker() (Role, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.SpeakingOrder) {
		return "", false
	}
	return s.SpeakingOrder[s.CurrentIndex], true
}

// RoleScore 是评审引擎对单个角色的打分。
type RoleScore struct {
	Role     Role    `json:"role"`
	Score    float64 `json:"score"`
	Comments string  `json:"comments"`
}

// DebateFeedback 是评审引擎对整场辩论的结构化反馈。
type DebateFeedback struct {
	Summary string      `json:"summary"`
	Winner  string      `json:"winner"`
	Scores  []RoleScore `json:"scores"`
}

// ActiveGeneration 是进行中语音生成的只读视图，用于快照。
type ActiveGeneration struct {
	HandleID string `json:"handle_id"`
	Speaker  Role   `json:"speaker"`
	// BufferedText 当前已累积的增量文本（按节流频率刷新）。
	BufferedText string `json:"buffered_text"`
}

// DebateSnapshot 是暴露给展示层的只读会话快照。
type DebateSnapshot struct {
	SessionID        string            `json:"session_id"`
	FormatID         string            `json:"format_id"`
	Motion           string            `json:"motion"`
	Status           Status            `json:"status"`
	SpeakingOrder    []Role            `json:"speaking_order"`
	CurrentIndex     int               `json:"current_index"`
	CurrentSpeaker   Role              `json:"current_speaker,omitempty"`
	TimeRemainingSec int               `json:"time_remaining_sec"`
	Transcript       []TranscriptEntry `json:"transcript"`
	ActiveGeneration *ActiveGeneration `json:"active_generation,omitempty"`
	PendingInterrupt *InterruptRequest `json:"pending_interrupt,omitempty"`
	Feedback         *DebateFeedback   `json:"feedback,omitempty"`
}
