package gateway

import (
	"time"

	"debate-sim/server/internal/model"
)

// EventType 推送给客户端的事件类型。
type EventType string

const (
	// EventStatus 会话状态变化（idle/active/paused/completed）。
	EventStatus EventType = "status"
	// EventTick 当前发言人剩余时间的每秒更新。
	EventTick EventType = "tick"
	// EventSpeechText 节流后的累积发言文本快照。
	EventSpeechText EventType = "speech_text"
	// EventTranscript 新追加的 transcript 条目。
	EventTranscript EventType = "transcript_entry"
	// EventFeedback 辩论结束后的评审反馈。
	EventFeedback EventType = "feedback"
)

// ServerMessage 推送给客户端的消息（WebSocket 文本帧）。
// Seq 由 Hub 统一分配，客户端可据此检测乱序或丢失。
type ServerMessage struct {
	Type      EventType `json:"type"`
	Seq       int64     `json:"seq"`
	SessionID string    `json:"session_id"`

	Status       model.Status           `json:"status,omitempty"`
	Speaker      model.Role             `json:"speaker,omitempty"`
	RemainingSec int                    `json:"remaining_sec,omitempty"`
	Text         string                 `json:"text,omitempty"`
	Entry        *model.TranscriptEntry `json:"entry,omitempty"`
	Feedback     *model.DebateFeedback  `json:"feedback,omitempty"`

	ServerTS time.Time `json:"server_ts"`
}
