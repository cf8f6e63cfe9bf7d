package transcript

import (
	"context"

	"debate-sim/server/internal/model"
)

type Store interface {
	// Append 以 append-first 的契约写入 transcript，返回本次写入的 seq。
	// 约定：同一 session 的 seq 单调递增；相同 EntryID 的请求应幂等返回同一 seq。
	Append(ctx context.Context, sessionID string, entry *model.TranscriptEntry) (int64, error)
	// List 返回该 session 的全量条目（按 seq 顺序），用于快照与回放。
	List(ctx context.Context, sessionID string) ([]model.TranscriptEntry, error)
	// Reset 丢弃该 session 的全部条目。只在会话被 restart 销毁时调用。
	Reset(ctx context.Context, sessionID string) error
}
