package transcript

import (
	"context"
	"testing"

	"debate-sim/server/internal/model"
)

// TestInMemoryStoreAppendAssignsSeq 验证 Append 方法为条目分配正确的 seq。
// 场景：连续追加两个条目，验证 seq 递增。
func TestInMemoryStoreAppendAssignsSeq(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	seq1, err := store.Append(ctx, "s1", &model.TranscriptEntry{Kind: model.EntryTransition})
	if err != nil {
		t.Fatalf("append entry: %v", err)
	}
	if seq1 != 1 {
		t.Fatalf("expected seq 1, got %d", seq1)
	}

	seq2, err := store.Append(ctx, "s1", &model.TranscriptEntry{Kind: model.EntrySpeech})
	if err != nil {
		t.Fatalf("append entry: %v", err)
	}
	if seq2 != 2 {
		t.Fatalf("expected seq 2, got %d", seq2)
	}
}

// TestInMemoryStoreAppendIdempotentByEntryID 验证 Append 方法对相同 EntryID 的幂等性。
// 场景：追加两个具有相同 EntryID 的条目，验证返回的 seq 相同且只存储一个条目。
func TestInMemoryStoreAppendIdempotentByEntryID(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	seq1, err := store.Append(ctx, "s1", &model.TranscriptEntry{Kind: model.EntrySpeech, EntryID: "e-1"})
	if err != nil {
		t.Fatalf("append entry: %v", err)
	}
	seq2, err := store.Append(ctx, "s1", &model.TranscriptEntry{Kind: model.EntrySpeech, EntryID: "e-1"})
	if err != nil {
		t.Fatalf("append duplicate entry: %v", err)
	}
	if seq2 != seq1 {
		t.Fatalf("expected same seq for duplicate entry_id, got %d vs %d", seq1, seq2)
	}

	entries, err := store.List(ctx, "s1")
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry stored, got %d", len(entries))
	}
}

// TestInMemoryStoreListReturnsCopy 验证 List 方法返回切片副本，防止外部修改影响内部状态。
func TestInMemoryStoreListReturnsCopy(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	if _, err := store.Append(ctx, "s1", &model.TranscriptEntry{Kind: model.EntrySpeech, Content: "hi"}); err != nil {
		t.Fatalf("append entry: %v", err)
	}

	entries, err := store.List(ctx, "s1")
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	entries[0].Content = "mutated"

	entriesAgain, err := store.List(ctx, "s1")
	if err != nil {
		t.Fatalf("list entries again: %v", err)
	}
	if entriesAgain[0].Content != "hi" {
		t.Fatalf("expected internal data unchanged, got %q", entriesAgain[0].Content)
	}
}

// TestInMemoryStoreResetDropsSession 验证 Reset 丢弃会话的条目并重置序号。
// 场景：restart 后重新追加，seq 从 1 重新开始。
func TestInMemoryStoreResetDropsSession(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	if _, err := store.Append(ctx, "s1", &model.TranscriptEntry{Kind: model.EntryTransition}); err != nil {
		t.Fatalf("append entry: %v", err)
	}
	if err := store.Reset(ctx, "s1"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	entries, err := store.List(ctx, "s1")
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries after reset, got %d", len(entries))
	}

	seq, err := store.Append(ctx, "s1", &model.TranscriptEntry{Kind: model.EntryTransition})
	if err != nil {
		t.Fatalf("append after reset: %v", err)
	}
	if seq != 1 {
		t.Fatalf("expected seq restart at 1, got %d", seq)
	}
}
