package transcript

import (
	"context"
	"sync"

	"debate-sim/server/internal/model"
)

// InMemoryStore 是一个基于内存的 Transcript 存储实现。
type InMemoryStore struct {
	mu       sync.RWMutex
	entries  map[string][]model.TranscriptEntry
	seq      map[string]int64
	entryIDs map[string]map[string]int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		entries:  make(map[string][]model.TranscriptEntry),
		seq:      make(map[string]int64),
		entryIDs: make(map[string]map[string]int64),
	}
}

// Append 追加条目到 transcript，并为该 session 分配单调递增 seq。
// 副作用：会修改内存状态；相同 EntryID 会直接返回已分配的 seq（幂等）。
func (s *InMemoryStore) Append(_ context.Context, sessionID string, entry *model.TranscriptEntry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.EntryID != "" {
		if seen, ok := s.entryIDs[sessionID]; ok {
			if seq, exists := seen[entry.EntryID]; exists {
				return seq, nil
			}
		}
	}

	s.seq[sessionID]++
	seq := s.seq[sessionID]

	entryCopy := *entry
	entryCopy.Seq = seq
	s.entries[sessionID] = append(s.entries[sessionID], entryCopy)

	if entry.EntryID != "" {
		if s.entryIDs[sessionID] == nil {
			s.entryIDs[sessionID] = make(map[string]int64)
		}
		s.entryIDs[sessionID][entry.EntryID] = seq
	}

	return seq, nil
}

// List 返回某个 session 的全部条目（按 seq 顺序）。
// 兼容性：返回切片副本，避免调用方修改内部数据。
func (s *InMemoryStore) List(_ context.Context, sessionID string) ([]model.TranscriptEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.entries[sessionID]
	out := make([]model.TranscriptEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// Reset 丢弃某个 session 的全部条目和序号状态。
func (s *InMemoryStore) Reset(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, sessionID)
	delete(s.seq, sessionID)
	delete(s.entryIDs, sessionID)
	return nil
}
