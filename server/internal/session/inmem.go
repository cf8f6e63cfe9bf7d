package session

import (
	"context"
	"errors"
	"sync"

	"debate-sim/server/internal/model"
)

var ErrNotFound = errors.New("session not found")

// InMemoryStore 是一个基于内存的 Session 存储实现。
type InMemoryStore struct {
	mu   sync.RWMutex
	data map[string]*model.DebateState
}

func NewInMemoryStore() *InMemoryStore {
	// 内存 store：实现简单、调试方便。重启即丢数据。
	return &InMemoryStore{data: make(map[string]*model.DebateState)}
}

// Get 根据 SessionID 获取 DebateState。
func (s *InMemoryStore) Get(_ context.Context, id string) (*model.DebateState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.data[id]
	if !ok {
		return nil, ErrNotFound
	}

	return state, nil
}

// Save 保存或更新 DebateState。
func (s *InMemoryStore) Save(_ context.Context, state *model.DebateState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[state.SessionID] = state
	return nil
}

// Delete 删除指定 Session。
func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, id)
	return nil
}
