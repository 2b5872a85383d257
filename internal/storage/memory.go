package storage

import (
	"context"
	"sync"
)

// Memory 內存存儲實現
//
// 用於本地執行與測試：沒有設定 PostgreSQL 時由 cmd/server 使用。
type Memory struct {
	mu      sync.RWMutex
	results map[string]Result
	names   map[int64]string
}

// NewMemory 創建內存存儲
func NewMemory() *Memory {
	return &Memory{
		results: make(map[string]Result),
		names:   make(map[int64]string),
	}
}

// SaveResult 保存對戰結果
func (m *Memory) SaveResult(_ context.Context, result Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.results[result.MatchID] = result
	return nil
}

// GetResult 讀取對戰結果
func (m *Memory) GetResult(_ context.Context, matchID string) (*Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result, ok := m.results[matchID]
	if !ok {
		return nil, ErrNotFound
	}
	return &result, nil
}

// Results 所有已保存的結果數量
func (m *Memory) Results() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.results)
}

// SetDisplayName 設置玩家名稱
func (m *Memory) SetDisplayName(userID int64, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names[userID] = name
}

// DisplayName 查詢玩家名稱
func (m *Memory) DisplayName(_ context.Context, userID int64) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name, ok := m.names[userID]
	if !ok {
		return "", ErrNotFound
	}
	return name, nil
}
