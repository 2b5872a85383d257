package manager

import "github.com/koopa0/pong-match/internal/game"

// SetTickHook 設定之後創建的對戰在每次 Update 前呼叫的函數
func (m *Manager) SetTickHook(fn func(*game.Match)) {
	m.tickHook = fn
}

// Active 獲取對戰的 tick 驅動
func (m *Manager) Active(matchID string) (*ActiveMatch, error) {
	return m.getActive(matchID)
}
