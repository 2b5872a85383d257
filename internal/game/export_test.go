package game

// PlaceBall 測試用：直接設置球的位置與速度
func (m *Match) PlaceBall(pos, vel Vec2) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ball.Position = pos
	m.ball.Velocity = vel
}

// SetPaddle 測試用：直接設置球拍位置
func (m *Match) SetPaddle(playerID int64, position float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.player(playerID); ok {
		p.Position = position
	}
}
