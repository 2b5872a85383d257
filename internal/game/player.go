package game

// AIPlayerID 單人模式中 AI 玩家的 ID
const AIPlayerID int64 = -1

// Player 球拍與分數
//
// 只由所屬 Match 修改，所有方法都不會失敗。
type Player struct {
	ID       int64
	Name     string
	Position float64
	Score    int
	Ready    bool
}

// NewPlayer 創建位於中心的玩家
func NewPlayer(id int64, name string) *Player {
	return &Player{
		ID:       id,
		Name:     name,
		Position: CourtCenter,
	}
}

// MoveUp 向上移動一步，到達邊界時不動
func (p *Player) MoveUp() {
	p.Position = clamp(p.Position-PaddleStep, PaddleMin, PaddleMax)
}

// MoveDown 向下移動一步，到達邊界時不動
func (p *Player) MoveDown() {
	p.Position = clamp(p.Position+PaddleStep, PaddleMin, PaddleMax)
}

// SetReady 設置準備狀態
func (p *Player) SetReady(ready bool) {
	p.Ready = ready
}

// IncrementScore 得分
func (p *Player) IncrementScore() {
	p.Score++
}

// ResetPosition 進球後回到中心
func (p *Player) ResetPosition() {
	p.Position = CourtCenter
}

// IsAI 是否為 AI 控制
func (p *Player) IsAI() bool {
	return p.ID == AIPlayerID
}

// slot 玩家欄位：空或已佔用
//
// 用明確的欄位型別取代 nil 指標，「只有一名玩家」的狀態必須顯式處理。
type slot struct {
	player   Player
	occupied bool
}

func (s *slot) get() (*Player, bool) {
	if !s.occupied {
		return nil, false
	}
	return &s.player, true
}

func (s *slot) fill(p *Player) {
	s.player = *p
	s.occupied = true
}

func (s *slot) holds(id int64) bool {
	return s.occupied && s.player.ID == id
}
