package game

// Status 對戰狀態
//
// 有限狀態機：
//
//	WAITING_FOR_PLAYERS → WAITING_FOR_READY → START_COUNTDOWN → PLAYING → GAME_OVER
//	                                                  PLAYING ⇄ GOAL_SCORED → GOAL_COUNTDOWN
//
// 狀態轉換規則：
//   - 開始前任何狀態 → CANCELLED：玩家離開 / 等待逾時
//   - 進行中 → GAME_OVER：達到勝利分數、時間到、或一方棄權
type Status string

const (
	StatusWaitingForPlayers Status = "WAITING_FOR_PLAYERS"
	StatusWaitingForReady   Status = "WAITING_FOR_READY"
	StatusStartCountdown    Status = "START_COUNTDOWN"
	StatusPlaying           Status = "PLAYING"
	StatusGoalScored        Status = "GOAL_SCORED"
	StatusGoalCountdown     Status = "GOAL_COUNTDOWN"
	StatusGameOver          Status = "GAME_OVER"
	StatusCancelled         Status = "CANCELLED"
)

// IsWaiting 等待玩家或等待準備
func (s Status) IsWaiting() bool {
	return s == StatusWaitingForPlayers || s == StatusWaitingForReady
}

// InPlay 對戰進行中（包括進球後的倒數）
func (s Status) InPlay() bool {
	return s == StatusPlaying || s == StatusGoalScored || s == StatusGoalCountdown
}

// IsTerminal 已結束
func (s Status) IsTerminal() bool {
	return s == StatusGameOver || s == StatusCancelled
}

// Started 對戰已開始或已結束，規則不可再修改
func (s Status) Started() bool {
	return s.InPlay() || s.IsTerminal()
}

// PlayerState 玩家快照
type PlayerState struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Position float64 `json:"position"`
	Score    int     `json:"score"`
	Ready    bool    `json:"ready"`
	IsAI     bool    `json:"is_ai"`
}

// BallSnapshot 球快照
type BallSnapshot struct {
	Position Vec2 `json:"position"`
	Velocity Vec2 `json:"velocity"`
}

// GameState 對戰的唯讀快照，外部觀察對戰的唯一方式
type GameState struct {
	MatchID    string        `json:"match_id"`
	Mode       Mode          `json:"mode"`
	Status     Status        `json:"status"`
	Timer      float64       `json:"timer"`
	Player1    *PlayerState  `json:"player1,omitempty"`
	Player2    *PlayerState  `json:"player2,omitempty"`
	Ball       BallSnapshot  `json:"ball"`
	AllReady   bool          `json:"all_ready"`
	Settings   Settings      `json:"settings"`
	GameOver   bool          `json:"game_over"`
	Cancelled  bool          `json:"cancelled"`
	WinnerID   *int64        `json:"winner_id,omitempty"`
	LastScorer *int64        `json:"last_scorer,omitempty"`
	Countdown  CountdownInfo `json:"countdown"`
}

func snapshotPlayer(s *slot) *PlayerState {
	p, ok := s.get()
	if !ok {
		return nil
	}
	return &PlayerState{
		ID:       p.ID,
		Name:     p.Name,
		Position: p.Position,
		Score:    p.Score,
		Ready:    p.Ready,
		IsAI:     p.IsAI(),
	}
}
