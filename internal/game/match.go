package game

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	apperrors "github.com/koopa0/pong-match/pkg/errors"
)

// 預設倒數時間（秒）
const (
	DefaultStartCountdown = 3.0
	DefaultGoalCountdown  = 3.0
)

// Direction 球拍移動方向
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// ParseDirection 解析移動方向
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionUp, DirectionDown:
		return Direction(s), nil
	default:
		return "", apperrors.ErrInvalidDirection.WithDetails(s)
	}
}

// Options 創建對戰的參數
type Options struct {
	ID             string
	Mode           Mode
	Settings       Settings
	StartCountdown float64 // 秒，0 使用預設
	GoalCountdown  float64 // 秒，0 使用預設
	Rand           *rand.Rand
}

// Match 一場對戰（聚合根）
//
// 系統設計考量：
//
//  1. 並發控制（Mutex）：
//     tick goroutine 每 16ms 呼叫 Update，同時 HTTP/WebSocket 請求會呼叫
//     MovePaddle、SetPlayerReady 等。所有公開方法都持有同一把鎖；
//     倒數回呼在 Update 內執行，已持有鎖，不可再呼叫公開方法。
//
//  2. 狀態機：
//     等待狀態由 refreshWaitingStatus 依玩家數重新推導；
//     倒數與結束狀態只由倒數回呼、進球、勝負判定與取消改變。
//
//  3. 時間：
//     elapsed 是所有 dt 的累計（只增不減），timer 是開局後的對戰時間。
type Match struct {
	mu sync.Mutex

	id       string
	mode     Mode
	settings Settings

	slots      [2]slot
	ball       *Ball
	countdowns *CountdownManager
	ai         *AIOpponent
	rng        *rand.Rand

	status  Status
	elapsed float64
	timer   float64

	winnerID   int64
	hasWinner  bool
	cancelled  bool
	lastScorer int64
	hasScored  bool

	startCountdown float64
	goalCountdown  float64
}

// NewMatch 創建對戰
func NewMatch(opts Options) (*Match, error) {
	if !opts.Mode.Valid() {
		return nil, apperrors.ErrInvalidSettings.WithDetails("unknown mode: " + string(opts.Mode))
	}
	if err := opts.Settings.Validate(); err != nil {
		return nil, err
	}

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
	}

	m := &Match{
		id:             opts.ID,
		mode:           opts.Mode,
		settings:       opts.Settings,
		ball:           NewBall(rng),
		countdowns:     NewCountdownManager(),
		rng:            rng,
		status:         StatusWaitingForPlayers,
		startCountdown: orDefault(opts.StartCountdown, DefaultStartCountdown),
		goalCountdown:  orDefault(opts.GoalCountdown, DefaultGoalCountdown),
	}
	return m, nil
}

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

// ID 對戰 ID
func (m *Match) ID() string {
	return m.id
}

// Mode 對戰模式
func (m *Match) Mode() Mode {
	return m.mode
}

// Status 當前狀態
func (m *Match) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Settings 當前規則
func (m *Match) Settings() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

// Winner 勝者 ID；平手、取消或未結束時 ok 為 false
func (m *Match) Winner() (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.winnerID, m.hasWinner
}

// HasPlayer 玩家是否在對戰中
func (m *Match) HasPlayer(playerID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.player(playerID)
	return ok
}

// AddPlayer 加入玩家
//
// 先填入玩家一；單人模式立即合成已準備的 AI 玩家二。
// 重複加入同一玩家視為成功。
func (m *Match) AddPlayer(playerID int64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.player(playerID); ok {
		return nil
	}
	if playerID == AIPlayerID {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "reserved player id")
	}
	if m.status.Started() {
		return apperrors.ErrGameAlreadyStarted
	}

	switch {
	case !m.slots[0].occupied:
		m.slots[0].fill(NewPlayer(playerID, name))
		if m.mode == ModeSinglePlayer {
			bot := NewPlayer(AIPlayerID, "AI")
			bot.SetReady(true)
			m.slots[1].fill(bot)
			m.ai = NewAIOpponent(&m.slots[1].player, m.settings.AIDifficulty, m.rng)
		}
	case !m.slots[1].occupied:
		m.slots[1].fill(NewPlayer(playerID, name))
	default:
		return apperrors.ErrGameFull
	}

	m.refreshWaitingStatus()
	return nil
}

// SetPlayerReady 設置準備狀態
//
// 所有玩家就緒且沒有倒數時開始開局倒數；
// 開局倒數中取消準備會中止倒數。
func (m *Match) SetPlayerReady(playerID int64, ready bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.player(playerID)
	if !ok || p.IsAI() {
		return apperrors.ErrPlayerNotInGame
	}
	if m.status.Started() {
		// 開局後準備狀態已無意義
		return nil
	}

	p.SetReady(ready)

	if !ready && m.status == StatusStartCountdown {
		m.countdowns.Cancel(CountdownStart)
		m.status = StatusWaitingForReady
	}

	m.refreshWaitingStatus()

	if m.status == StatusWaitingForReady && m.allReady() && !m.countdowns.HasActive() {
		m.beginStartCountdown()
	}
	return nil
}

// MovePaddle 移動球拍
func (m *Match) MovePaddle(playerID int64, dir Direction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.player(playerID)
	if !ok || p.IsAI() {
		return apperrors.ErrPlayerNotInGame
	}
	if m.status.IsTerminal() {
		return nil
	}

	switch dir {
	case DirectionUp:
		p.MoveUp()
	case DirectionDown:
		p.MoveDown()
	default:
		return apperrors.ErrInvalidDirection.WithDetails(string(dir))
	}
	return nil
}

// ModifySettings 修改規則（只在開始前）
func (m *Match) ModifySettings(patch SettingsPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status.Started() {
		return apperrors.ErrGameAlreadyStarted.WithDetails("status=" + string(m.status))
	}

	next := m.settings.apply(patch)
	if err := next.Validate(); err != nil {
		return err
	}

	m.settings = next
	if m.ai != nil {
		m.ai.SetDifficulty(next.AIDifficulty)
	}
	return nil
}

// CancelGame 玩家離開
//
// 進行中：離開者棄權，對手分數直接設為勝利分數；
// 開始前：標記為取消，等待回收；已結束：不做任何事。
func (m *Match) CancelGame(playerID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.player(playerID); !ok || p.IsAI() {
		return apperrors.ErrPlayerNotInGame
	}

	switch {
	case m.status.IsTerminal():
		return nil
	case m.status.InPlay():
		opponent, ok := m.opponent(playerID)
		if !ok {
			m.cancel()
			return nil
		}
		opponent.Score = m.settings.WinningScore
		m.finish(opponent.ID, true)
	default:
		m.cancel()
	}
	return nil
}

// ResolveTimeout 等待逾時的裁決
//
// 恰好一名真人玩家已準備：該玩家不戰而勝；否則取消。
// 只在開始前生效，返回是否改變了狀態。
func (m *Match) ResolveTimeout() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status.Started() {
		return false
	}

	var ready []*Player
	for i := range m.slots {
		if p, ok := m.slots[i].get(); ok && p.Ready && !p.IsAI() {
			ready = append(ready, p)
		}
	}

	if len(ready) == 1 {
		ready[0].Score = m.settings.WinningScore
		m.finish(ready[0].ID, true)
		return true
	}

	m.cancel()
	return true
}

// Update 推進模擬 dt 秒
func (m *Match) Update(dt float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if dt < 0 {
		dt = 0
	}
	m.elapsed += dt

	if m.status.IsTerminal() {
		return
	}

	m.countdowns.Update(dt)

	if m.status != StatusPlaying {
		m.refreshWaitingStatus()
		return
	}

	m.step(dt)
}

// step 進行中的一個 tick：AI → 球 → 碰撞 → 進球 → 計時 → 勝負
func (m *Match) step(dt float64) {
	p1, _ := m.slots[0].get()
	p2, _ := m.slots[1].get()

	if m.ai != nil {
		m.ai.Update(dt, BallState{Position: m.ball.Position, Velocity: m.ball.Velocity}, p1.Position)
	}

	prevX := m.ball.Position.X
	m.ball.Update(dt)
	m.resolvePaddleCollisions(prevX, p1, p2)

	if m.resolveGoals(p1, p2) {
		return
	}

	m.timer += dt
	m.checkTimeLimit(p1, p2)
}

// resolvePaddleCollisions 球拍碰撞
//
// 球朝球拍移動，且本 tick 穿過球拍正面或位於球拍寬度內，
// 並且 |球 y − 球拍 y| ≤ 碰撞半徑時反彈。
func (m *Match) resolvePaddleCollisions(prevX float64, p1, p2 *Player) {
	pos, vel := m.ball.Position, m.ball.Velocity

	leftFace := LeftPaddleX + PaddleHalfWidth
	if vel.X < 0 && pos.X <= leftFace && (prevX >= leftFace || pos.X >= LeftPaddleX-PaddleHalfWidth) {
		offset := pos.Y - p1.Position
		if math.Abs(offset) <= CollisionRadius {
			m.ball.ReflectFromPaddle(offset/CollisionRadius, true)
			m.ball.Position.X = leftFace
		}
		return
	}

	rightFace := RightPaddleX - PaddleHalfWidth
	if vel.X > 0 && pos.X >= rightFace && (prevX <= rightFace || pos.X <= RightPaddleX+PaddleHalfWidth) {
		offset := pos.Y - p2.Position
		if math.Abs(offset) <= CollisionRadius {
			m.ball.ReflectFromPaddle(offset/CollisionRadius, false)
			m.ball.Position.X = rightFace
		}
	}
}

// resolveGoals 進球判定，返回是否進球
func (m *Match) resolveGoals(p1, p2 *Player) bool {
	switch {
	case m.ball.Position.X < CourtMin:
		m.onGoal(p2, p1, p2)
	case m.ball.Position.X > CourtMax:
		m.onGoal(p1, p1, p2)
	default:
		return false
	}
	return true
}

// onGoal 進球處理
func (m *Match) onGoal(scorer, p1, p2 *Player) {
	scorer.IncrementScore()
	m.lastScorer = scorer.ID
	m.hasScored = true
	m.status = StatusGoalScored

	if scorer.Score >= m.settings.WinningScore {
		m.finish(scorer.ID, true)
		return
	}

	p1.ResetPosition()
	p2.ResetPosition()
	m.ball.Reset()

	m.status = StatusGoalCountdown
	m.countdowns.Start(CountdownGoal, Countdown{
		Duration: m.goalCountdown,
		OnComplete: func() {
			if m.status == StatusGoalCountdown {
				m.status = StatusPlaying
			}
		},
	})
}

// checkTimeLimit 時間到時分數高者勝，同分為平手
func (m *Match) checkTimeLimit(p1, p2 *Player) {
	if m.settings.MaxGameTime <= 0 || m.timer < m.settings.MaxGameTime {
		return
	}

	switch {
	case p1.Score > p2.Score:
		m.finish(p1.ID, true)
	case p2.Score > p1.Score:
		m.finish(p2.ID, true)
	default:
		m.finish(0, false)
	}
}

// beginStartCountdown 開局倒數，結束時進入 PLAYING 並重設對戰時間
func (m *Match) beginStartCountdown() {
	m.status = StatusStartCountdown
	m.countdowns.Start(CountdownStart, Countdown{
		Duration: m.startCountdown,
		OnComplete: func() {
			if m.status != StatusStartCountdown {
				return
			}
			m.status = StatusPlaying
			m.timer = 0
		},
	})
}

// refreshWaitingStatus 依玩家數推導等待狀態，其他狀態不動
func (m *Match) refreshWaitingStatus() {
	if !m.status.IsWaiting() {
		return
	}
	if m.slots[0].occupied && m.slots[1].occupied {
		m.status = StatusWaitingForReady
	} else {
		m.status = StatusWaitingForPlayers
	}
}

func (m *Match) finish(winnerID int64, hasWinner bool) {
	m.countdowns.CancelAll()
	m.status = StatusGameOver
	m.winnerID = winnerID
	m.hasWinner = hasWinner
}

func (m *Match) cancel() {
	m.countdowns.CancelAll()
	m.status = StatusCancelled
	m.cancelled = true
}

func (m *Match) allReady() bool {
	for i := range m.slots {
		p, ok := m.slots[i].get()
		if !ok || !p.Ready {
			return false
		}
	}
	return true
}

func (m *Match) player(playerID int64) (*Player, bool) {
	for i := range m.slots {
		if m.slots[i].holds(playerID) {
			return &m.slots[i].player, true
		}
	}
	return nil, false
}

func (m *Match) opponent(playerID int64) (*Player, bool) {
	for i := range m.slots {
		if m.slots[i].occupied && !m.slots[i].holds(playerID) {
			return &m.slots[i].player, true
		}
	}
	return nil, false
}

// State 唯讀快照
func (m *Match) State() GameState {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := GameState{
		MatchID: m.id,
		Mode:    m.mode,
		Status:  m.status,
		Timer:   m.timer,
		Player1: snapshotPlayer(&m.slots[0]),
		Player2: snapshotPlayer(&m.slots[1]),
		Ball: BallSnapshot{
			Position: m.ball.Position,
			Velocity: m.ball.Velocity,
		},
		AllReady:  m.allReady(),
		Settings:  m.settings,
		GameOver:  m.status == StatusGameOver,
		Cancelled: m.cancelled,
		Countdown: m.countdowns.Active(),
	}

	if m.hasWinner {
		winner := m.winnerID
		state.WinnerID = &winner
	}
	if m.hasScored {
		scorer := m.lastScorer
		state.LastScorer = &scorer
	}
	return state
}

// Elapsed 累計模擬時間（只增不減）
func (m *Match) Elapsed() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.elapsed
}
