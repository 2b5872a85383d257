package game

import (
	"math"
	"math/rand/v2"
)

// Tier AI 難度等級
type Tier int

const (
	TierEasy Tier = iota
	TierMedium
	TierHard
)

// String 等級名稱
func (t Tier) String() string {
	switch t {
	case TierEasy:
		return "easy"
	case TierMedium:
		return "medium"
	case TierHard:
		return "hard"
	default:
		return "unknown"
	}
}

// TierFor 將 [0,1] 的難度值映射為等級
func TierFor(difficulty float64) Tier {
	switch {
	case difficulty < 0.5:
		return TierEasy
	case difficulty < 0.8:
		return TierMedium
	default:
		return TierHard
	}
}

// tierParams 每個等級的反應參數
type tierParams struct {
	minInterval     float64 // 方向翻轉後最短的重新決策間隔（秒）
	errorRange      float64 // 隨機瞄準誤差 ±
	strategicOffset float64 // 策略偏移量
}

var tierTable = map[Tier]tierParams{
	TierEasy:   {minInterval: 0.6, errorRange: 12, strategicOffset: 0},
	TierMedium: {minInterval: 0.4, errorRange: 6, strategicOffset: 3},
	TierHard:   {minInterval: 0.25, errorRange: 2, strategicOffset: 6},
}

const (
	aiNominalInterval  = 1.0 // 固定的重新決策週期（秒）
	aiPredictionBudget = 3.0 // 前瞻模擬最多推進的時間（秒）
	aiTolerance        = 1.0 // 與目標距離在此範圍內就不再移動
	aiDefensiveBias    = 0.3
)

// BallState 球的唯讀狀態
type BallState struct {
	Position Vec2
	Velocity Vec2
}

// AIOpponent 控制右側球拍的 AI
//
// 系統設計考量：
//
//  1. 為什麼不每個 tick 都重新計算？
//     每 tick 預測落點的 AI 反應是瞬間的（不像人），也浪費運算。
//     改為決策計時器：固定每秒一次，或球剛轉向 AI 且距上次決策已超過最短間隔時。
//
//  2. 難度如何體現？
//     - 最短間隔：越難越短（反應越快）
//     - 隨機誤差：越簡單越大（瞄不準）
//     - 策略偏移：困難等級刻意用球拍邊緣擊球，把球打向對手遠端
//
//  3. 預測與物理一致：
//     前瞻模擬呼叫同一個 Step，步長固定 1/60 秒。
//
// 兩次決策之間，每 tick 朝目標移動一步。
type AIOpponent struct {
	player     *Player
	difficulty float64
	tier       Tier
	rng        *rand.Rand

	target        float64
	sinceDecision float64
	decided       bool

	wasApproaching bool
	pendingFlip    bool
}

// NewAIOpponent 創建 AI
func NewAIOpponent(player *Player, difficulty float64, rng *rand.Rand) *AIOpponent {
	return &AIOpponent{
		player:     player,
		difficulty: difficulty,
		tier:       TierFor(difficulty),
		rng:        rng,
		target:     CourtCenter,
	}
}

// SetDifficulty 調整難度（設定變更時由 Match 呼叫）
func (ai *AIOpponent) SetDifficulty(difficulty float64) {
	ai.difficulty = difficulty
	ai.tier = TierFor(difficulty)
}

// Difficulty 當前難度值
func (ai *AIOpponent) Difficulty() float64 {
	return ai.difficulty
}

// Tier 當前等級
func (ai *AIOpponent) Tier() Tier {
	return ai.tier
}

// Target 最近一次決策的目標位置
func (ai *AIOpponent) Target() float64 {
	return ai.target
}

// Update 推進 AI 一個 tick
func (ai *AIOpponent) Update(dt float64, ball BallState, opponentY float64) {
	ai.sinceDecision += dt

	approaching := ball.Velocity.X > 0
	if approaching && !ai.wasApproaching {
		ai.pendingFlip = true
	}
	if !approaching {
		ai.pendingFlip = false
	}
	ai.wasApproaching = approaching

	params := tierTable[ai.tier]
	due := !ai.decided ||
		ai.sinceDecision >= aiNominalInterval ||
		(ai.pendingFlip && ai.sinceDecision >= params.minInterval)

	if due {
		ai.target = ai.decide(ball, opponentY, approaching)
		ai.sinceDecision = 0
		ai.decided = true
		ai.pendingFlip = false
	}

	ai.moveTowardTarget()
}

// decide 計算新的目標位置
func (ai *AIOpponent) decide(ball BallState, opponentY float64, approaching bool) float64 {
	if !approaching {
		if ai.tier == TierHard {
			// 站在對手所在半場的另一側
			return clamp(CourtCenter+(CourtCenter-opponentY)*aiDefensiveBias, PaddleMin, PaddleMax)
		}
		return CourtCenter
	}

	params := tierTable[ai.tier]
	predicted := PredictInterceptY(ball, RightPaddleX-PaddleHalfWidth, aiPredictionBudget)
	offset := ai.strategicOffset(params, opponentY)
	aimError := (ai.rng.Float64()*2 - 1) * params.errorRange

	return clamp(predicted+offset+aimError, PaddleMin, PaddleMax)
}

// strategicOffset 球拍中心相對預測落點的偏移
//
// 接觸偏移 = 球 y − 球拍 y。要把球打向下方（y 大），球拍要站在落點上方。
func (ai *AIOpponent) strategicOffset(params tierParams, opponentY float64) float64 {
	switch ai.tier {
	case TierHard:
		direction := math.Copysign(1, CourtCenter-opponentY)
		if opponentY == CourtCenter {
			direction = ai.randomSign()
		}
		// 對手在上半場 → 球打向下方 → 球拍站在落點上方
		return -direction * params.strategicOffset
	case TierMedium:
		return ai.randomSign() * params.strategicOffset
	default:
		return 0
	}
}

func (ai *AIOpponent) randomSign() float64 {
	if ai.rng.IntN(2) == 0 {
		return -1
	}
	return 1
}

// moveTowardTarget 朝目標移動一步
func (ai *AIOpponent) moveTowardTarget() {
	diff := ai.target - ai.player.Position
	if math.Abs(diff) <= aiTolerance {
		return
	}
	if diff < 0 {
		ai.player.MoveUp()
	} else {
		ai.player.MoveDown()
	}
}

// PredictInterceptY 前瞻模擬球到達 planeX 時的 y
//
// 只支援向右移動的球；超過時間預算時返回最後的位置。
func PredictInterceptY(ball BallState, planeX, budget float64) float64 {
	pos, vel := ball.Position, ball.Velocity
	if vel.X <= 0 {
		return CourtCenter
	}

	for elapsed := 0.0; elapsed < budget && pos.X < planeX; elapsed += SimStep {
		pos, vel = Step(pos, vel, SimStep)
	}
	return pos.Y
}
