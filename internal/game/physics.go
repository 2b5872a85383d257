// Package game 實現單場 Pong 對戰的權威模擬
//
// 系統設計問題：
//
//	伺服器如何以固定節拍推進球與球拍的物理，並讓 AI 的預測與真實物理永不分歧？
//
// 核心挑戰：
//  1. 決定性：同樣的 dt 序列必須得到同樣的結果（測試不需要 sleep）
//  2. 速度上限：反彈加速不能無限累積
//  3. 共用常數：AI 前瞻模擬與權威模擬必須使用同一套積分與牆面反彈
//
// 設計方案：
//
//	✅ 所有時間以模擬時間（dt）推進，不使用計時器
//	✅ Step 為唯一的積分函式，Ball 與 AIOpponent 都呼叫它
//	✅ 反彈時水平速度封頂，垂直速度夾在固定範圍
package game

import "math"

// 球場座標系：[0,100] × [0,100]，x 向右，y 向下
const (
	CourtMin    = 0.0
	CourtMax    = 100.0
	CourtCenter = 50.0

	// ReferenceFPS 速度單位是「每個 60Hz 幀移動的距離」
	ReferenceFPS = 60.0
	// SimStep AI 前瞻模擬使用的固定步長（秒）
	SimStep = 1.0 / ReferenceFPS
)

// 球的物理參數
const (
	BallInitialSpeed   = 0.6
	MaxLaunchAngle     = math.Pi / 6
	AccelerationFactor = 1.05
	MaxSpeedMultiplier = 2.5 // 水平速度上限 = BallInitialSpeed × MaxSpeedMultiplier
	AngleGain          = 0.9
	VerticalCarry      = 0.5 // 反彈時保留的原垂直速度比例
	MaxVerticalSpeed   = 1.0
	DragThreshold      = 1.2
	DragFactor         = 0.995
)

// 球拍參數
//
// 球拍中心的移動範圍是 [10,90]，半高 10，
// 所以球拍邊緣永遠在球場內。碰撞半徑固定，不隨難度縮放。
const (
	PaddleMin       = 10.0
	PaddleMax       = 90.0
	PaddleStep      = 1.0
	CollisionRadius = 10.0
	LeftPaddleX     = 3.0
	RightPaddleX    = 97.0
	PaddleHalfWidth = 1.5
)

// Vec2 二維向量
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Length 向量長度
func (v Vec2) Length() float64 {
	return math.Hypot(v.X, v.Y)
}

// MaxHorizontalSpeed 反彈後的水平速度上限
func MaxHorizontalSpeed() float64 {
	return BallInitialSpeed * MaxSpeedMultiplier
}

// MaxBallSpeed 反彈後可能出現的最大速率
func MaxBallSpeed() float64 {
	return math.Hypot(MaxHorizontalSpeed(), MaxVerticalSpeed)
}

// Step 將球推進 dt 秒
//
// 權威模擬與 AI 預測共用此函式：
//  1. 以 dt×60 的幀比例積分位置
//  2. 速率超過門檻時套用阻力（只會減速）
//  3. 上下牆反彈並夾住位置
func Step(pos, vel Vec2, dt float64) (Vec2, Vec2) {
	scale := dt * ReferenceFPS

	pos.X += vel.X * scale
	pos.Y += vel.Y * scale

	if vel.Length() > DragThreshold {
		factor := math.Pow(DragFactor, scale)
		vel.X *= factor
		vel.Y *= factor
	}

	return bounceWalls(pos, vel)
}

// bounceWalls 上下牆反彈
func bounceWalls(pos, vel Vec2) (Vec2, Vec2) {
	if pos.Y <= CourtMin {
		pos.Y = CourtMin
		vel.Y = math.Abs(vel.Y)
	} else if pos.Y >= CourtMax {
		pos.Y = CourtMax
		vel.Y = -math.Abs(vel.Y)
	}
	return pos, vel
}

// clamp 將 v 夾在 [lo, hi]
func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
