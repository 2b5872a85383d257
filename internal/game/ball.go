package game

import (
	"math"
	"math/rand/v2"
)

// Ball 球
type Ball struct {
	Position Vec2
	Velocity Vec2

	rng *rand.Rand
}

// NewBall 創建位於中心、已發球的球
func NewBall(rng *rand.Rand) *Ball {
	b := &Ball{rng: rng}
	b.Reset()
	return b
}

// Update 推進 dt 秒
func (b *Ball) Update(dt float64) {
	b.Position, b.Velocity = Step(b.Position, b.Velocity, dt)
}

// Speed 當前速率
func (b *Ball) Speed() float64 {
	return b.Velocity.Length()
}

// ReflectFromPaddle 球拍反彈
//
// contactOffset 是接觸點相對球拍中心的正規化距離，[-1,1]。
// 水平速度 = min(上限, 速率 × 加速係數)，方向朝向對手；
// 垂直速度 = 原垂直速度的一部分 + 偏移 × 角度增益，夾在 ±MaxVerticalSpeed。
func (b *Ball) ReflectFromPaddle(contactOffset float64, isLeftSide bool) {
	offset := clamp(contactOffset, -1, 1)

	vx := math.Min(MaxHorizontalSpeed(), b.Speed()*AccelerationFactor)
	if !isLeftSide {
		vx = -vx
	}

	vy := b.Velocity.Y*VerticalCarry + offset*AngleGain

	b.Velocity = Vec2{
		X: vx,
		Y: clamp(vy, -MaxVerticalSpeed, MaxVerticalSpeed),
	}
}

// Reset 回到中心並隨機發球
func (b *Ball) Reset() {
	b.Position = Vec2{X: CourtCenter, Y: CourtCenter}

	angle := (b.rng.Float64()*2 - 1) * MaxLaunchAngle
	direction := 1.0
	if b.rng.IntN(2) == 0 {
		direction = -1.0
	}

	b.Velocity = Vec2{
		X: direction * BallInitialSpeed * math.Cos(angle),
		Y: BallInitialSpeed * math.Sin(angle),
	}
}
