package game

// CountdownType 倒數名稱
type CountdownType string

const (
	CountdownStart CountdownType = "start" // 雙方準備後的開局倒數
	CountdownGoal  CountdownType = "goal"  // 進球後的恢復倒數
)

// Countdown 倒數設定
type Countdown struct {
	Duration   float64 // 秒（模擬時間）
	OnComplete func()
	OnTick     func(remaining float64)
}

// CountdownInfo 對外回報的倒數狀態
type CountdownInfo struct {
	Type      CountdownType `json:"type,omitempty"`
	Remaining float64       `json:"remaining"`
	Active    bool          `json:"active"`
}

type activeCountdown struct {
	name       CountdownType
	remaining  float64
	onComplete func()
	onTick     func(remaining float64)
}

// CountdownManager 以模擬時間推進的倒數管理
//
// 系統設計考量：
//
//  1. 不使用 time.Timer：
//     倒數只在 Update(dt) 時前進。對戰暫停或 tick 停擺時倒數也停，
//     測試可以直接餵 dt，不需要 sleep。
//
//  2. 同名唯一：
//     Start 同名倒數會先取消舊的，只有最後一個的回呼會觸發。
//
//  3. 可重入：
//     OnComplete 可以再呼叫 Start（包括同名）。移除時比對指標，
//     回呼中新建的同名倒數不會被誤刪。
//
// 非並發安全，由所屬 Match 的鎖保護。
type CountdownManager struct {
	countdowns []*activeCountdown // 依建立順序
}

// NewCountdownManager 創建倒數管理器
func NewCountdownManager() *CountdownManager {
	return &CountdownManager{}
}

// Start 開始倒數，取消同名的舊倒數
func (cm *CountdownManager) Start(name CountdownType, c Countdown) {
	cm.Cancel(name)
	cm.countdowns = append(cm.countdowns, &activeCountdown{
		name:       name,
		remaining:  c.Duration,
		onComplete: c.OnComplete,
		onTick:     c.OnTick,
	})
}

// Update 所有倒數減去 dt，到期的依序觸發 OnTick(0)、OnComplete 後移除
func (cm *CountdownManager) Update(dt float64) {
	pending := make([]*activeCountdown, len(cm.countdowns))
	copy(pending, cm.countdowns)

	for _, cd := range pending {
		// 前一個回呼可能已取消它
		if !cm.contains(cd) {
			continue
		}

		cd.remaining -= dt
		if cd.remaining > 0 {
			if cd.onTick != nil {
				cd.onTick(cd.remaining)
			}
			continue
		}

		cd.remaining = 0
		if cd.onTick != nil {
			cd.onTick(0)
		}
		if cd.onComplete != nil {
			cd.onComplete()
		}
		cm.remove(cd)
	}
}

// Active 第一個進行中的倒數
func (cm *CountdownManager) Active() CountdownInfo {
	if len(cm.countdowns) == 0 {
		return CountdownInfo{}
	}
	cd := cm.countdowns[0]
	return CountdownInfo{
		Type:      cd.name,
		Remaining: cd.remaining,
		Active:    true,
	}
}

// HasActive 是否有進行中的倒數
func (cm *CountdownManager) HasActive() bool {
	return len(cm.countdowns) > 0
}

// IsRunning 指定名稱的倒數是否進行中
func (cm *CountdownManager) IsRunning(name CountdownType) bool {
	for _, cd := range cm.countdowns {
		if cd.name == name {
			return true
		}
	}
	return false
}

// Cancel 取消指定名稱的倒數（不觸發回呼）
func (cm *CountdownManager) Cancel(name CountdownType) {
	kept := cm.countdowns[:0]
	for _, cd := range cm.countdowns {
		if cd.name != name {
			kept = append(kept, cd)
		}
	}
	cm.countdowns = kept
}

// CancelAll 取消所有倒數
func (cm *CountdownManager) CancelAll() {
	cm.countdowns = nil
}

func (cm *CountdownManager) contains(target *activeCountdown) bool {
	for _, cd := range cm.countdowns {
		if cd == target {
			return true
		}
	}
	return false
}

func (cm *CountdownManager) remove(target *activeCountdown) {
	for i, cd := range cm.countdowns {
		if cd == target {
			cm.countdowns = append(cm.countdowns[:i], cm.countdowns[i+1:]...)
			return
		}
	}
}
