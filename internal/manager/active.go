package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koopa0/pong-match/internal/game"
	"github.com/koopa0/pong-match/internal/storage"
)

// 結束原因
const (
	ReasonWaitingTimeout = "waiting_timeout"
	ReasonPlayerLeft     = "player_left"
	ReasonForfeit        = "forfeit"
	ReasonDeleted        = "deleted"
	ReasonReplaced       = "replaced"
	ReasonShutdown       = "server_shutdown"
	ReasonTickPanic      = "tick_panic"
)

// ActiveMatch 單一對戰的 tick 驅動
//
// 系統設計考量：
//
//  1. 每場對戰一個 goroutine：
//     對戰之間沒有共享狀態，互不阻塞；一場對戰的 tick 出錯不影響其他對戰。
//
//  2. dt 以牆鐘計算並限制上限：
//     GC 停頓或排程延遲後不會一次推進太多，球不會直接穿牆。
//
//  3. 結束流程只執行一次（finalized 旗標）：
//     相鄰 tick 可能同時滿足多個結束條件，或 tick 與 DeleteMatch 同時觸發。
//
//  4. 持久化先於回呼：
//     結束流程在獨立 goroutine 中先 SaveResult 再呼叫回呼，
//     不持有對戰的鎖，也不阻塞 tick。
type ActiveMatch struct {
	match     *game.Match
	createdAt time.Time
	cfg       Config
	logger    *slog.Logger

	store       storage.ResultStore
	onFinalized func(am *ActiveMatch, result storage.Result)
	onComplete  func(result storage.Result)

	stopCh   chan struct{}
	stopOnce sync.Once
	loopDone chan struct{}

	running   atomic.Bool
	finalized atomic.Bool
	finalDone chan struct{}

	reasonMu sync.Mutex
	reason   string

	tickHook func(*game.Match)
}

func newActiveMatch(match *game.Match, cfg Config, store storage.ResultStore, logger *slog.Logger) *ActiveMatch {
	return &ActiveMatch{
		match:     match,
		createdAt: time.Now(),
		cfg:       cfg,
		logger:    logger.With("match_id", match.ID()),
		store:     store,
		stopCh:    make(chan struct{}),
		loopDone:  make(chan struct{}),
		finalDone: make(chan struct{}),
	}
}

// Match 被驅動的對戰
func (am *ActiveMatch) Match() *game.Match {
	return am.match
}

// Running tick 迴圈是否仍在執行
func (am *ActiveMatch) Running() bool {
	return am.running.Load()
}

// Finalized 結束流程是否已觸發
func (am *ActiveMatch) Finalized() bool {
	return am.finalized.Load()
}

// start 啟動 tick 迴圈
func (am *ActiveMatch) start() {
	am.running.Store(true)
	go am.loop()
}

func (am *ActiveMatch) loop() {
	defer close(am.loopDone)
	defer am.running.Store(false)

	ticker := time.NewTicker(am.cfg.TickInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-am.stopCh:
			return
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			if am.tick(dt) {
				return
			}
		}
	}
}

// tick 執行一次，返回 true 表示對戰已結束、迴圈應停止
func (am *ActiveMatch) tick(dt time.Duration) (done bool) {
	defer func() {
		if r := recover(); r != nil {
			am.logger.Error("對戰 tick 發生 panic，強制結束", "panic", r)
			am.finalize(storage.OutcomeError, fmt.Sprintf("%s: %v", ReasonTickPanic, r))
			done = true
		}
	}()

	switch am.match.Status() {
	case game.StatusCancelled:
		am.finalize(storage.OutcomeCancelled, am.takeReason(ReasonPlayerLeft))
		return true
	case game.StatusGameOver:
		am.finalize(storage.OutcomeCompleted, am.takeReason(""))
		return true
	}

	if dt > am.cfg.MaxTickDelta {
		dt = am.cfg.MaxTickDelta
	}
	if am.tickHook != nil {
		am.tickHook(am.match)
	}
	am.match.Update(dt.Seconds())

	if am.match.Status().IsWaiting() && time.Since(am.createdAt) >= am.cfg.WaitingTimeout {
		am.logger.Info("等待逾時")
		am.match.ResolveTimeout()
		am.finalize(storage.OutcomeTimeout, ReasonWaitingTimeout)
		return true
	}

	return false
}

// Stop 同步停止 tick 迴圈（不觸發結束流程）
func (am *ActiveMatch) Stop() {
	am.stopOnce.Do(func() {
		close(am.stopCh)
	})
	<-am.loopDone
}

// terminate 停止迴圈並以當前狀態結束
//
// 已經 GAME_OVER 的對戰仍記為正常結束，其餘記為取消。
func (am *ActiveMatch) terminate(reason string) {
	am.Stop()

	if am.match.Status() == game.StatusGameOver {
		am.finalize(storage.OutcomeCompleted, am.takeReason(""))
		return
	}
	am.finalize(storage.OutcomeCancelled, reason)
}

// Wait 等待結束流程（持久化與回呼）完成
func (am *ActiveMatch) Wait(ctx context.Context) error {
	select {
	case <-am.finalDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// finalize 結束流程，只執行一次
func (am *ActiveMatch) finalize(outcome storage.Outcome, reason string) {
	if !am.finalized.CompareAndSwap(false, true) {
		return
	}

	result := am.buildResult(outcome, reason)
	am.logger.Info("對戰結束",
		"outcome", result.Outcome,
		"reason", result.Reason,
		"score", fmt.Sprintf("%d:%d", result.Player1Score, result.Player2Score))

	go func() {
		defer close(am.finalDone)

		ctx, cancel := context.WithTimeout(context.Background(), am.cfg.PersistTimeout)
		defer cancel()

		if err := am.store.SaveResult(ctx, result); err != nil {
			am.logger.Error("保存對戰結果失敗", "error", err)
		}

		if am.onFinalized != nil {
			am.onFinalized(am, result)
		}
	}()
}

func (am *ActiveMatch) buildResult(outcome storage.Outcome, reason string) storage.Result {
	state := am.match.State()

	result := storage.Result{
		MatchID:    state.MatchID,
		Mode:       string(state.Mode),
		Outcome:    outcome,
		Reason:     reason,
		WinnerID:   state.WinnerID,
		Duration:   time.Since(am.createdAt),
		FinishedAt: time.Now(),
	}
	if p := state.Player1; p != nil {
		id := p.ID
		result.Player1ID = &id
		result.Player1Score = p.Score
	}
	if p := state.Player2; p != nil {
		id := p.ID
		result.Player2ID = &id
		result.Player2Score = p.Score
	}
	return result
}

// noteReason 記錄即將結束的原因（例如玩家離開），結束時使用
func (am *ActiveMatch) noteReason(reason string) {
	am.reasonMu.Lock()
	defer am.reasonMu.Unlock()
	am.reason = reason
}

func (am *ActiveMatch) takeReason(fallback string) string {
	am.reasonMu.Lock()
	defer am.reasonMu.Unlock()
	if am.reason == "" {
		return fallback
	}
	return am.reason
}
