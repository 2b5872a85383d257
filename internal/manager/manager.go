// Package manager 管理所有進行中的對戰
//
// 系統設計問題：
//
//	如何讓大量各自以 60 FPS 推進的對戰，安全地接受並發的玩家指令？
//
// 設計方案：
//   - 每場對戰一個 goroutine（ActiveMatch），互不共享模擬狀態
//   - 每場對戰一把鎖（game.Match 內部），tick 與指令互斥
//   - 註冊表一把讀寫鎖，只保護 id → ActiveMatch 的映射
//   - 註冊表的鎖從不在呼叫對戰方法或 I/O 時持有
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/koopa0/pong-match/internal/game"
	"github.com/koopa0/pong-match/internal/notify"
	"github.com/koopa0/pong-match/internal/storage"
	apperrors "github.com/koopa0/pong-match/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Config 對戰排程設定
type Config struct {
	TickInterval   time.Duration // tick 間隔
	MaxTickDelta   time.Duration // 單次 tick 的 dt 上限
	WaitingTimeout time.Duration // 開始前的最長等待時間
	PersistTimeout time.Duration // 結束時保存結果的逾時
	NotifyTimeout  time.Duration // 發布結束通知的逾時
	StartCountdown float64       // 開局倒數（秒），0 使用預設
	GoalCountdown  float64       // 進球倒數（秒），0 使用預設
	Defaults       game.Settings // 未指定規則時使用
}

// DefaultConfig 預設設定
func DefaultConfig() Config {
	return Config{
		TickInterval:   16 * time.Millisecond,
		MaxTickDelta:   100 * time.Millisecond,
		WaitingTimeout: 60 * time.Second,
		PersistTimeout: 5 * time.Second,
		NotifyTimeout:  5 * time.Second,
		StartCountdown: game.DefaultStartCountdown,
		GoalCountdown:  game.DefaultGoalCountdown,
		Defaults:       game.DefaultSettings(),
	}
}

// withDefaults 補齊未設定的欄位
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.TickInterval <= 0 {
		c.TickInterval = def.TickInterval
	}
	if c.MaxTickDelta <= 0 {
		c.MaxTickDelta = def.MaxTickDelta
	}
	if c.WaitingTimeout <= 0 {
		c.WaitingTimeout = def.WaitingTimeout
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = def.PersistTimeout
	}
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = def.NotifyTimeout
	}
	if c.Defaults == (game.Settings{}) {
		c.Defaults = def.Defaults
	}
	return c
}

// CreateOptions 創建對戰的參數
type CreateOptions struct {
	ID         string         // 空字串時自動產生
	Mode       game.Mode      // 空字串時為 multiplayer
	Settings   *game.Settings // nil 時使用預設規則
	OnComplete func(result storage.Result)
}

// Manager 對戰註冊表
type Manager struct {
	matches map[string]*ActiveMatch
	mu      sync.RWMutex

	cfg      Config
	store    storage.ResultStore
	users    storage.UserDirectory
	notifier notify.Notifier
	logger   *slog.Logger

	tickHook func(*game.Match) // 測試用，每次 Update 前呼叫
}

// MaxMatchIDLength 對戰 ID 長度上限（與 match_results.match_id 一致）
const MaxMatchIDLength = 64

// NewManager 創建對戰管理器
func NewManager(cfg Config, store storage.ResultStore, users storage.UserDirectory, notifier notify.Notifier, logger *slog.Logger) *Manager {
	return &Manager{
		matches:  make(map[string]*ActiveMatch),
		cfg:      cfg.withDefaults(),
		store:    store,
		users:    users,
		notifier: notifier,
		logger:   logger,
	}
}

// CreateMatch 創建對戰並啟動 tick
//
// 指定的 ID 已存在時，舊對戰先停止並以取消結束，再放入新的。
func (m *Manager) CreateMatch(ctx context.Context, opts CreateOptions) (string, error) {
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	if len(id) > MaxMatchIDLength {
		return "", apperrors.New(apperrors.ErrCodeInvalidInput, "match id too long").
			WithDetails(fmt.Sprintf("max %d bytes", MaxMatchIDLength))
	}
	mode := opts.Mode
	if mode == "" {
		mode = game.ModeMultiplayer
	}
	settings := m.cfg.Defaults
	if opts.Settings != nil {
		settings = *opts.Settings
	}

	match, err := game.NewMatch(game.Options{
		ID:             id,
		Mode:           mode,
		Settings:       settings,
		StartCountdown: m.cfg.StartCountdown,
		GoalCountdown:  m.cfg.GoalCountdown,
	})
	if err != nil {
		return "", err
	}

	am := newActiveMatch(match, m.cfg, m.store, m.logger)
	am.onFinalized = m.handleFinalized
	am.onComplete = opts.OnComplete
	am.tickHook = m.tickHook

	// 同一 ID 不會同時有兩個 tick 迴圈：先停舊的，再啟動新的
	m.mu.RLock()
	old := m.matches[id]
	m.mu.RUnlock()
	if old != nil {
		old.Stop()
	}

	// 先啟動再放入註冊表，註冊表中的對戰都可以被 Stop
	am.start()

	m.mu.Lock()
	displaced := m.matches[id]
	m.matches[id] = am
	m.mu.Unlock()

	if old != nil {
		m.logger.WarnContext(ctx, "對戰 ID 已存在，取代舊對戰", "match_id", id)
		old.terminate(ReasonReplaced)
	}
	// 並發創建同一 ID 時，被覆蓋的另一場也要結束
	if displaced != nil && displaced != old {
		displaced.terminate(ReasonReplaced)
	}

	m.logger.InfoContext(ctx, "對戰已創建",
		"match_id", id,
		"mode", mode,
		"winning_score", settings.WinningScore,
		"max_game_time", settings.MaxGameTime)

	return id, nil
}

// getActive 查詢對戰
func (m *Manager) getActive(matchID string) (*ActiveMatch, error) {
	m.mu.RLock()
	am, exists := m.matches[matchID]
	m.mu.RUnlock()

	if !exists {
		return nil, apperrors.ErrMatchNotFound.WithDetails(matchID)
	}
	return am, nil
}

// GetMatch 獲取對戰
func (m *Manager) GetMatch(matchID string) (*game.Match, error) {
	am, err := m.getActive(matchID)
	if err != nil {
		return nil, err
	}
	return am.match, nil
}

// GetMatchState 獲取對戰快照
func (m *Manager) GetMatchState(matchID string) (game.GameState, error) {
	am, err := m.getActive(matchID)
	if err != nil {
		return game.GameState{}, err
	}
	return am.match.State(), nil
}

// JoinMatch 加入對戰
//
// 顯示名稱從 UserDirectory 查詢，查不到時使用預設名稱。
func (m *Manager) JoinMatch(ctx context.Context, matchID string, playerID int64) error {
	am, err := m.getActive(matchID)
	if err != nil {
		return err
	}

	name := m.displayName(ctx, playerID)
	if err := am.match.AddPlayer(playerID, name); err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "玩家加入對戰",
		"match_id", matchID,
		"player_id", playerID,
		"player_name", name)
	return nil
}

func (m *Manager) displayName(ctx context.Context, playerID int64) string {
	fallback := fmt.Sprintf("Player %d", playerID)
	if m.users == nil {
		return fallback
	}

	name, err := m.users.DisplayName(ctx, playerID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			m.logger.WarnContext(ctx, "查詢玩家名稱失敗", "player_id", playerID, "error", err)
		}
		return fallback
	}
	return name
}

// MovePaddle 移動球拍
func (m *Manager) MovePaddle(matchID string, playerID int64, dir game.Direction) error {
	am, err := m.getActive(matchID)
	if err != nil {
		return err
	}
	return am.match.MovePaddle(playerID, dir)
}

// SetPlayerReady 設置準備狀態
func (m *Manager) SetPlayerReady(matchID string, playerID int64, ready bool) error {
	am, err := m.getActive(matchID)
	if err != nil {
		return err
	}
	return am.match.SetPlayerReady(playerID, ready)
}

// ModifySettings 修改規則（只有參與者、只在開始前）
func (m *Manager) ModifySettings(matchID string, playerID int64, patch game.SettingsPatch) error {
	am, err := m.getActive(matchID)
	if err != nil {
		return err
	}
	if !am.match.HasPlayer(playerID) {
		return apperrors.ErrPlayerNotInGame
	}
	return am.match.ModifySettings(patch)
}

// LeaveGame 玩家離開
//
// 進行中離開視為棄權；開始前離開取消對戰。下一個 tick 執行結束流程。
func (m *Manager) LeaveGame(ctx context.Context, matchID string, playerID int64) error {
	am, err := m.getActive(matchID)
	if err != nil {
		return err
	}
	if playerID == game.AIPlayerID {
		return apperrors.ErrPlayerNotInGame.WithDetails("ai player is server-controlled")
	}

	reason := ReasonPlayerLeft
	if am.match.Status().InPlay() {
		reason = ReasonForfeit
	}
	if !am.match.Status().IsTerminal() && am.match.HasPlayer(playerID) {
		am.noteReason(reason)
	}

	if err := am.match.CancelGame(playerID); err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "玩家離開對戰",
		"match_id", matchID,
		"player_id", playerID,
		"reason", reason)
	return nil
}

// DeleteMatch 刪除對戰
//
// 同步停止 tick 後移除；重複刪除返回 ErrMatchNotFound。
func (m *Manager) DeleteMatch(matchID string) error {
	m.mu.Lock()
	am, exists := m.matches[matchID]
	if exists {
		delete(m.matches, matchID)
	}
	m.mu.Unlock()

	if !exists {
		return apperrors.ErrMatchNotFound.WithDetails(matchID)
	}

	am.terminate(ReasonDeleted)
	m.logger.Info("對戰已刪除", "match_id", matchID)
	return nil
}

// Exists 對戰是否存在
func (m *Manager) Exists(matchID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.matches[matchID]
	return exists
}

// ListActiveIDs 所有進行中的對戰 ID（排序）
func (m *Manager) ListActiveIDs() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.matches))
	for id := range m.matches {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Stats 獲取統計資訊
func (m *Manager) Stats() map[string]any {
	m.mu.RLock()
	actives := make([]*ActiveMatch, 0, len(m.matches))
	for _, am := range m.matches {
		actives = append(actives, am)
	}
	m.mu.RUnlock()

	statusCount := make(map[game.Status]int)
	modeCount := make(map[game.Mode]int)
	totalPlayers := 0

	for _, am := range actives {
		state := am.match.State()
		statusCount[state.Status]++
		modeCount[state.Mode]++
		for _, p := range []*game.PlayerState{state.Player1, state.Player2} {
			if p != nil && !p.IsAI {
				totalPlayers++
			}
		}
	}

	return map[string]any{
		"total_matches": len(actives),
		"total_players": totalPlayers,
		"by_status":     statusCount,
		"by_mode":       modeCount,
	}
}

// handleFinalized 結束流程的回呼（結果已保存）
//
//  1. 從註冊表移除（只移除同一個 ActiveMatch，已被取代的不動）
//  2. 發布結束通知
//  3. 呼叫創建時指定的 OnComplete
func (m *Manager) handleFinalized(am *ActiveMatch, result storage.Result) {
	m.mu.Lock()
	if current, ok := m.matches[result.MatchID]; ok && current == am {
		delete(m.matches, result.MatchID)
	}
	m.mu.Unlock()

	if m.notifier != nil {
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.NotifyTimeout)
		if err := m.notifier.MatchCompleted(ctx, result); err != nil {
			m.logger.Error("發布對戰結束通知失敗", "match_id", result.MatchID, "error", err)
		}
		cancel()
	}

	if am.onComplete != nil {
		am.onComplete(result)
	}
}

// Shutdown 停止所有對戰並等待結果保存完成
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	actives := make([]*ActiveMatch, 0, len(m.matches))
	for _, am := range m.matches {
		actives = append(actives, am)
	}
	m.matches = make(map[string]*ActiveMatch)
	m.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, am := range actives {
		g.Go(func() error {
			am.terminate(ReasonShutdown)
			return am.Wait(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("shutdown matches: %w", err)
	}

	m.logger.Info("對戰管理器已停止", "matches", len(actives))
	return nil
}
