package game_test

import (
	"sync"
	"testing"

	"github.com/koopa0/pong-match/internal/game"
	apperrors "github.com/koopa0/pong-match/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice int64 = 1
	bob   int64 = 2
	carol int64 = 3
)

func newMatch(t *testing.T, mode game.Mode, settings game.Settings) *game.Match {
	t.Helper()
	m, err := game.NewMatch(game.Options{
		ID:       "match_001",
		Mode:     mode,
		Settings: settings,
		Rand:     newRand(),
	})
	require.NoError(t, err)
	return m
}

// advance 以 60 FPS 推進 seconds 秒
func advance(m *game.Match, seconds float64) {
	for elapsed := 0.0; elapsed < seconds; elapsed += tick {
		m.Update(tick)
	}
}

// advanceUntil 推進直到指定狀態，最多 limit 秒
func advanceUntil(t *testing.T, m *game.Match, status game.Status, limit float64) {
	t.Helper()
	for elapsed := 0.0; elapsed < limit; elapsed += tick {
		if m.Status() == status {
			return
		}
		m.Update(tick)
	}
	require.Equal(t, status, m.Status())
}

// startMultiplayer 兩名玩家加入、準備並進入 PLAYING
func startMultiplayer(t *testing.T, settings game.Settings) *game.Match {
	t.Helper()
	m := newMatch(t, game.ModeMultiplayer, settings)
	require.NoError(t, m.AddPlayer(alice, "alice"))
	require.NoError(t, m.AddPlayer(bob, "bob"))
	require.NoError(t, m.SetPlayerReady(alice, true))
	require.NoError(t, m.SetPlayerReady(bob, true))
	advanceUntil(t, m, game.StatusPlaying, game.DefaultStartCountdown+1)
	return m
}

// scoreLeft 讓左側玩家得一分：球從右拍外側穿過右邊界
func scoreLeft(m *game.Match) {
	m.SetPaddle(bob, game.PaddleMax)
	m.PlaceBall(game.Vec2{X: 99, Y: 10}, game.Vec2{X: 1.5, Y: 0})
	m.Update(tick)
}

// TestNewMatch 測試創建對戰
func TestNewMatch(t *testing.T) {
	tests := []struct {
		name     string
		mode     game.Mode
		settings game.Settings
		wantErr  bool
	}{
		{
			name:     "valid multiplayer",
			mode:     game.ModeMultiplayer,
			settings: game.DefaultSettings(),
		},
		{
			name:     "unknown mode",
			mode:     "coop",
			settings: game.DefaultSettings(),
			wantErr:  true,
		},
		{
			name:     "winning score out of range",
			mode:     game.ModeSinglePlayer,
			settings: game.Settings{WinningScore: 0, MaxGameTime: 60},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := game.NewMatch(game.Options{ID: "m", Mode: tt.mode, Settings: tt.settings})
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsInvalidInput(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, game.StatusWaitingForPlayers, m.Status())
		})
	}
}

// TestMatch_AddPlayer 測試加入玩家
func TestMatch_AddPlayer(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(m *game.Match)
		mode     game.Mode
		playerID int64
		wantErr  error
		validate func(t *testing.T, state game.GameState)
	}{
		{
			name:     "first player fills slot one",
			mode:     game.ModeMultiplayer,
			setup:    func(m *game.Match) {},
			playerID: alice,
			validate: func(t *testing.T, state game.GameState) {
				require.NotNil(t, state.Player1)
				assert.Nil(t, state.Player2)
				assert.Equal(t, alice, state.Player1.ID)
				assert.Equal(t, game.StatusWaitingForPlayers, state.Status)
			},
		},
		{
			name:     "second player moves to waiting for ready",
			mode:     game.ModeMultiplayer,
			setup:    func(m *game.Match) { _ = m.AddPlayer(alice, "alice") },
			playerID: bob,
			validate: func(t *testing.T, state game.GameState) {
				require.NotNil(t, state.Player2)
				assert.Equal(t, bob, state.Player2.ID)
				assert.Equal(t, game.StatusWaitingForReady, state.Status)
			},
		},
		{
			name: "third player rejected",
			mode: game.ModeMultiplayer,
			setup: func(m *game.Match) {
				_ = m.AddPlayer(alice, "alice")
				_ = m.AddPlayer(bob, "bob")
			},
			playerID: carol,
			wantErr:  apperrors.ErrGameFull,
		},
		{
			name:     "rejoin is a no-op",
			mode:     game.ModeMultiplayer,
			setup:    func(m *game.Match) { _ = m.AddPlayer(alice, "alice") },
			playerID: alice,
			validate: func(t *testing.T, state game.GameState) {
				assert.Nil(t, state.Player2)
				assert.Equal(t, game.StatusWaitingForPlayers, state.Status)
			},
		},
		{
			name:     "single player synthesizes ready AI",
			mode:     game.ModeSinglePlayer,
			setup:    func(m *game.Match) {},
			playerID: alice,
			validate: func(t *testing.T, state game.GameState) {
				require.NotNil(t, state.Player2)
				assert.Equal(t, game.AIPlayerID, state.Player2.ID)
				assert.True(t, state.Player2.IsAI)
				assert.True(t, state.Player2.Ready)
				assert.Equal(t, game.StatusWaitingForReady, state.Status)
			},
		},
		{
			name:     "single player match is full after one human",
			mode:     game.ModeSinglePlayer,
			setup:    func(m *game.Match) { _ = m.AddPlayer(alice, "alice") },
			playerID: bob,
			wantErr:  apperrors.ErrGameFull,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMatch(t, tt.mode, game.DefaultSettings())
			tt.setup(m)

			err := m.AddPlayer(tt.playerID, "player")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.validate(t, m.State())
		})
	}
}

// TestMatch_ReadyFlow 測試準備到開局的狀態轉換
func TestMatch_ReadyFlow(t *testing.T) {
	m := newMatch(t, game.ModeMultiplayer, game.Settings{WinningScore: 5, MaxGameTime: 120})
	require.NoError(t, m.AddPlayer(alice, "alice"))
	require.NoError(t, m.AddPlayer(bob, "bob"))
	assert.Equal(t, game.StatusWaitingForReady, m.Status())

	require.NoError(t, m.SetPlayerReady(alice, true))
	assert.Equal(t, game.StatusWaitingForReady, m.Status())

	require.NoError(t, m.SetPlayerReady(bob, true))
	state := m.State()
	assert.Equal(t, game.StatusStartCountdown, state.Status)
	assert.True(t, state.AllReady)
	assert.True(t, state.Countdown.Active)
	assert.Equal(t, game.CountdownStart, state.Countdown.Type)

	// 倒數期間重複準備不會重新開始倒數
	advance(m, 1)
	require.NoError(t, m.SetPlayerReady(bob, true))
	assert.Less(t, m.State().Countdown.Remaining, game.DefaultStartCountdown)

	advanceUntil(t, m, game.StatusPlaying, game.DefaultStartCountdown)
	state = m.State()
	assert.False(t, state.Countdown.Active)
	assert.Less(t, state.Timer, 0.1)
}

// TestMatch_UnreadyCancelsCountdown 測試倒數中取消準備
func TestMatch_UnreadyCancelsCountdown(t *testing.T) {
	m := newMatch(t, game.ModeMultiplayer, game.DefaultSettings())
	require.NoError(t, m.AddPlayer(alice, "alice"))
	require.NoError(t, m.AddPlayer(bob, "bob"))
	require.NoError(t, m.SetPlayerReady(alice, true))
	require.NoError(t, m.SetPlayerReady(bob, true))
	require.Equal(t, game.StatusStartCountdown, m.Status())

	require.NoError(t, m.SetPlayerReady(alice, false))
	assert.Equal(t, game.StatusWaitingForReady, m.Status())
	assert.False(t, m.State().Countdown.Active)

	advance(m, 5)
	assert.Equal(t, game.StatusWaitingForReady, m.Status())
}

// TestMatch_SetPlayerReady_NotParticipant 測試非參與者
func TestMatch_SetPlayerReady_NotParticipant(t *testing.T) {
	m := newMatch(t, game.ModeMultiplayer, game.DefaultSettings())
	require.NoError(t, m.AddPlayer(alice, "alice"))

	err := m.SetPlayerReady(carol, true)
	assert.True(t, apperrors.IsNotParticipant(err))
}

// TestMatch_UpdateFrozenBeforePlay 測試非 PLAYING 狀態下模擬不前進
func TestMatch_UpdateFrozenBeforePlay(t *testing.T) {
	m := newMatch(t, game.ModeMultiplayer, game.DefaultSettings())
	require.NoError(t, m.AddPlayer(alice, "alice"))
	require.NoError(t, m.AddPlayer(bob, "bob"))

	before := m.State()
	advance(m, 2)
	after := m.State()
	assert.Equal(t, before.Ball, after.Ball)
	assert.Equal(t, before.Timer, after.Timer)

	// 開局倒數中同樣凍結
	require.NoError(t, m.SetPlayerReady(alice, true))
	require.NoError(t, m.SetPlayerReady(bob, true))
	advance(m, 1)
	during := m.State()
	assert.Equal(t, game.StatusStartCountdown, during.Status)
	assert.Equal(t, before.Ball, during.Ball)
	assert.Equal(t, 0.0, during.Timer)
	assert.Equal(t, 0, during.Player1.Score)
	assert.Greater(t, m.Elapsed(), 2.9)
}

// TestMatch_PaddleCollision 測試球拍反彈
func TestMatch_PaddleCollision(t *testing.T) {
	m := startMultiplayer(t, game.DefaultSettings())

	m.SetPaddle(alice, 50)
	m.PlaceBall(game.Vec2{X: 6, Y: 52}, game.Vec2{X: -1, Y: 0})
	advance(m, 0.1)

	state := m.State()
	assert.Greater(t, state.Ball.Velocity.X, 0.0)
	assert.Greater(t, state.Ball.Velocity.Y, 0.0, "contact below center deflects downward")
	assert.Equal(t, 0, state.Player2.Score)
	assert.Equal(t, game.StatusPlaying, state.Status)
}

// TestMatch_FastBallDoesNotTunnel 測試高速球不會穿過球拍
func TestMatch_FastBallDoesNotTunnel(t *testing.T) {
	m := startMultiplayer(t, game.DefaultSettings())

	m.SetPaddle(bob, 50)
	m.PlaceBall(game.Vec2{X: 94, Y: 50}, game.Vec2{X: 1.5, Y: 0})
	m.Update(0.1) // 一次推進 9 單位

	state := m.State()
	assert.Less(t, state.Ball.Velocity.X, 0.0)
	assert.Equal(t, 0, state.Player1.Score)
}

// TestMatch_GoalAndCountdown 測試進球後的倒數
func TestMatch_GoalAndCountdown(t *testing.T) {
	m := startMultiplayer(t, game.DefaultSettings())

	scoreLeft(m)
	state := m.State()
	assert.Equal(t, game.StatusGoalCountdown, state.Status)
	assert.Equal(t, 1, state.Player1.Score)
	require.NotNil(t, state.LastScorer)
	assert.Equal(t, alice, *state.LastScorer)
	assert.Equal(t, game.CountdownGoal, state.Countdown.Type)
	assert.Equal(t, game.CourtCenter, state.Player2.Position)
	assert.Equal(t, game.Vec2{X: game.CourtCenter, Y: game.CourtCenter}, state.Ball.Position)

	// 倒數中不模擬
	advance(m, 1)
	assert.Equal(t, game.Vec2{X: game.CourtCenter, Y: game.CourtCenter}, m.State().Ball.Position)

	advanceUntil(t, m, game.StatusPlaying, game.DefaultGoalCountdown)
}

// TestMatch_FiveGoalsWins 測試達到勝利分數
func TestMatch_FiveGoalsWins(t *testing.T) {
	m := startMultiplayer(t, game.Settings{WinningScore: 5, MaxGameTime: 120})

	for i := 0; i < 4; i++ {
		scoreLeft(m)
		require.Equal(t, game.StatusGoalCountdown, m.Status())
		advanceUntil(t, m, game.StatusPlaying, game.DefaultGoalCountdown+1)
	}

	scoreLeft(m)
	state := m.State()
	assert.Equal(t, game.StatusGameOver, state.Status)
	assert.True(t, state.GameOver)
	assert.False(t, state.Countdown.Active)
	assert.Equal(t, 5, state.Player1.Score)
	require.NotNil(t, state.WinnerID)
	assert.Equal(t, alice, *state.WinnerID)

	// 結束後凍結
	advance(m, 1)
	assert.Equal(t, state.Ball, m.State().Ball)
	assert.Equal(t, game.StatusGameOver, m.Status())
}

// TestMatch_TimeLimit 測試時間到
func TestMatch_TimeLimit(t *testing.T) {
	m := startMultiplayer(t, game.Settings{WinningScore: 5, MaxGameTime: 1})

	advanceUntil(t, m, game.StatusGameOver, 1.5)

	state := m.State()
	assert.Nil(t, state.WinnerID, "tied score is a draw")
	assert.False(t, state.Cancelled)
	assert.GreaterOrEqual(t, state.Timer, 1.0)
}

// TestMatch_SinglePlayer 測試單人模式
func TestMatch_SinglePlayer(t *testing.T) {
	m := newMatch(t, game.ModeSinglePlayer, game.Settings{WinningScore: 3, MaxGameTime: 60, AIDifficulty: 0.95})
	require.NoError(t, m.AddPlayer(alice, "alice"))

	// AI 的準備狀態不接受外部修改
	err := m.SetPlayerReady(game.AIPlayerID, false)
	assert.True(t, apperrors.IsNotParticipant(err))

	require.NoError(t, m.SetPlayerReady(alice, true))
	assert.Equal(t, game.StatusStartCountdown, m.Status())
	advanceUntil(t, m, game.StatusPlaying, game.DefaultStartCountdown+1)

	// AI 球拍不接受外部移動，也不能代替 AI 棄權
	err = m.MovePaddle(game.AIPlayerID, game.DirectionUp)
	assert.True(t, apperrors.IsNotParticipant(err))
	err = m.CancelGame(game.AIPlayerID)
	assert.True(t, apperrors.IsNotParticipant(err))
	assert.Equal(t, game.StatusPlaying, m.Status())

	advance(m, 2)
	state := m.State()
	assert.GreaterOrEqual(t, state.Player2.Position, game.PaddleMin)
	assert.LessOrEqual(t, state.Player2.Position, game.PaddleMax)
}

// TestMatch_ModifySettings 測試修改規則
func TestMatch_ModifySettings(t *testing.T) {
	score := func(v int) *int { return &v }
	diff := func(v float64) *float64 { return &v }

	t.Run("before play", func(t *testing.T) {
		m := newMatch(t, game.ModeSinglePlayer, game.DefaultSettings())
		require.NoError(t, m.AddPlayer(alice, "alice"))

		require.NoError(t, m.ModifySettings(game.SettingsPatch{WinningScore: score(7), AIDifficulty: diff(0.9)}))
		s := m.Settings()
		assert.Equal(t, 7, s.WinningScore)
		assert.Equal(t, 0.9, s.AIDifficulty)
		assert.Equal(t, game.DefaultSettings().MaxGameTime, s.MaxGameTime)
	})

	t.Run("invalid value rejected", func(t *testing.T) {
		m := newMatch(t, game.ModeMultiplayer, game.DefaultSettings())
		err := m.ModifySettings(game.SettingsPatch{WinningScore: score(100)})
		assert.True(t, apperrors.IsInvalidInput(err))
		assert.Equal(t, game.DefaultSettings(), m.Settings())
	})

	t.Run("after play starts", func(t *testing.T) {
		m := startMultiplayer(t, game.DefaultSettings())
		err := m.ModifySettings(game.SettingsPatch{WinningScore: score(9)})
		assert.ErrorIs(t, err, apperrors.ErrGameAlreadyStarted)
		assert.Equal(t, game.DefaultSettings(), m.Settings())
	})
}

// TestMatch_CancelGame 測試玩家離開
func TestMatch_CancelGame(t *testing.T) {
	t.Run("before play cancels without winner", func(t *testing.T) {
		m := newMatch(t, game.ModeMultiplayer, game.DefaultSettings())
		require.NoError(t, m.AddPlayer(alice, "alice"))
		require.NoError(t, m.AddPlayer(bob, "bob"))
		require.NoError(t, m.SetPlayerReady(alice, true))

		require.NoError(t, m.CancelGame(alice))
		state := m.State()
		assert.Equal(t, game.StatusCancelled, state.Status)
		assert.True(t, state.Cancelled)
		assert.Nil(t, state.WinnerID)
	})

	t.Run("during play forfeits", func(t *testing.T) {
		settings := game.Settings{WinningScore: 7, MaxGameTime: 120}
		m := startMultiplayer(t, settings)
		scoreLeft(m)

		require.NoError(t, m.CancelGame(alice))
		state := m.State()
		assert.Equal(t, game.StatusGameOver, state.Status)
		assert.Equal(t, settings.WinningScore, state.Player2.Score)
		require.NotNil(t, state.WinnerID)
		assert.Equal(t, bob, *state.WinnerID)
		assert.False(t, state.Cancelled)
	})

	t.Run("after game over is a no-op", func(t *testing.T) {
		m := startMultiplayer(t, game.Settings{WinningScore: 1, MaxGameTime: 120})
		scoreLeft(m)
		require.Equal(t, game.StatusGameOver, m.Status())

		require.NoError(t, m.CancelGame(bob))
		winner, ok := m.Winner()
		assert.True(t, ok)
		assert.Equal(t, alice, winner)
	})

	t.Run("non participant", func(t *testing.T) {
		m := newMatch(t, game.ModeMultiplayer, game.DefaultSettings())
		assert.True(t, apperrors.IsNotParticipant(m.CancelGame(carol)))
	})
}

// TestMatch_ResolveTimeout 測試等待逾時的裁決
func TestMatch_ResolveTimeout(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(m *game.Match)
		wantStatus game.Status
		wantWinner *int64
		changed    bool
	}{
		{
			name: "single ready player wins",
			setup: func(m *game.Match) {
				_ = m.AddPlayer(alice, "alice")
				_ = m.AddPlayer(bob, "bob")
				_ = m.SetPlayerReady(bob, true)
			},
			wantStatus: game.StatusGameOver,
			wantWinner: &bob,
			changed:    true,
		},
		{
			name: "nobody ready cancels",
			setup: func(m *game.Match) {
				_ = m.AddPlayer(alice, "alice")
			},
			wantStatus: game.StatusCancelled,
			changed:    true,
		},
		{
			name: "lone player ready still wins",
			setup: func(m *game.Match) {
				_ = m.AddPlayer(alice, "alice")
				_ = m.SetPlayerReady(alice, true)
			},
			wantStatus: game.StatusGameOver,
			wantWinner: &alice,
			changed:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMatch(t, game.ModeMultiplayer, game.DefaultSettings())
			tt.setup(m)

			assert.Equal(t, tt.changed, m.ResolveTimeout())
			state := m.State()
			assert.Equal(t, tt.wantStatus, state.Status)
			if tt.wantWinner == nil {
				assert.Nil(t, state.WinnerID)
				return
			}
			require.NotNil(t, state.WinnerID)
			assert.Equal(t, *tt.wantWinner, *state.WinnerID)
		})
	}

	t.Run("no effect once playing", func(t *testing.T) {
		m := startMultiplayer(t, game.DefaultSettings())
		assert.False(t, m.ResolveTimeout())
		assert.Equal(t, game.StatusPlaying, m.Status())
	})
}

// TestMatch_MovePaddle 測試移動球拍
func TestMatch_MovePaddle(t *testing.T) {
	m := newMatch(t, game.ModeMultiplayer, game.DefaultSettings())
	require.NoError(t, m.AddPlayer(alice, "alice"))

	require.NoError(t, m.MovePaddle(alice, game.DirectionUp))
	assert.Equal(t, game.CourtCenter-game.PaddleStep, m.State().Player1.Position)

	require.NoError(t, m.MovePaddle(alice, game.DirectionDown))
	assert.Equal(t, game.CourtCenter, m.State().Player1.Position)

	assert.True(t, apperrors.IsNotParticipant(m.MovePaddle(bob, game.DirectionUp)))
	assert.True(t, apperrors.IsInvalidInput(m.MovePaddle(alice, "left")))
}

// TestParseDirection 測試解析方向
func TestParseDirection(t *testing.T) {
	dir, err := game.ParseDirection("up")
	require.NoError(t, err)
	assert.Equal(t, game.DirectionUp, dir)

	_, err = game.ParseDirection("sideways")
	assert.ErrorIs(t, err, apperrors.ErrInvalidDirection)
}

// TestMatch_ConcurrentCommands 測試 tick 與外部指令並發
func TestMatch_ConcurrentCommands(t *testing.T) {
	m := startMultiplayer(t, game.Settings{WinningScore: 21, MaxGameTime: 600})

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			m.Update(tick)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = m.MovePaddle(alice, game.DirectionUp)
			_ = m.MovePaddle(bob, game.DirectionDown)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = m.State()
		}
	}()

	wg.Wait()
	state := m.State()
	assert.GreaterOrEqual(t, state.Player1.Position, game.PaddleMin)
	assert.LessOrEqual(t, state.Player2.Position, game.PaddleMax)
}
