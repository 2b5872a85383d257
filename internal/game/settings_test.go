package game_test

import (
	"math"
	"strings"
	"testing"

	"github.com/koopa0/pong-match/internal/game"
	apperrors "github.com/koopa0/pong-match/pkg/errors"
	"github.com/stretchr/testify/assert"
)

// TestSettings_Validate 測試規則範圍檢查
func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(s *game.Settings)
		wantErr bool
	}{
		{name: "defaults", modify: func(*game.Settings) {}},
		{name: "no time limit", modify: func(s *game.Settings) { s.MaxGameTime = 0 }},
		{name: "max time limit", modify: func(s *game.Settings) { s.MaxGameTime = game.MaxGameTimeLimit }},
		{name: "difficulty bounds", modify: func(s *game.Settings) { s.AIDifficulty = 1 }},
		{name: "winning score too low", modify: func(s *game.Settings) { s.WinningScore = 0 }, wantErr: true},
		{name: "winning score too high", modify: func(s *game.Settings) { s.WinningScore = game.MaxWinningScore + 1 }, wantErr: true},
		{name: "negative time", modify: func(s *game.Settings) { s.MaxGameTime = -1 }, wantErr: true},
		{name: "time over limit", modify: func(s *game.Settings) { s.MaxGameTime = game.MaxGameTimeLimit + 1 }, wantErr: true},
		{name: "time NaN", modify: func(s *game.Settings) { s.MaxGameTime = math.NaN() }, wantErr: true},
		{name: "time +Inf", modify: func(s *game.Settings) { s.MaxGameTime = math.Inf(1) }, wantErr: true},
		{name: "time -Inf", modify: func(s *game.Settings) { s.MaxGameTime = math.Inf(-1) }, wantErr: true},
		{name: "difficulty over 1", modify: func(s *game.Settings) { s.AIDifficulty = 1.01 }, wantErr: true},
		{name: "difficulty NaN", modify: func(s *game.Settings) { s.AIDifficulty = math.NaN() }, wantErr: true},
		{name: "difficulty +Inf", modify: func(s *game.Settings) { s.AIDifficulty = math.Inf(1) }, wantErr: true},
		{name: "difficulty -Inf", modify: func(s *game.Settings) { s.AIDifficulty = math.Inf(-1) }, wantErr: true},
		{name: "visual style too long", modify: func(s *game.Settings) { s.VisualStyle = strings.Repeat("x", 33) }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := game.DefaultSettings()
			tt.modify(&s)

			err := s.Validate()
			if tt.wantErr {
				assert.True(t, apperrors.IsInvalidInput(err), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

// TestMatch_ModifySettingsRejectsNaN 測試修改規則時拒絕非有限值，原設定不變
func TestMatch_ModifySettingsRejectsNaN(t *testing.T) {
	m := newMatch(t, game.ModeMultiplayer, game.DefaultSettings())
	nan := math.NaN()
	inf := math.Inf(1)

	assert.True(t, apperrors.IsInvalidInput(m.ModifySettings(game.SettingsPatch{MaxGameTime: &nan})))
	assert.True(t, apperrors.IsInvalidInput(m.ModifySettings(game.SettingsPatch{AIDifficulty: &inf})))
	assert.Equal(t, game.DefaultSettings(), m.Settings())
}
