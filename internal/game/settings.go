package game

import (
	"fmt"

	apperrors "github.com/koopa0/pong-match/pkg/errors"
)

// Mode 對戰模式
type Mode string

const (
	ModeMultiplayer  Mode = "multiplayer"
	ModeSinglePlayer Mode = "singleplayer"
)

// Valid 是否為已知模式
func (m Mode) Valid() bool {
	return m == ModeMultiplayer || m == ModeSinglePlayer
}

// 規則範圍
const (
	MinWinningScore    = 1
	MaxWinningScore    = 21
	MaxGameTimeLimit   = 3600.0 // 秒
	maxVisualStyleSize = 32
)

// Settings 對戰規則
type Settings struct {
	WinningScore int     `json:"winning_score" yaml:"winning_score"`
	MaxGameTime  float64 `json:"max_game_time" yaml:"max_game_time"` // 秒，0 表示不限時
	AIDifficulty float64 `json:"ai_difficulty" yaml:"ai_difficulty"`
	VisualStyle  string  `json:"visual_style" yaml:"visual_style"`
}

// DefaultSettings 預設規則
func DefaultSettings() Settings {
	return Settings{
		WinningScore: 5,
		MaxGameTime:  120,
		AIDifficulty: 0.5,
		VisualStyle:  "classic",
	}
}

// Validate 檢查規則範圍
func (s Settings) Validate() error {
	if s.WinningScore < MinWinningScore || s.WinningScore > MaxWinningScore {
		return apperrors.ErrInvalidSettings.WithDetails(
			fmt.Sprintf("winning_score must be in [%d, %d]", MinWinningScore, MaxWinningScore))
	}
	// 反向比較：NaN 與任何值比較都是 false
	if !(s.MaxGameTime >= 0 && s.MaxGameTime <= MaxGameTimeLimit) {
		return apperrors.ErrInvalidSettings.WithDetails(
			fmt.Sprintf("max_game_time must be in [0, %.0f]", MaxGameTimeLimit))
	}
	if !(s.AIDifficulty >= 0 && s.AIDifficulty <= 1) {
		return apperrors.ErrInvalidSettings.WithDetails("ai_difficulty must be in [0, 1]")
	}
	if len(s.VisualStyle) > maxVisualStyleSize {
		return apperrors.ErrInvalidSettings.WithDetails("visual_style too long")
	}
	return nil
}

// SettingsPatch 部分更新，nil 欄位保持不變
type SettingsPatch struct {
	WinningScore *int     `json:"winning_score,omitempty"`
	MaxGameTime  *float64 `json:"max_game_time,omitempty"`
	AIDifficulty *float64 `json:"ai_difficulty,omitempty"`
	VisualStyle  *string  `json:"visual_style,omitempty"`
}

// Empty 是否沒有任何欄位
func (p SettingsPatch) Empty() bool {
	return p.WinningScore == nil && p.MaxGameTime == nil && p.AIDifficulty == nil && p.VisualStyle == nil
}

// apply 返回套用後的新規則
func (s Settings) apply(p SettingsPatch) Settings {
	if p.WinningScore != nil {
		s.WinningScore = *p.WinningScore
	}
	if p.MaxGameTime != nil {
		s.MaxGameTime = *p.MaxGameTime
	}
	if p.AIDifficulty != nil {
		s.AIDifficulty = *p.AIDifficulty
	}
	if p.VisualStyle != nil {
		s.VisualStyle = *p.VisualStyle
	}
	return s
}
