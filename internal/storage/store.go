// Package storage 提供對戰結果的持久化與玩家名稱查詢
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound 記錄不存在
var ErrNotFound = errors.New("storage: not found")

// Outcome 對戰結束的方式
type Outcome string

const (
	OutcomeCompleted Outcome = "completed" // 正常結束（分數或時間）
	OutcomeCancelled Outcome = "cancelled" // 開始前離開或被刪除
	OutcomeTimeout   Outcome = "timeout"   // 等待逾時
	OutcomeError     Outcome = "error"     // tick 發生不可恢復的錯誤
)

// Result 一場對戰的最終記錄
type Result struct {
	MatchID      string        `json:"match_id"`
	Mode         string        `json:"mode"`
	Outcome      Outcome       `json:"outcome"`
	Reason       string        `json:"reason,omitempty"`
	Player1ID    *int64        `json:"player1_id,omitempty"`
	Player2ID    *int64        `json:"player2_id,omitempty"`
	Player1Score int           `json:"player1_score"`
	Player2Score int           `json:"player2_score"`
	WinnerID     *int64        `json:"winner_id,omitempty"`
	Duration     time.Duration `json:"duration"`
	FinishedAt   time.Time     `json:"finished_at"`
}

// ResultStore 對戰結果存儲
//
// 系統設計考量：
//   - 冪等：同一個 match_id 重複寫入以最後一次為準（UPSERT）
//   - 呼叫時不持有對戰的鎖，可以阻塞
type ResultStore interface {
	// SaveResult 保存對戰結果
	SaveResult(ctx context.Context, result Result) error

	// GetResult 讀取對戰結果，不存在時返回 ErrNotFound
	GetResult(ctx context.Context, matchID string) (*Result, error)
}

// UserDirectory 玩家名稱查詢
type UserDirectory interface {
	// DisplayName 返回玩家的顯示名稱，不存在時返回 ErrNotFound
	DisplayName(ctx context.Context, userID int64) (string, error)
}
