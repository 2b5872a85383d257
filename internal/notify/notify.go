// Package notify 發布對戰結束通知
//
// 每場對戰結束時發布一次，外部協調者（例如錦標賽晉級）訂閱處理。
// 發布發生在結果持久化之後，訂閱方讀到通知時結果已可查詢。
package notify

import (
	"context"
	"log/slog"

	"github.com/koopa0/pong-match/internal/storage"
)

// Notifier 對戰結束通知
type Notifier interface {
	MatchCompleted(ctx context.Context, result storage.Result) error
}

// LogNotifier 只寫日誌的通知實現（未設定 NATS 時使用）
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier 創建日誌通知
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// MatchCompleted 記錄對戰結束
func (n *LogNotifier) MatchCompleted(ctx context.Context, result storage.Result) error {
	attrs := []any{
		"match_id", result.MatchID,
		"outcome", result.Outcome,
		"score", []int{result.Player1Score, result.Player2Score},
	}
	if result.WinnerID != nil {
		attrs = append(attrs, "winner_id", *result.WinnerID)
	}
	n.logger.InfoContext(ctx, "對戰結束", attrs...)
	return nil
}
