package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/koopa0/pong-match/internal/storage"
	"github.com/nats-io/nats.go"
)

// 預設 Stream 設定
const (
	DefaultStreamName       = "PONG_MATCHES"
	DefaultCompletedSubject = "pong.match.completed"
)

// NATSConfig NATS 通知設定
type NATSConfig struct {
	URL        string
	Stream     string
	Subject    string
	MaxAge     time.Duration
	Duplicates time.Duration
}

// NATSNotifier 基於 JetStream 的通知實現
//
// 系統設計考量：
//
//  1. 為什麼用 JetStream 而非 Core NATS？
//     訂閱方（錦標賽服務）重啟時不能錯過結果，需要持久化 + ACK。
//
//  2. 去重：
//     以 match_id 作為 Msg-Id，Duplicates 視窗內重複發布只保留一筆。
//
//  3. 同步發布：
//     等待 PubAck，失敗返回錯誤由呼叫方記錄。
type NATSNotifier struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	cfg    NATSConfig
	logger *slog.Logger
}

// NewNATSNotifier 連接 NATS 並初始化 Stream
func NewNATSNotifier(cfg NATSConfig, logger *slog.Logger) (*NATSNotifier, error) {
	if cfg.Stream == "" {
		cfg.Stream = DefaultStreamName
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultCompletedSubject
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 7 * 24 * time.Hour
	}
	if cfg.Duplicates == 0 {
		cfg.Duplicates = 2 * time.Minute
	}

	conn, err := nats.Connect(
		cfg.URL,
		nats.Name("pong-match"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS 連接中斷", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS 已重新連接", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("連接 NATS 失敗: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("創建 JetStream 上下文失敗: %w", err)
	}

	n := &NATSNotifier{
		conn:   conn,
		js:     js,
		cfg:    cfg,
		logger: logger,
	}

	if err := n.initStream(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("初始化 Stream 失敗: %w", err)
	}

	return n, nil
}

// initStream 建立或更新 Stream（冪等）
func (n *NATSNotifier) initStream() error {
	cfg := &nats.StreamConfig{
		Name:       n.cfg.Stream,
		Subjects:   []string{n.cfg.Subject},
		Storage:    nats.FileStorage,
		MaxAge:     n.cfg.MaxAge,
		Duplicates: n.cfg.Duplicates,
		Replicas:   1,
	}

	_, err := n.js.StreamInfo(n.cfg.Stream)
	if errors.Is(err, nats.ErrStreamNotFound) {
		if _, err := n.js.AddStream(cfg); err != nil {
			return fmt.Errorf("創建 Stream 失敗: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("查詢 Stream 失敗: %w", err)
	}

	if _, err := n.js.UpdateStream(cfg); err != nil {
		return fmt.Errorf("更新 Stream 失敗: %w", err)
	}
	return nil
}

// MatchCompleted 發布對戰結束事件
func (n *NATSNotifier) MatchCompleted(ctx context.Context, result storage.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("序列化結果失敗: %w", err)
	}

	ack, err := n.js.Publish(n.cfg.Subject, data,
		nats.Context(ctx),
		nats.MsgId(result.MatchID),
	)
	if err != nil {
		return fmt.Errorf("發布結果失敗: %w", err)
	}

	n.logger.DebugContext(ctx, "對戰結果已發布",
		"match_id", result.MatchID,
		"stream", ack.Stream,
		"sequence", ack.Sequence,
		"duplicate", ack.Duplicate)
	return nil
}

// Subject 發布的主題
func (n *NATSNotifier) Subject() string {
	return n.cfg.Subject
}

// Close 清空緩衝並關閉連接
func (n *NATSNotifier) Close() error {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return fmt.Errorf("關閉 NATS 連接失敗: %w", err)
	}
	return nil
}
