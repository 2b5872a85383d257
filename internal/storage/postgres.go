package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres PostgreSQL 存儲實現
//
// 系統設計考量：
//
//  1. 表結構（見 internal/migrations）：
//     - match_results：每場對戰一列，match_id 主鍵
//     - players：玩家顯示名稱（由使用者服務寫入，這裡只讀）
//
//  2. 冪等寫入：
//     INSERT ... ON CONFLICT (match_id) DO UPDATE
//     結束流程重試或重複觸發時不會產生重複記錄。
//
//  3. 連接池：
//     pgxpool 由呼叫方建立並管理生命週期。
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres 創建 PostgreSQL 存儲
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// SaveResult 保存對戰結果（UPSERT）
func (p *Postgres) SaveResult(ctx context.Context, r Result) error {
	query := `
		INSERT INTO match_results (
			match_id, mode, outcome, reason,
			player1_id, player2_id, player1_score, player2_score,
			winner_id, duration_ms, finished_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (match_id) DO UPDATE SET
			outcome       = EXCLUDED.outcome,
			reason        = EXCLUDED.reason,
			player1_id    = EXCLUDED.player1_id,
			player2_id    = EXCLUDED.player2_id,
			player1_score = EXCLUDED.player1_score,
			player2_score = EXCLUDED.player2_score,
			winner_id     = EXCLUDED.winner_id,
			duration_ms   = EXCLUDED.duration_ms,
			finished_at   = EXCLUDED.finished_at
	`

	_, err := p.pool.Exec(ctx, query,
		r.MatchID,
		r.Mode,
		string(r.Outcome),
		pgtype.Text{String: r.Reason, Valid: r.Reason != ""},
		int8Of(r.Player1ID),
		int8Of(r.Player2ID),
		r.Player1Score,
		r.Player2Score,
		int8Of(r.WinnerID),
		r.Duration.Milliseconds(),
		r.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("save match result: %w", err)
	}
	return nil
}

// GetResult 讀取對戰結果
func (p *Postgres) GetResult(ctx context.Context, matchID string) (*Result, error) {
	query := `
		SELECT match_id, mode, outcome, reason,
		       player1_id, player2_id, player1_score, player2_score,
		       winner_id, duration_ms, finished_at
		FROM match_results
		WHERE match_id = $1
	`

	var (
		r              Result
		outcome        string
		reason         pgtype.Text
		p1, p2, winner pgtype.Int8
		durationMs     int64
	)

	err := p.pool.QueryRow(ctx, query, matchID).Scan(
		&r.MatchID,
		&r.Mode,
		&outcome,
		&reason,
		&p1,
		&p2,
		&r.Player1Score,
		&r.Player2Score,
		&winner,
		&durationMs,
		&r.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get match result: %w", err)
	}

	r.Outcome = Outcome(outcome)
	r.Reason = reason.String
	r.Player1ID = int64Of(p1)
	r.Player2ID = int64Of(p2)
	r.WinnerID = int64Of(winner)
	r.Duration = time.Duration(durationMs) * time.Millisecond

	return &r, nil
}

// DisplayName 從 players 表查詢玩家名稱
func (p *Postgres) DisplayName(ctx context.Context, userID int64) (string, error) {
	var name string
	err := p.pool.QueryRow(ctx,
		`SELECT display_name FROM players WHERE id = $1`, userID,
	).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get display name: %w", err)
	}
	return name, nil
}

// UpsertPlayer 寫入玩家名稱
func (p *Postgres) UpsertPlayer(ctx context.Context, userID int64, name string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO players (id, display_name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name, updated_at = NOW()
	`, userID, name)
	if err != nil {
		return fmt.Errorf("upsert player: %w", err)
	}
	return nil
}

func int8Of(v *int64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *v, Valid: true}
}

func int64Of(v pgtype.Int8) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
