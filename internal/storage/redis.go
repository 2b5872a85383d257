package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultNameTTL     = time.Hour
	defaultNegativeTTL = time.Minute
	nameKeyPrefix      = "pong:player_name:"
	negativeMarker     = "\x00"
)

// CachedDirectory Redis 快取層（Cache-Aside）
//
// 快取策略：
//  1. 讀取：先查 Redis → Miss 時查後端 → 回寫 Redis
//  2. 不存在的玩家寫入空標記（TTL 較短），防止快取穿透
//  3. Redis 故障時降級為直接查後端，只記錄警告
//
// 加入對戰時查詢名稱，同一玩家短時間內重複加入的情況很常見。
type CachedDirectory struct {
	client      *redis.Client
	backend     UserDirectory
	ttl         time.Duration
	negativeTTL time.Duration
	logger      *slog.Logger
}

// NewCachedDirectory 創建快取層，ttl 為 0 時使用預設 1 小時
func NewCachedDirectory(client *redis.Client, backend UserDirectory, ttl time.Duration, logger *slog.Logger) *CachedDirectory {
	if ttl == 0 {
		ttl = defaultNameTTL
	}
	return &CachedDirectory{
		client:      client,
		backend:     backend,
		ttl:         ttl,
		negativeTTL: defaultNegativeTTL,
		logger:      logger,
	}
}

// DisplayName 查詢玩家名稱
func (c *CachedDirectory) DisplayName(ctx context.Context, userID int64) (string, error) {
	key := nameKeyPrefix + strconv.FormatInt(userID, 10)

	cached, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if cached == negativeMarker {
			return "", ErrNotFound
		}
		return cached, nil
	case errors.Is(err, redis.Nil):
		// Cache Miss
	default:
		c.logger.Warn("redis get failed, falling back to backend",
			"user_id", userID,
			"error", err)
	}

	name, err := c.backend.DisplayName(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		c.set(ctx, key, negativeMarker, c.negativeTTL)
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup display name: %w", err)
	}

	c.set(ctx, key, name, c.ttl)
	return name, nil
}

// Invalidate 刪除快取（名稱變更時呼叫）
func (c *CachedDirectory) Invalidate(ctx context.Context, userID int64) error {
	key := nameKeyPrefix + strconv.FormatInt(userID, 10)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("invalidate display name: %w", err)
	}
	return nil
}

// set 寫入快取，失敗不影響主流程
func (c *CachedDirectory) set(ctx context.Context, key, value string, ttl time.Duration) {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.Warn("redis set failed",
			"key", key,
			"error", err)
	}
}
