package handler

import (
	"sync"
	"time"
)

// 每個連接的指令限流
//
// 球拍每個 tick 最多移動一格，60/s 已足夠；突發容量讓按鍵連發不被誤擋。
const (
	commandRate  = 60
	commandBurst = 20
)

// TokenBucket 令牌桶限流器
//
// 令牌以 refillRate 每秒的速率累積，最多 capacity 個；每個指令取走一個。
type TokenBucket struct {
	capacity   float64
	tokens     float64
	refillRate float64
	lastRefill time.Time
	mu         sync.Mutex
}

// NewTokenBucket 建立令牌桶，初始為滿
func NewTokenBucket(capacity, refillRate float64) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow 檢查是否允許一個指令
func (tb *TokenBucket) Allow() bool {
	return tb.allowAt(time.Now())
}

func (tb *TokenBucket) allowAt(now time.Time) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if elapsed := now.Sub(tb.lastRefill); elapsed > 0 {
		tb.tokens = min(tb.capacity, tb.tokens+elapsed.Seconds()*tb.refillRate)
		tb.lastRefill = now
	}

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// Tokens 當前令牌數
func (tb *TokenBucket) Tokens() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.tokens
}
