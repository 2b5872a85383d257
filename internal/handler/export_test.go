package handler

import "time"

// AllowAt 以指定時間檢查令牌桶
func (tb *TokenBucket) AllowAt(now time.Time) bool {
	return tb.allowAt(now)
}
