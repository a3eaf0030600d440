package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	rediskey "color_shop/pkg/redis"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// rateLimitScript 滑动窗口限流（ZSET，原子执行）
// KEYS[1]=限流key，ARGV[1]=当前毫秒时间戳，ARGV[2]=窗口毫秒数，ARGV[3]=member，ARGV[4]=上限
// 返回 {是否放行, 放行时为剩余次数/限流时为需等待的毫秒数}
var rateLimitScript = rd.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local windowMs = tonumber(ARGV[2])
local limit = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - windowMs)

local count = redis.call('ZCARD', key)
if count < limit then
  redis.call('ZADD', key, now, ARGV[3])
  redis.call('PEXPIRE', key, windowMs)
  return {1, limit - count - 1}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local wait = windowMs
if oldest[2] then
  wait = tonumber(oldest[2]) + windowMs - now
end
return {0, wait}
`)

// RedisRateLimit 按已认证用户限流，取不到身份时按 IP。Redis 出错时放行。
func RedisRateLimit(rdb *rd.Client, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rediskey.OrderRateLimitIPKey(c.ClientIP())
		if id, ok := IdentityFrom(c); ok && id.UserID > 0 {
			key = rediskey.OrderRateLimitUserKey(id.UserID)
		}

		now := time.Now()
		member := fmt.Sprintf("%d-%d", now.UnixMilli(), now.UnixNano())
		res, err := rateLimitScript.Run(c.Request.Context(), rdb, []string{key},
			now.UnixMilli(), window.Milliseconds(), member, limit).Int64Slice()
		if err != nil || len(res) != 2 {
			logrus.WithError(err).WithField("key", key).Warn("rate limit unavailable, allowing request")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		if res[0] == 0 {
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", strconv.FormatInt(retryAfterSeconds(res[1]), 10))
			abortJSON(c, http.StatusTooManyRequests, "Too many requests, please try again later")
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(res[1], 10))
		c.Next()
	}
}

// retryAfterSeconds 毫秒向上取整为秒，至少 1 秒。
func retryAfterSeconds(waitMs int64) int64 {
	secs := (waitMs + 999) / 1000
	if secs < 1 {
		return 1
	}
	return secs
}
