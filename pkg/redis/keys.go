package redis

import "fmt"

// OrderRateLimitUserKey 已登录用户的下单限流窗口。
func OrderRateLimitUserKey(userID uint) string {
	return fmt.Sprintf("color_shop:rate_limit:orders:user:%d", userID)
}

// OrderRateLimitIPKey 无法识别用户时按来源 IP 限流。
func OrderRateLimitIPKey(ip string) string {
	return fmt.Sprintf("color_shop:rate_limit:orders:ip:%s", ip)
}

// IdempotencyKey 将客户端 Idempotency-Key 映射到一次下单请求，按用户隔离。
func IdempotencyKey(userID uint, idemKey string) string {
	return fmt.Sprintf("color_shop:idem:orders:%d:%s", userID, idemKey)
}
