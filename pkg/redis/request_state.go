package redis

import (
	"context"
	"strconv"
	"time"

	rd "github.com/redis/go-redis/v9"
)

const (
	// RequestPending 表示该幂等键的下单仍在进行。
	RequestPending = "pending"
	// RequestSuccess 表示下单已成功，OrderID 可用。
	RequestSuccess = "success"
)

// RequestState 幂等键在 Redis 内的状态。
type RequestState struct {
	Status  string
	OrderID uint
}

// luaClaimRequest 键不存在时写入 pending 并设置 TTL；返回 1 表示抢占成功。
const luaClaimRequest = `
local key = KEYS[1]
local ttlSec = tonumber(ARGV[1])
if redis.call('EXISTS', key) == 1 then
  return 0
end
redis.call('HSET', key, 'status', 'pending')
redis.call('EXPIRE', key, ttlSec)
return 1
`

// luaReleaseIfPending 仅当仍是 pending 时删除，已成功的键不会被误删。
const luaReleaseIfPending = `
local key = KEYS[1]
if redis.call('HGET', key, 'status') == 'pending' then
  return redis.call('DEL', key)
end
return 0
`

// ClaimRequest 抢占幂等键。claimed=false 时调用方应通过 GetRequestState 查看已有状态。
func ClaimRequest(ctx context.Context, rdb *rd.Client, key string, ttl time.Duration) (bool, error) {
	ttlSec := int64(ttl / time.Second)
	if ttlSec <= 0 {
		ttlSec = 1
	}
	n, err := rdb.Eval(ctx, luaClaimRequest, []string{key}, ttlSec).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CompleteRequest 记录下单成功及订单 ID，并刷新 TTL。
func CompleteRequest(ctx context.Context, rdb *rd.Client, key string, orderID uint, ttl time.Duration) error {
	pipe := rdb.TxPipeline()
	pipe.HSet(ctx, key,
		"status", RequestSuccess,
		"order_id", strconv.FormatUint(uint64(orderID), 10),
	)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// ReleaseRequest 下单失败后释放幂等键，允许客户端用同一个键重试。
func ReleaseRequest(ctx context.Context, rdb *rd.Client, key string) error {
	_, err := rdb.Eval(ctx, luaReleaseIfPending, []string{key}).Int()
	return err
}

// GetRequestState 查询幂等键当前状态。found=false 表示 key 不存在。
func GetRequestState(ctx context.Context, rdb *rd.Client, key string) (RequestState, bool, error) {
	m, err := rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return RequestState{}, false, err
	}
	if len(m) == 0 {
		return RequestState{}, false, nil
	}

	out := RequestState{Status: m["status"]}
	if out.Status == "" {
		out.Status = RequestPending
	}
	if raw := m["order_id"]; raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return RequestState{}, false, err
		}
		out.OrderID = uint(id)
	}
	return out, true, nil
}
