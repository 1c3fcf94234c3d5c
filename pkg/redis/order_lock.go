package redis

import (
	"context"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// luaReleaseLockIfMatch 仅当锁值匹配 token 时才删除，避免误删他人持有的锁。
const luaReleaseLockIfMatch = `
local lockKey = KEYS[1]
local token = ARGV[1]
if redis.call('GET', lockKey) == token then
  return redis.call('DEL', lockKey)
end
return 0
`

// OrderLock 是按订单维度的短期互斥锁。
type OrderLock struct {
	rdb *rd.Client
	ttl time.Duration
}

func NewOrderLock(rdb *rd.Client, ttl time.Duration) *OrderLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &OrderLock{rdb: rdb, ttl: ttl}
}

// Acquire SETNX 占锁，已被占用时返回 false。
func (l *OrderLock) Acquire(ctx context.Context, orderID uint, token string) (bool, error) {
	return l.rdb.SetNX(ctx, InitiationLockKey(orderID), token, l.ttl).Result()
}

// Release 安全释放锁。
func (l *OrderLock) Release(ctx context.Context, orderID uint, token string) error {
	_, err := l.rdb.Eval(ctx, luaReleaseLockIfMatch, []string{InitiationLockKey(orderID)}, token).Int()
	return err
}
