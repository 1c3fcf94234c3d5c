package redis

import (
	"context"
	"strconv"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// PaymentState 对应 Redis 内的订单支付状态结构。
type PaymentState struct {
	OrderID       uint
	Version       int64 // 对应 orders.status_version
	UserID        int64 // 0 表示游客订单
	PaymentStatus string
	OrderStatus   string
	PaymentID     string
	FinalAmount   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// GetPaymentState 查询订单状态快照。found=false 表示 key 不存在。
func GetPaymentState(ctx context.Context, rdb *rd.Client, orderID uint) (PaymentState, bool, error) {
	m, err := rdb.HGetAll(ctx, PaymentStateKey(orderID)).Result()
	if err != nil {
		return PaymentState{}, false, err
	}
	if len(m) == 0 || m["order_status"] == "" {
		return PaymentState{}, false, nil
	}

	version, _ := strconv.ParseInt(m["version"], 10, 64)
	userID, _ := strconv.ParseInt(m["user_id"], 10, 64)
	createdMs, _ := strconv.ParseInt(m["created_at"], 10, 64)
	updatedMs, _ := strconv.ParseInt(m["updated_at"], 10, 64)
	return PaymentState{
		OrderID:       orderID,
		Version:       version,
		UserID:        userID,
		PaymentStatus: m["payment_status"],
		OrderStatus:   m["order_status"],
		PaymentID:     m["payment_id"],
		FinalAmount:   m["final_amount"],
		CreatedAt:     time.UnixMilli(createdMs).UTC(),
		UpdatedAt:     time.UnixMilli(updatedMs).UTC(),
	}, true, nil
}

// luaPutIfNewer 仅当新快照版本不低于已缓存版本时覆盖写入。
// KEYS[1]=快照key，ARGV[1]=版本，ARGV[2]=TTL(ms，0 表示不过期)，ARGV[3..]=字段/值
// 返回 1 表示写入，0 表示版本落后被丢弃
const luaPutIfNewer = `
local cur = redis.call('HGET', KEYS[1], 'version')
if cur and tonumber(cur) > tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], unpack(ARGV, 3))
local ttl = tonumber(ARGV[2])
if ttl > 0 then
  redis.call('PEXPIRE', KEYS[1], ttl)
end
return 1
`

// PutPaymentState 写入状态快照并刷新 TTL。版本落后于缓存时不写，返回 false。
func PutPaymentState(ctx context.Context, rdb *rd.Client, st PaymentState, ttl time.Duration) (bool, error) {
	res, err := rdb.Eval(ctx, luaPutIfNewer, []string{PaymentStateKey(st.OrderID)},
		st.Version, ttl.Milliseconds(),
		"user_id", st.UserID,
		"payment_status", st.PaymentStatus,
		"order_status", st.OrderStatus,
		"payment_id", st.PaymentID,
		"final_amount", st.FinalAmount,
		"created_at", st.CreatedAt.UnixMilli(),
		"updated_at", st.UpdatedAt.UnixMilli(),
	).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// StatusCache 把上面两个函数绑定到同一个客户端和 TTL 上。
type StatusCache struct {
	rdb *rd.Client
	ttl time.Duration
}

func NewStatusCache(rdb *rd.Client, ttl time.Duration) *StatusCache {
	return &StatusCache{rdb: rdb, ttl: ttl}
}

func (c *StatusCache) Get(ctx context.Context, orderID uint) (PaymentState, bool, error) {
	return GetPaymentState(ctx, c.rdb, orderID)
}

// Put 写入快照；乱序的旧版本被静默丢弃。
func (c *StatusCache) Put(ctx context.Context, st PaymentState) error {
	_, err := PutPaymentState(ctx, c.rdb, st, c.ttl)
	return err
}
