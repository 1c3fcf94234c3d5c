package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *rd.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestPaymentState_RoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestClient(t)
	cache := NewStatusCache(rdb, 30*time.Second)

	_, ok, err := cache.Get(ctx, 42)
	require.NoError(t, err)
	assert.False(t, ok)

	created := time.UnixMilli(1700000000123).UTC()
	st := PaymentState{
		OrderID:       42,
		Version:       3,
		UserID:        7,
		PaymentStatus: "SUCCESS",
		OrderStatus:   "COMPLETED",
		PaymentID:     "snap-1",
		FinalAmount:   "67500",
		CreatedAt:     created,
		UpdatedAt:     created.Add(time.Minute),
	}
	require.NoError(t, cache.Put(ctx, st))

	got, ok, err := cache.Get(ctx, 42)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, st, got)
	assert.Equal(t, 30*time.Second, mr.TTL(PaymentStateKey(42)))
}

func TestPaymentState_DropsOlderVersion(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestClient(t)

	newer := PaymentState{OrderID: 9, Version: 2, PaymentStatus: "FAILED", OrderStatus: "FAILED"}
	older := PaymentState{OrderID: 9, Version: 1, PaymentStatus: "SUCCESS", OrderStatus: "COMPLETED"}

	written, err := PutPaymentState(ctx, rdb, newer, time.Minute)
	require.NoError(t, err)
	assert.True(t, written)
	written, err = PutPaymentState(ctx, rdb, older, time.Minute)
	require.NoError(t, err)
	assert.False(t, written)

	got, ok, err := GetPaymentState(ctx, rdb, 9)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "FAILED", got.OrderStatus)
	assert.Equal(t, int64(2), got.Version)

	// 同版本重复写入允许覆盖，例如轮询回填
	written, err = PutPaymentState(ctx, rdb, newer, 0)
	require.NoError(t, err)
	assert.True(t, written)
}

func TestOrderLock(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestClient(t)
	lock := NewOrderLock(rdb, 10*time.Second)

	ok, err := lock.Acquire(ctx, 5, "token-a")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = lock.Acquire(ctx, 5, "token-b")
	require.NoError(t, err)
	assert.False(t, ok, "held lock is exclusive")

	// 错误 token 释放不应删除锁
	require.NoError(t, lock.Release(ctx, 5, "token-b"))
	assert.True(t, mr.Exists(InitiationLockKey(5)))
	v, err := mr.Get(InitiationLockKey(5))
	require.NoError(t, err)
	assert.Equal(t, "token-a", v)

	require.NoError(t, lock.Release(ctx, 5, "token-a"))
	assert.False(t, mr.Exists(InitiationLockKey(5)))

	ok, err = lock.Acquire(ctx, 5, "token-b")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(11 * time.Second)
	ok, err = lock.Acquire(ctx, 5, "token-c")
	require.NoError(t, err)
	assert.True(t, ok, "lock expires after its TTL")
}
