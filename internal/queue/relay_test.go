package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topup_service/internal/notify"
)

const (
	testStream = "topup:notify_events"
	testGroup  = "relay-test"
)

// flakyPublisher 第一次发布失败，第二次在 gate 关闭前阻塞。
type flakyPublisher struct {
	mu       sync.Mutex
	attempts int
	events   []notify.Event
	blocked  chan struct{}
	gate     chan struct{}
}

func (p *flakyPublisher) Publish(ctx context.Context, ev notify.Event) error {
	p.mu.Lock()
	p.attempts++
	n := p.attempts
	p.mu.Unlock()
	switch n {
	case 1:
		return errors.New("kafka: leader not available")
	case 2:
		close(p.blocked)
		select {
		case <-p.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
	return nil
}

func (p *flakyPublisher) Published() []notify.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]notify.Event(nil), p.events...)
}

func TestRelay_AcksOnlyAfterPublish(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	pub := &flakyPublisher{blocked: make(chan struct{}), gate: make(chan struct{})}
	relay := NewRelay(rdb, pub, testStream, testGroup, "relay-1", slog.New(slog.NewTextHandler(io.Discard, nil)))
	done := make(chan struct{})
	go func() {
		defer close(done)
		relay.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	ev := notify.NewEvent(notify.KindPaymentUpdated, 12, "Payment Update!\nOrder ID: 12")
	require.NoError(t, notify.NewOutbox(rdb, testStream).Notify(context.Background(), ev))

	// 首次发布失败后消息仍在 pending，第二次发布进行中也未 ACK
	select {
	case <-pub.blocked:
	case <-time.After(10 * time.Second):
		t.Fatal("relay never retried the failed event")
	}
	pending, err := rdb.XPending(context.Background(), testStream, testGroup).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Count)
	n, err := rdb.XLen(context.Background(), testStream).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Empty(t, pub.Published())

	close(pub.gate)
	require.Eventually(t, func() bool {
		n, err := rdb.XLen(context.Background(), testStream).Result()
		return err == nil && n == 0
	}, 5*time.Second, 20*time.Millisecond, "published event is acked and deleted")

	pending, err = rdb.XPending(context.Background(), testStream, testGroup).Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
	published := pub.Published()
	require.Len(t, published, 1)
	assert.Equal(t, ev.ID, published[0].ID)
	assert.Equal(t, ev.Text, published[0].Text)
}

func TestRelay_DropsMalformedEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	require.NoError(t, rdb.XAdd(context.Background(), &rd.XAddArgs{
		Stream: testStream,
		Values: map[string]any{"id": "x", "kind": "payment_updated"},
	}).Err())

	ctx, cancel := context.WithCancel(context.Background())
	pub := &flakyPublisher{blocked: make(chan struct{}), gate: make(chan struct{})}
	done := make(chan struct{})
	go func() {
		defer close(done)
		NewRelay(rdb, pub, testStream, testGroup, "relay-1", slog.New(slog.NewTextHandler(io.Discard, nil))).Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool {
		n, err := rdb.XLen(context.Background(), testStream).Result()
		return err == nil && n == 0
	}, 5*time.Second, 20*time.Millisecond)
	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Zero(t, pub.attempts)
}
