package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topup_service/internal/notify"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (r *recordingNotifier) Notify(_ context.Context, ev notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func TestParseEvent_RoundTrip(t *testing.T) {
	ev := notify.NewEvent(notify.KindPaymentUpdated, 42, "Payment Update!\nOrder ID: 42")
	ev.OccurredAt = ev.OccurredAt.Truncate(time.Millisecond)

	got, err := ParseEvent(notify.EventFields(ev))
	require.NoError(t, err)
	assert.Equal(t, ev, got)
}

func TestParseEvent_RedisStringValues(t *testing.T) {
	values := map[string]interface{}{
		"id":          "e-1",
		"kind":        notify.KindOrderCreated,
		"order_id":    "7",
		"text":        "New Order!",
		"occurred_at": "1700000000000",
	}
	ev, err := ParseEvent(values)
	require.NoError(t, err)
	assert.Equal(t, uint(7), ev.OrderID)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), ev.OccurredAt)
}

func TestParseEvent_Rejects(t *testing.T) {
	base := func() map[string]interface{} {
		return map[string]interface{}{
			"id": "e-1", "kind": "order_created", "order_id": "7", "text": "x", "occurred_at": "1",
		}
	}
	tests := []struct {
		name   string
		mutate func(map[string]interface{})
	}{
		{"missing id", func(m map[string]interface{}) { delete(m, "id") }},
		{"bad order id", func(m map[string]interface{}) { m["order_id"] = "seven" }},
		{"bad timestamp", func(m map[string]interface{}) { m["occurred_at"] = "yesterday" }},
		{"empty text", func(m map[string]interface{}) { m["text"] = "" }},
		{"unsupported type", func(m map[string]interface{}) { m["kind"] = []int{1} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := base()
			tt.mutate(m)
			_, err := ParseEvent(m)
			assert.Error(t, err)
		})
	}
}

func TestConsumer_HandleDeliversValidEvents(t *testing.T) {
	sink := &recordingNotifier{}
	c := NewConsumerForTest(sink)

	ev := notify.NewEvent(notify.KindOrderCreated, 3, "New Guest Order!")
	b, err := json.Marshal(ev)
	require.NoError(t, err)

	c.handle(context.Background(), b)
	c.handle(context.Background(), []byte("not json"))
	c.handle(context.Background(), []byte(`{"id":"","kind":"x","text":"y"}`))

	require.Len(t, sink.events, 1)
	assert.Equal(t, ev.ID, sink.events[0].ID)
}

func TestConsumer_HandleSwallowsSinkErrors(t *testing.T) {
	sink := &recordingNotifier{err: errors.New("telegram down")}
	c := NewConsumerForTest(sink)

	ev := notify.NewEvent(notify.KindPaymentUpdated, 3, "Payment Update!")
	b, _ := json.Marshal(ev)
	assert.NotPanics(t, func() { c.handle(context.Background(), b) })
	assert.Len(t, sink.events, 1)
}
