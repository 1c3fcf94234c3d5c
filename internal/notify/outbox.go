package notify

import (
	"context"
	"fmt"

	rd "github.com/redis/go-redis/v9"
)

// Outbox 把事件写入 Redis Stream，由 queue.Relay 异步转发到 Kafka。
type Outbox struct {
	rdb    *rd.Client
	stream string
}

func NewOutbox(rdb *rd.Client, stream string) *Outbox {
	return &Outbox{rdb: rdb, stream: stream}
}

func (o *Outbox) Notify(ctx context.Context, ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	err := o.rdb.XAdd(ctx, &rd.XAddArgs{
		Stream: o.stream,
		Values: EventFields(ev),
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", o.stream, err)
	}
	return nil
}

// EventFields 是事件在 Stream 中的字段布局，与 queue.ParseEvent 对应。
func EventFields(ev Event) map[string]any {
	return map[string]any{
		"id":          ev.ID,
		"kind":        ev.Kind,
		"order_id":    ev.OrderID,
		"text":        ev.Text,
		"occurred_at": ev.OccurredAt.UnixMilli(),
	}
}
