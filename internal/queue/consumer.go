package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"topup_service/internal/notify"
)

// Consumer 从 Kafka 读取通知事件并投递到下游（Telegram）。
// 投递失败只记录，不重试：通知本身是尽力而为的旁路。
type Consumer struct {
	r       *kafka.Reader
	sink    notify.Notifier
	timeout time.Duration
	log     *slog.Logger
}

func NewConsumer(brokers []string, topic, groupID string, sink notify.Notifier, timeout time.Duration, log *slog.Logger) *Consumer {
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 1e6,
		}),
		sink:    sink,
		timeout: timeout,
		log:     log,
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

func (c *Consumer) Run(ctx context.Context) {
	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			return // ctx cancel / 连接断开等
		}
		c.handle(ctx, m.Value)
	}
}

func (c *Consumer) handle(ctx context.Context, value []byte) {
	var ev notify.Event
	if err := json.Unmarshal(value, &ev); err != nil {
		c.log.Warn("consumer unmarshal", "error", err)
		return
	}
	if err := ev.Validate(); err != nil {
		c.log.Warn("consumer drop invalid event", "error", err)
		return
	}
	notify.Deliver(ctx, c.sink, ev, c.timeout, c.log)
}
