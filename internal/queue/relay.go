package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	rd "github.com/redis/go-redis/v9"

	"topup_service/internal/metrics"
	"topup_service/internal/notify"
)

// Publisher 是 Relay 的下游，生产环境为 *Producer。
type Publisher interface {
	Publish(ctx context.Context, ev notify.Event) error
}

// Relay 将 Redis Stream 中的通知事件异步转发到 Kafka。
// 语义：发布 Kafka 成功后才 ACK Stream，失败则保留消息等待重试。
type Relay struct {
	rdb       *rd.Client
	publisher Publisher
	log       *slog.Logger

	stream   string
	group    string
	consumer string
}

func NewRelay(rdb *rd.Client, publisher Publisher, stream, group, consumer string, log *slog.Logger) *Relay {
	if log == nil {
		log = slog.Default()
	}
	return &Relay{
		rdb:       rdb,
		publisher: publisher,
		log:       log,
		stream:    stream,
		group:     group,
		consumer:  consumer,
	}
}

// relay 轮询参数
const (
	relayBatch       = 16
	relayBlock       = 2 * time.Second
	relayRetryDelay  = 300 * time.Millisecond
	relayPublishTime = 5 * time.Second
)

// Run 阻塞直到 ctx 结束。每轮优先重放本消费者的 pending 消息，没有时再阻塞读新消息。
func (r *Relay) Run(ctx context.Context) {
	if err := r.ensureGroup(ctx); err != nil {
		r.log.Error("relay ensure group", "stream", r.stream, "group", r.group, "error", err)
		return
	}
	r.log.Info("notification relay started", "stream", r.stream, "group", r.group, "consumer", r.consumer)

	for ctx.Err() == nil {
		msgs, err := r.next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			r.log.Warn("relay read", "error", err)
			sleepCtx(ctx, relayRetryDelay)
			continue
		}
		for _, xm := range msgs {
			if err := r.processOne(ctx, xm); err != nil {
				// 不 ACK，下一轮从 pending 重放
				metrics.RelayEventsTotal.WithLabelValues("retry").Inc()
				r.log.Warn("relay publish", "id", xm.ID, "error", err)
				sleepCtx(ctx, relayRetryDelay)
				break
			}
		}
	}
}

func (r *Relay) next(ctx context.Context) ([]rd.XMessage, error) {
	msgs, err := r.readGroup(ctx, "0", 0)
	if err != nil || len(msgs) > 0 {
		return msgs, err
	}
	return r.readGroup(ctx, ">", relayBlock)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (r *Relay) ensureGroup(ctx context.Context) error {
	err := r.rdb.XGroupCreateMkStream(ctx, r.stream, r.group, "0").Err()
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

func (r *Relay) readGroup(ctx context.Context, streamID string, block time.Duration) ([]rd.XMessage, error) {
	streams, err := r.rdb.XReadGroup(ctx, &rd.XReadGroupArgs{
		Group:    r.group,
		Consumer: r.consumer,
		Streams:  []string{r.stream, streamID},
		Count:    relayBatch,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var out []rd.XMessage
	for _, s := range streams {
		out = append(out, s.Messages...)
	}
	return out, nil
}

func (r *Relay) processOne(ctx context.Context, xm rd.XMessage) error {
	ev, err := ParseEvent(xm.Values)
	if err != nil {
		// 脏消息 ACK 后丢弃
		metrics.RelayEventsTotal.WithLabelValues("dropped").Inc()
		r.log.Warn("relay drop malformed event", "id", xm.ID, "error", err)
		if ackErr := r.ackAndDelete(ctx, xm.ID); ackErr != nil {
			return fmt.Errorf("drop %s: %w", xm.ID, ackErr)
		}
		return nil
	}

	pubCtx, cancel := context.WithTimeout(ctx, relayPublishTime)
	defer cancel()
	if err := r.publisher.Publish(pubCtx, ev); err != nil {
		return fmt.Errorf("publish event %s (order %d): %w", ev.ID, ev.OrderID, err)
	}
	metrics.RelayEventsTotal.WithLabelValues("published").Inc()
	return r.ackAndDelete(ctx, xm.ID)
}

func (r *Relay) ackAndDelete(ctx context.Context, id string) error {
	pipe := r.rdb.TxPipeline()
	pipe.XAck(ctx, r.stream, r.group, id)
	pipe.XDel(ctx, r.stream, id)
	_, err := pipe.Exec(ctx)
	return err
}

// ParseEvent 将 Stream 字段还原为通知事件，字段布局见 notify.EventFields。
func ParseEvent(values map[string]interface{}) (notify.Event, error) {
	id, err := getStreamString(values, "id")
	if err != nil {
		return notify.Event{}, err
	}
	kind, err := getStreamString(values, "kind")
	if err != nil {
		return notify.Event{}, err
	}
	orderStr, err := getStreamString(values, "order_id")
	if err != nil {
		return notify.Event{}, err
	}
	text, err := getStreamString(values, "text")
	if err != nil {
		return notify.Event{}, err
	}
	occurredStr, err := getStreamString(values, "occurred_at")
	if err != nil {
		return notify.Event{}, err
	}

	orderID, err := strconv.ParseUint(orderStr, 10, 64)
	if err != nil {
		return notify.Event{}, fmt.Errorf("invalid order_id %q", orderStr)
	}
	occurredMs, err := strconv.ParseInt(occurredStr, 10, 64)
	if err != nil {
		return notify.Event{}, fmt.Errorf("invalid occurred_at %q", occurredStr)
	}

	ev := notify.Event{
		ID:         id,
		Kind:       kind,
		OrderID:    uint(orderID),
		Text:       text,
		OccurredAt: time.UnixMilli(occurredMs).UTC(),
	}
	if err := ev.Validate(); err != nil {
		return notify.Event{}, err
	}
	return ev, nil
}

func getStreamString(values map[string]interface{}, key string) (string, error) {
	v, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing field %s", key)
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float64:
		return strconv.FormatInt(int64(x), 10), nil
	default:
		return "", fmt.Errorf("unsupported field type %s: %T", key, v)
	}
}
