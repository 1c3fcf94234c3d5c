package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"topup_service/internal/metrics"
)

// ErrNotification 通知失败。只在本包内记录，永远不向调用方传播。
var ErrNotification = errors.New("notification failed")

// 事件类型
const (
	KindOrderCreated   = "order_created"
	KindPaymentUpdated = "payment_updated"
)

// Event 是一条面向运营频道的通知。
type Event struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	OrderID    uint      `json:"order_id"`
	Text       string    `json:"text"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent 生成带 ID 与时间戳的事件。
func NewEvent(kind string, orderID uint, text string) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		OrderID:    orderID,
		Text:       text,
		OccurredAt: time.Now().UTC(),
	}
}

// Validate 做最小字段校验，防止消费者处理脏消息。
func (e Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("id is required")
	}
	if e.Kind == "" {
		return fmt.Errorf("kind is required")
	}
	if e.Text == "" {
		return fmt.Errorf("text is required")
	}
	return nil
}

// Notifier 投递一条通知。
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Nop 丢弃全部通知。
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }

// Deliver 以独立超时调用 n，吞掉错误与 panic，只记录日志和指标。
// 调用方的 ctx 被取消不会中断通知。
func Deliver(ctx context.Context, n Notifier, ev Event, timeout time.Duration, log *slog.Logger) {
	if n == nil {
		return
	}
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			metrics.NotifyFailuresTotal.WithLabelValues(ev.Kind).Inc()
			log.Error("notification panicked", "event_id", ev.ID, "order_id", ev.OrderID, "panic", fmt.Sprint(r))
		}
	}()

	if err := n.Notify(ctx, ev); err != nil {
		metrics.NotifyFailuresTotal.WithLabelValues(ev.Kind).Inc()
		log.Warn("notification failed", "event_id", ev.ID, "kind", ev.Kind, "order_id", ev.OrderID,
			"error", errors.Join(ErrNotification, err).Error())
	}
}
