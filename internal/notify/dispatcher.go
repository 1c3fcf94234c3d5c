package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"topup_service/internal/metrics"
)

// DefaultConcurrency 是同时在途的通知上限。
const DefaultConcurrency = 32

// Dispatcher 在后台 goroutine 中调用 Deliver，请求路径不等待通知完成。
// 在途数量达到上限时新事件直接丢弃并计数。
type Dispatcher struct {
	n       Notifier
	timeout time.Duration
	log     *slog.Logger
	sem     chan struct{}
	wg      sync.WaitGroup
}

func NewDispatcher(n Notifier, timeout time.Duration, limit int, log *slog.Logger) *Dispatcher {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{n: n, timeout: timeout, log: log, sem: make(chan struct{}, limit)}
}

// Dispatch 立即返回；投递结果只体现在日志与指标中。
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) {
	if d == nil || d.n == nil {
		return
	}
	select {
	case d.sem <- struct{}{}:
	default:
		metrics.NotifyFailuresTotal.WithLabelValues(ev.Kind).Inc()
		d.log.Warn("notification dropped, too many in flight", "event_id", ev.ID, "kind", ev.Kind, "order_id", ev.OrderID)
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() { <-d.sem }()
		Deliver(ctx, d.n, ev, d.timeout, d.log)
	}()
}

// Wait 等待全部在途通知结束，用于优雅退出与测试。
func (d *Dispatcher) Wait() {
	if d != nil {
		d.wg.Wait()
	}
}
