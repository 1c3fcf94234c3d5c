package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersCreatedTotal 下单数，kind: member/guest
	OrdersCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topup_orders_created_total",
			Help: "Total number of top-up orders created",
		},
		[]string{"kind"},
	)

	// FinalAmountMismatchTotal 客户端提交的 finalAmount 与服务端估算不一致
	FinalAmountMismatchTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "topup_final_amount_mismatch_total",
			Help: "Orders whose submitted finalAmount differs from the server-side expectation",
		},
	)

	PaymentInitiationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topup_payment_initiation_total",
			Help: "Payment initiations by vendor and result",
		},
		[]string{"vendor", "result"}, // result: success/failed
	)

	// CallbacksTotal outcome: applied/ignored/stale/malformed/bad_signature/error
	CallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topup_payment_callbacks_total",
			Help: "Inbound payment notifications by vendor and outcome",
		},
		[]string{"vendor", "outcome"},
	)

	CallbackDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "topup_payment_callback_duration_seconds",
			Help:    "Duration of inbound payment notification handling",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"vendor"},
	)

	StatusTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topup_order_status_writes_total",
			Help: "Order status writes by resulting payment and order status",
		},
		[]string{"payment_status", "order_status"},
	)

	NotifyFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topup_notify_failures_total",
			Help: "Notifications that could not be delivered",
		},
		[]string{"kind"},
	)

	// RelayEventsTotal outbox relay 结果：published / retry / dropped
	RelayEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topup_notify_relay_events_total",
			Help: "Notification events moved from the Redis stream to Kafka",
		},
		[]string{"result"},
	)
)
