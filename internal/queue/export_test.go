package queue

import (
	"log/slog"
	"time"

	"topup_service/internal/notify"
)

// NewConsumerForTest 构造不连接 Kafka 的 Consumer，只用于 handle 测试。
func NewConsumerForTest(sink notify.Notifier) *Consumer {
	return &Consumer{sink: sink, timeout: time.Second, log: slog.Default()}
}
