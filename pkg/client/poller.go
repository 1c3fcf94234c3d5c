package client

import (
	"context"
	"time"
)

// PollUntilTerminal 每隔 interval 查询一次订单状态，直到 COMPLETED/FAILED 或 ctx 结束。
// 单次查询失败会交给 onUpdate（err 非 nil）后继续轮询。
func (c *Client) PollUntilTerminal(ctx context.Context, orderID uint, interval time.Duration, onUpdate func(OrderStatus, error)) (OrderStatus, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	timer := time.NewTimer(0)
	defer timer.Stop()

	var last OrderStatus
	for {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-timer.C:
		}

		st, err := c.PaymentStatus(ctx, orderID, false)
		if onUpdate != nil {
			onUpdate(st, err)
		}
		if err == nil {
			last = st
			if st.Terminal() {
				return st, nil
			}
		}
		timer.Reset(interval)
	}
}
