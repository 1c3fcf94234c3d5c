package redis

import "fmt"

// PaymentStateKey 存储订单支付状态快照，供轮询接口读取。
func PaymentStateKey(orderID uint) string {
	return fmt.Sprintf("topup:payment:state:%d", orderID)
}

// InitiationLockKey 标记某订单正在发起支付，防止并发重复下单到网关。
func InitiationLockKey(orderID uint) string {
	return fmt.Sprintf("topup:payment:init_lock:%d", orderID)
}

// RateLimitKey 限流键：scope 为路由分组，subject 为 user:{id} 或 ip:{addr}。
func RateLimitKey(scope, subject string) string {
	return fmt.Sprintf("rate_limit:%s:%s", scope, subject)
}
