package payment

import "topup_service/internal/model"

// Vendor 标识一家支付网关，回调入口按路径选择。
type Vendor string

const (
	VendorMidtrans Vendor = "midtrans"
	VendorDana     Vendor = "dana"
)

// Result 是映射后的两轴状态。
type Result struct {
	PaymentStatus string            `json:"paymentStatus"`
	OrderStatus   model.OrderStatus `json:"orderStatus"`
}

var (
	resultSuccess = Result{PaymentStatus: model.PaymentSuccess, OrderStatus: model.OrderCompleted}
	resultFailed  = Result{PaymentStatus: model.PaymentFailed, OrderStatus: model.OrderFailed}
	resultPending = Result{PaymentStatus: model.PaymentPending, OrderStatus: model.OrderPending}
	resultUnknown = Result{PaymentStatus: model.PaymentUnknown, OrderStatus: model.OrderPending}
)

// statusTables 按网关划分的状态表。键为 "status" 或 "status/fraud"，
// 带 fraud 的键优先匹配。
var statusTables = map[Vendor]map[string]Result{
	VendorMidtrans: {
		"capture/challenge": {PaymentStatus: model.PaymentChallenge, OrderStatus: model.OrderPending},
		"capture/accept":    resultSuccess,
		"capture":           resultPending,
		"settlement":        resultSuccess,
		"cancel":            resultFailed,
		"deny":              resultFailed,
		"expire":            resultFailed,
		"pending":           resultPending,
	},
	VendorDana: {
		"SUCCESS":   resultSuccess,
		"COMPLETED": resultSuccess,
		"FAILED":    resultFailed,
		"CANCELLED": resultFailed,
		"EXPIRED":   resultFailed,
		"PENDING":   resultPending,
	},
}

// Map 将网关状态翻译为内部状态。未识别的输入降级为 UNKNOWN/PENDING，从不报错。
func Map(v Vendor, status, fraud string) Result {
	table, ok := statusTables[v]
	if !ok {
		return MapAny(status, fraud)
	}
	return lookup(table, status, fraud)
}

// MapAny 在不知道来源网关时按全部网关的并集匹配。
func MapAny(status, fraud string) Result {
	for _, v := range []Vendor{VendorMidtrans, VendorDana} {
		if _, ok := statusTables[v][status]; ok {
			return lookup(statusTables[v], status, fraud)
		}
	}
	return resultUnknown
}

func lookup(table map[string]Result, status, fraud string) Result {
	if fraud != "" {
		if r, ok := table[status+"/"+fraud]; ok {
			return r
		}
	}
	if r, ok := table[status]; ok {
		return r
	}
	return resultUnknown
}
