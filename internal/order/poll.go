package order

import (
	"context"
	"time"

	"topup_service/internal/metrics"
	"topup_service/internal/model"
	"topup_service/internal/notify"
	"topup_service/internal/payment"
	rediskey "topup_service/pkg/redis"
)

// StatusView 是轮询接口返回的订单快照。
type StatusView struct {
	ID            uint              `json:"id"`
	PaymentStatus string            `json:"paymentStatus"`
	OrderStatus   model.OrderStatus `json:"orderStatus"`
	PaymentID     *string           `json:"paymentId"`
	Amount        string            `json:"amount"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// Terminal 是否已到终态，客户端据此停止轮询。
func (v StatusView) Terminal() bool { return v.OrderStatus.Terminal() }

func viewOf(o *model.Order) StatusView {
	return StatusView{
		ID:            o.ID,
		PaymentStatus: o.PaymentStatus,
		OrderStatus:   o.OrderStatus,
		PaymentID:     o.PaymentID,
		Amount:        o.FinalAmount.String(),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func viewOfState(st rediskey.PaymentState) StatusView {
	v := StatusView{
		ID:            st.OrderID,
		PaymentStatus: st.PaymentStatus,
		OrderStatus:   model.OrderStatus(st.OrderStatus),
		Amount:        st.FinalAmount,
		CreatedAt:     st.CreatedAt,
		UpdatedAt:     st.UpdatedAt,
	}
	if st.PaymentID != "" {
		id := st.PaymentID
		v.PaymentID = &id
	}
	return v
}

// PaymentStatus 返回订单当前状态，只读。
// refresh 为 true 且网关支持主动查单时，先向网关查询并按回调同样的规则落库；
// 查询失败降级为返回已存状态。
func (s *Service) PaymentStatus(ctx context.Context, caller *Caller, orderID uint, refresh bool) (StatusView, error) {
	if caller == nil {
		return StatusView{}, ErrUnauthenticated
	}
	if orderID == 0 {
		return StatusView{}, ErrValidation
	}

	if !refresh && s.opts.Cache != nil {
		st, ok, err := s.opts.Cache.Get(ctx, orderID)
		switch {
		case err != nil:
			s.log.Warn("status cache get failed", "order_id", orderID, "error", err)
		case ok:
			if st.UserID == 0 || st.UserID != caller.UserID {
				return StatusView{}, ErrForbidden
			}
			return viewOfState(st), nil
		}
	}

	o, err := s.load(ctx, orderID)
	if err != nil {
		return StatusView{}, err
	}
	if !o.BelongsTo(caller.UserID) {
		return StatusView{}, ErrForbidden
	}

	if refresh {
		if fresh, ok := s.reconcile(ctx, o); ok {
			o = fresh
		}
	} else {
		s.cachePut(ctx, o)
	}
	return viewOf(o), nil
}

// reconcile 向网关查询最新状态并落库，状态变化时发送通知。
func (s *Service) reconcile(ctx context.Context, o *model.Order) (*model.Order, bool) {
	if o.PaymentReference == "" || o.OrderStatus.Terminal() {
		return nil, false
	}
	vendor := payment.Vendor(o.PaymentVendor)
	q, ok := s.opts.Queriers[vendor]
	if !ok || q == nil {
		return nil, false
	}

	vs, err := q.QueryStatus(ctx, o.PaymentReference)
	if err != nil {
		metrics.CallbacksTotal.WithLabelValues(string(vendor)+"_query", "error").Inc()
		s.log.Warn("payment status query failed, serving stored status", "order_id", o.ID,
			"vendor", vendor, "reference", o.PaymentReference, "error", err)
		return nil, false
	}

	res := payment.Map(vendor, vs.Status, vs.FraudStatus)
	if res.PaymentStatus == o.PaymentStatus && res.OrderStatus == o.OrderStatus {
		return o, true
	}
	fresh, outcome, err := s.applyStatus(ctx, o.ID, res)
	if err != nil {
		s.log.Warn("persist queried status failed", "order_id", o.ID, "error", err)
		return nil, false
	}
	metrics.CallbacksTotal.WithLabelValues(string(vendor)+"_query", outcome).Inc()
	if outcome != OutcomeApplied {
		return fresh, fresh != nil
	}
	s.log.Info("order payment status reconciled", "order_id", o.ID, "vendor", vendor,
		"vendor_status", vs.Status, "payment_status", res.PaymentStatus, "order_status", res.OrderStatus)
	s.notify(ctx, notify.NewEvent(notify.KindPaymentUpdated, o.ID, paymentMessage(fresh, vendor)))
	return fresh, true
}
