package order

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"topup_service/internal/metrics"
	"topup_service/internal/model"
	"topup_service/internal/payment"
)

// InitiateResult 是发起支付的返回。
type InitiateResult struct {
	PaymentID  string `json:"paymentId"`
	PaymentURL string `json:"paymentUrl"`
	Reference  string `json:"orderId"`
}

// InitiatePayment 为已有订单向网关申请支付句柄并落库。
// 网关失败时订单保持不变。
func (s *Service) InitiatePayment(ctx context.Context, caller *Caller, orderID uint, method string) (InitiateResult, error) {
	if caller == nil {
		return InitiateResult{}, ErrUnauthenticated
	}
	method = strings.TrimSpace(method)
	if orderID == 0 || method == "" {
		return InitiateResult{}, fmt.Errorf("%w: order ID and payment method are required", ErrValidation)
	}
	if s.opts.Gateway == nil {
		return InitiateResult{}, fmt.Errorf("%w: no payment gateway configured", ErrGateway)
	}

	o, err := s.load(ctx, orderID)
	if err != nil {
		return InitiateResult{}, err
	}
	if !o.BelongsTo(caller.UserID) {
		return InitiateResult{}, ErrForbidden
	}
	if o.PaymentStatus == model.PaymentSuccess || o.OrderStatus == model.OrderCompleted {
		return InitiateResult{}, ErrAlreadyPaid
	}

	if s.opts.Locker != nil {
		token := uuid.NewString()
		ok, err := s.opts.Locker.Acquire(ctx, o.ID, token)
		switch {
		case err != nil:
			// Redis 不可用时降级为无锁
			s.log.Warn("initiation lock unavailable", "order_id", o.ID, "error", err)
		case !ok:
			return InitiateResult{}, ErrInitiationInProgress
		default:
			defer func() {
				if err := s.opts.Locker.Release(context.WithoutCancel(ctx), o.ID, token); err != nil {
					s.log.Warn("initiation lock release failed", "order_id", o.ID, "error", err)
				}
			}()
		}
	}

	vendor := s.opts.Gateway.Vendor()
	now := s.now()
	ref := s.opts.References.Build(o.ID, now)
	req := payment.CheckoutRequest{
		Reference:    ref,
		OrderID:      o.ID,
		Amount:       o.FinalAmount.Round(0).IntPart(),
		Units:        o.Amount,
		Method:       method,
		CustomerName: caller.DisplayName(),
		CallbackURL:  s.opts.CallbackURLs[vendor],
		RedirectURL:  s.opts.RedirectURL,
	}
	co, err := s.opts.Gateway.CreateCheckout(ctx, req)
	if err == nil && co.PaymentID == "" && co.CheckoutURL == "" {
		err = fmt.Errorf("%s returned neither payment id nor checkout url", vendor)
	}
	if err != nil {
		metrics.PaymentInitiationTotal.WithLabelValues(string(vendor), "failed").Inc()
		s.log.Error("payment initiation failed", "order_id", o.ID, "vendor", vendor, "reference", ref, "error", err)
		return InitiateResult{}, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	handle := co.PaymentID
	if handle == "" {
		handle = co.CheckoutURL
	}
	// 重新发起时履约状态回到 PENDING，与新的支付状态保持一致；
	// 期间已到账的订单不会被覆盖。
	updates := map[string]any{
		"payment_id":        handle,
		"payment_status":    model.PaymentPending,
		"order_status":      model.OrderPending,
		"payment_vendor":    string(vendor),
		"payment_reference": ref,
		"updated_at":        now,
		"status_version":    gorm.Expr("status_version + 1"),
	}
	tx := s.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND payment_status <> ? AND order_status <> ?", o.ID, model.PaymentSuccess, model.OrderCompleted).
		Updates(updates)
	if tx.Error != nil {
		return InitiateResult{}, fmt.Errorf("%w: save payment handle: %v", ErrStorage, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return InitiateResult{}, ErrAlreadyPaid
	}
	if o.OrderStatus == model.OrderFailed {
		s.log.Info("payment re-initiated for failed order", "order_id", o.ID, "reference", ref)
	}
	if fresh, err := s.load(ctx, o.ID); err == nil {
		s.cachePut(ctx, fresh)
	}

	metrics.PaymentInitiationTotal.WithLabelValues(string(vendor), "success").Inc()
	s.log.Info("payment initiated", "order_id", o.ID, "vendor", vendor, "reference", ref, "payment_id", handle)

	return InitiateResult{PaymentID: co.PaymentID, PaymentURL: co.CheckoutURL, Reference: ref}, nil
}
