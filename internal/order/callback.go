package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"topup_service/internal/metrics"
	"topup_service/internal/model"
	"topup_service/internal/notify"
	"topup_service/internal/payment"
)

// 回调处理结果
const (
	OutcomeApplied = "applied"
	OutcomeIgnored = "ignored" // 订单不存在
	OutcomeStale   = "stale"   // 严格模式下终态不被改写
)

// CallbackResult 是回调处理后的摘要，直接作为响应体返回。
type CallbackResult struct {
	OrderID       uint              `json:"orderId"`
	PaymentStatus string            `json:"paymentStatus"`
	OrderStatus   model.OrderStatus `json:"orderStatus"`
	Outcome       string            `json:"-"`
}

// ApplyNotification 处理一次网关回调：关联 → 验签 → 映射 → 覆盖写 → 通知。
// 只有关联失败和验签失败会返回 4xx 类错误；同一报文重复投递结果一致。
func (s *Service) ApplyNotification(ctx context.Context, integ payment.Integration, body []byte) (CallbackResult, error) {
	start := time.Now()
	vendor := string(integ.Vendor)
	defer func() {
		metrics.CallbackDuration.WithLabelValues(vendor).Observe(time.Since(start).Seconds())
	}()

	n, err := integ.Decode(body)
	if err != nil {
		metrics.CallbacksTotal.WithLabelValues(vendor, "malformed").Inc()
		s.log.Warn("callback payload unreadable", "vendor", vendor, "error", err)
		return CallbackResult{}, fmt.Errorf("%w: %v", ErrMalformedReference, err)
	}
	s.log.Info("payment notification received", "vendor", vendor, "reference", n.Reference,
		"status", n.Status, "fraud_status", n.FraudStatus)

	orderID, err := s.opts.References.Parse(n.Reference)
	if err != nil {
		metrics.CallbacksTotal.WithLabelValues(vendor, "malformed").Inc()
		s.log.Warn("callback reference does not match expected format", "vendor", vendor,
			"reference", n.Reference, "error", err)
		return CallbackResult{}, fmt.Errorf("%w: %v", ErrMalformedReference, err)
	}

	if err := integ.Verify(n); err != nil {
		metrics.CallbacksTotal.WithLabelValues(vendor, "bad_signature").Inc()
		s.log.Error("SECURITY: callback signature rejected", "vendor", vendor, "reference", n.Reference,
			"order_id", orderID, "error", err)
		return CallbackResult{}, fmt.Errorf("%w: %v", ErrSignature, err)
	}

	res := payment.Map(integ.Vendor, n.Status, n.FraudStatus)
	o, outcome, err := s.applyStatus(ctx, orderID, res)
	if err != nil {
		metrics.CallbacksTotal.WithLabelValues(vendor, "error").Inc()
		return CallbackResult{}, err
	}
	metrics.CallbacksTotal.WithLabelValues(vendor, outcome).Inc()
	s.audit(ctx, n, orderID, res, outcome)

	out := CallbackResult{OrderID: orderID, PaymentStatus: res.PaymentStatus, OrderStatus: res.OrderStatus, Outcome: outcome}
	switch outcome {
	case OutcomeIgnored:
		s.log.Warn("callback for unknown order ignored", "vendor", vendor, "order_id", orderID)
		return out, nil
	case OutcomeStale:
		s.log.Warn("callback would move terminal order, ignored", "vendor", vendor, "order_id", orderID,
			"current_order_status", o.OrderStatus, "mapped_order_status", res.OrderStatus)
		out.PaymentStatus, out.OrderStatus = o.PaymentStatus, o.OrderStatus
		return out, nil
	}

	s.log.Info("order payment status updated", "order_id", orderID, "payment_status", res.PaymentStatus,
		"order_status", res.OrderStatus, "vendor", vendor)
	s.notify(ctx, notify.NewEvent(notify.KindPaymentUpdated, orderID, paymentMessage(o, integ.Vendor)))
	return out, nil
}

// applyStatus 单行覆盖写 payment_status / order_status / updated_at，后写者胜。
// 严格模式下只允许 PENDING → 任意，或终态写回同一终态。
func (s *Service) applyStatus(ctx context.Context, orderID uint, res payment.Result) (*model.Order, string, error) {
	db := s.db.WithContext(ctx)
	q := db.Model(&model.Order{}).Where("id = ?", orderID)
	if s.opts.StrictTransitions {
		q = q.Where("order_status IN ?", []model.OrderStatus{model.OrderPending, res.OrderStatus})
	}
	tx := q.Updates(map[string]any{
		"payment_status": res.PaymentStatus,
		"order_status":   res.OrderStatus,
		"updated_at":     s.now(),
		"status_version": gorm.Expr("status_version + 1"),
	})
	if tx.Error != nil {
		return nil, "", fmt.Errorf("%w: update order %d: %v", ErrStorage, orderID, tx.Error)
	}

	o, err := s.load(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, OutcomeIgnored, nil
		}
		return nil, "", err
	}
	if tx.RowsAffected == 0 {
		return o, OutcomeStale, nil
	}
	metrics.StatusTransitionsTotal.WithLabelValues(res.PaymentStatus, string(res.OrderStatus)).Inc()
	s.cachePut(ctx, o)
	return o, OutcomeApplied, nil
}

// audit 记录原始回调报文，失败只记录日志。
func (s *Service) audit(ctx context.Context, n payment.Notification, orderID uint, res payment.Result, outcome string) {
	rec := &model.PaymentNotification{
		Vendor:        string(n.Vendor),
		Reference:     n.Reference,
		OrderID:       orderID,
		VendorStatus:  n.Status,
		PaymentStatus: res.PaymentStatus,
		OrderStatus:   res.OrderStatus,
		Outcome:       outcome,
		Payload:       datatypes.JSON(n.Raw),
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		s.log.Warn("payment notification audit failed", "order_id", orderID, "error", err)
	}
}

// Notifications 按时间倒序返回某订单收到的回调记录。
func (s *Service) Notifications(ctx context.Context, caller *Caller, orderID uint) ([]model.PaymentNotification, error) {
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	var list []model.PaymentNotification
	err := s.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id DESC").Find(&list).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return list, nil
}

func paymentMessage(o *model.Order, vendor payment.Vendor) string {
	user := "Guest"
	if o.UserID != nil {
		user = fmt.Sprintf("#%d", *o.UserID)
	}
	return fmt.Sprintf("Payment Update!\nOrder ID: %d\nPayment Status: %s\nOrder Status: %s\nAmount: Rp %s\nUser: %s\nPayment Method: %s",
		o.ID, o.PaymentStatus, o.OrderStatus, formatIDR(o.FinalAmount), user, vendorLabel(vendor))
}

func vendorLabel(v payment.Vendor) string {
	switch v {
	case payment.VendorDana:
		return "DANA"
	case payment.VendorMidtrans:
		return "Midtrans"
	}
	return string(v)
}
