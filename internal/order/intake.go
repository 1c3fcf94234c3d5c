package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"topup_service/internal/metrics"
	"topup_service/internal/model"
	"topup_service/internal/notify"
)

// CreateOrderInput 是下单请求体。Discount 用指针区分「未传」与 0。
type CreateOrderInput struct {
	Amount        int64           `json:"amount"`
	Price         decimal.Decimal `json:"price"`
	Discount      *float64        `json:"discount"`
	FinalAmount   decimal.Decimal `json:"finalAmount"`
	TopupMethod   string          `json:"topupMethod"`
	GameUsername  string          `json:"gameUsername"`
	GamePassword  string          `json:"gamePassword"`
	PlayerID      string          `json:"playerId"`
	EstimatedTime string          `json:"estimatedTime"`
}

// Validate 必填：amount、price、finalAmount 非零；discount 必须出现，允许为 0。
func (in CreateOrderInput) Validate() error {
	var missing []string
	if in.Amount == 0 {
		missing = append(missing, "amount")
	}
	if in.Price.IsZero() {
		missing = append(missing, "price")
	}
	if in.Discount == nil {
		missing = append(missing, "discount")
	}
	if in.FinalAmount.IsZero() {
		missing = append(missing, "finalAmount")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", ErrValidation, strings.Join(missing, ", "))
	}
	if in.Amount < 0 {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if in.Price.IsNegative() || in.FinalAmount.IsNegative() {
		return fmt.Errorf("%w: price and finalAmount must be positive", ErrValidation)
	}
	if d := *in.Discount; d < 0 || d >= 1 {
		return fmt.Errorf("%w: discount must be in [0, 1)", ErrValidation)
	}
	return nil
}

// CreateOrder 创建订单（会员或游客）。caller 为 nil 时是游客单。
// 通知失败不影响下单结果。
func (s *Service) CreateOrder(ctx context.Context, caller *Caller, in CreateOrderInput) (*model.Order, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	o := &model.Order{
		Amount:        in.Amount,
		Discount:      *in.Discount,
		FinalAmount:   in.FinalAmount,
		TopupMethod:   in.TopupMethod,
		GameUsername:  in.GameUsername,
		GamePassword:  in.GamePassword,
		PlayerID:      in.PlayerID,
		EstimatedTime: in.EstimatedTime,
		OrderStatus:   model.OrderPending,
		PaymentStatus: model.PaymentPending,
	}
	kind := "guest"
	if caller != nil {
		uid := caller.UserID
		o.UserID = &uid
		kind = "member"
	}

	s.checkFinalAmount(ctx, in)

	if err := s.db.WithContext(ctx).Create(o).Error; err != nil {
		return nil, fmt.Errorf("%w: create order: %v", ErrStorage, err)
	}
	metrics.OrdersCreatedTotal.WithLabelValues(kind).Inc()
	s.log.Info("order created", "order_id", o.ID, "kind", kind, "amount", o.Amount, "final_amount", o.FinalAmount.String())

	s.cachePut(ctx, o)
	s.notify(ctx, notify.NewEvent(notify.KindOrderCreated, o.ID, intakeMessage(caller, in, o)))
	return o, nil
}

// checkFinalAmount 用价目表（缺失时用客户端 price）估算应付金额，偏差超过 1 IDR 只记录不拒绝。
func (s *Service) checkFinalAmount(ctx context.Context, in CreateOrderInput) {
	base := in.Price
	var p model.Product
	err := s.db.WithContext(ctx).Where("amount = ?", in.Amount).First(&p).Error
	switch {
	case err == nil:
		catalog := decimal.NewFromInt(p.Price)
		if !catalog.Equal(in.Price) {
			s.log.Warn("submitted price differs from catalog", "amount", in.Amount,
				"price", in.Price.String(), "catalog_price", catalog.String())
		}
		base = catalog
	case !errors.Is(err, gorm.ErrRecordNotFound):
		s.log.Warn("catalog lookup failed", "amount", in.Amount, "error", err)
	}

	expected := ExpectedFinalAmount(base, *in.Discount)
	if expected.Sub(in.FinalAmount).Abs().GreaterThan(decimal.NewFromInt(1)) {
		metrics.FinalAmountMismatchTotal.Inc()
		s.log.Warn("finalAmount mismatch", "amount", in.Amount, "submitted", in.FinalAmount.String(),
			"expected", expected.String(), "discount", *in.Discount)
	}
}

// ExpectedFinalAmount = round(price × (1 − discount))
func ExpectedFinalAmount(price decimal.Decimal, discount float64) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(1).Sub(decimal.NewFromFloat(discount))).Round(0)
}

func intakeMessage(caller *Caller, in CreateOrderInput, o *model.Order) string {
	discountPct := decimal.NewFromFloat(*in.Discount).Mul(decimal.NewFromInt(100)).String()
	if caller == nil {
		return fmt.Sprintf("New Guest Order!\nAmount: %d Robux\nPrice: Rp %s\nDiscount: %s%%\nFinal Amount: Rp %s\nOrder ID: %d",
			in.Amount, formatIDR(in.Price), discountPct, formatIDR(in.FinalAmount), o.ID)
	}
	return fmt.Sprintf("New Order!\nUser ID: %d\nAmount: %d Robux\nPrice: Rp %s\nDiscount: %s%%\nFinal Amount: Rp %s\nTop-up Method: %s\nEstimated Time: %s\nOrder ID: %d",
		caller.UserID, in.Amount, formatIDR(in.Price), discountPct, formatIDR(in.FinalAmount),
		in.TopupMethod, in.EstimatedTime, o.ID)
}
