package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"topup_service/internal/model"
	"topup_service/internal/notify"
	"topup_service/internal/payment"
	rediskey "topup_service/pkg/redis"
)

// StatusCache 是轮询接口的可选读缓存。Put 必须丢弃 Version 低于已缓存版本的快照。
type StatusCache interface {
	Get(ctx context.Context, orderID uint) (rediskey.PaymentState, bool, error)
	Put(ctx context.Context, st rediskey.PaymentState) error
}

// Locker 防止同一订单并发发起支付。
type Locker interface {
	Acquire(ctx context.Context, orderID uint, token string) (bool, error)
	Release(ctx context.Context, orderID uint, token string) error
}

// Options 注入 Service 的协作者，nil 的可选项表示关闭对应能力。
type Options struct {
	References payment.References
	Gateway    payment.Gateway
	// Queriers 按网关提供主动查单能力，供轮询时对账
	Queriers map[payment.Vendor]payment.StatusQuerier

	Notifier      notify.Notifier
	NotifyTimeout time.Duration
	// NotifyConcurrency 为后台在途通知上限，0 使用默认值
	NotifyConcurrency int

	Cache  StatusCache
	Locker Locker

	// StrictTransitions 开启后终态订单不会被回调改写
	StrictTransitions bool

	CallbackURLs map[payment.Vendor]string
	RedirectURL  string

	Logger *slog.Logger
	Now    func() time.Time
}

// Service 承载订单生命周期：下单、发起支付、回调对账、状态查询。
type Service struct {
	db       *gorm.DB
	opts     Options
	log      *slog.Logger
	now      func() time.Time
	notifier *notify.Dispatcher
}

func NewService(db *gorm.DB, opts Options) *Service {
	if opts.References.Prefix() == "" {
		opts.References = payment.NewReferences("")
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	log = log.With("component", "order")
	return &Service{
		db:       db,
		opts:     opts,
		log:      log,
		now:      now,
		notifier: notify.NewDispatcher(opts.Notifier, opts.NotifyTimeout, opts.NotifyConcurrency, log),
	}
}

// References 暴露外部单号编解码器。
func (s *Service) References() payment.References { return s.opts.References }

// notify 后台投递，不阻塞请求。
func (s *Service) notify(ctx context.Context, ev notify.Event) {
	s.notifier.Dispatch(ctx, ev)
}

// Flush 等待在途通知投递完毕。
func (s *Service) Flush() { s.notifier.Wait() }

// load 按 ID 读取订单，区分不存在与存储错误。
func (s *Service) load(ctx context.Context, id uint) (*model.Order, error) {
	var o model.Order
	if err := s.db.WithContext(ctx).First(&o, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: load order %d: %v", ErrStorage, id, err)
	}
	return &o, nil
}

// cachePut 刷新状态缓存，失败只记录。
func (s *Service) cachePut(ctx context.Context, o *model.Order) {
	if s.opts.Cache == nil || o == nil {
		return
	}
	if err := s.opts.Cache.Put(ctx, stateOf(o)); err != nil {
		s.log.Warn("status cache put failed", "order_id", o.ID, "error", err)
	}
}

func stateOf(o *model.Order) rediskey.PaymentState {
	st := rediskey.PaymentState{
		OrderID:       o.ID,
		Version:       o.StatusVersion,
		PaymentStatus: o.PaymentStatus,
		OrderStatus:   string(o.OrderStatus),
		FinalAmount:   o.FinalAmount.String(),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if o.UserID != nil {
		st.UserID = *o.UserID
	}
	if o.PaymentID != nil {
		st.PaymentID = *o.PaymentID
	}
	return st
}

// formatIDR 千分位格式化金额。
func formatIDR(d decimal.Decimal) string {
	s := d.Round(0).String()
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg, s = true, s[1:]
	}
	out := make([]byte, 0, len(s)+len(s)/3)
	for i := range len(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
