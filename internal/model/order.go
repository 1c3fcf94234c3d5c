package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderStatus 是面向业务的履约状态。
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderFailed    OrderStatus = "FAILED"
)

// Valid 判断是否为已知履约状态。
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderCompleted, OrderFailed:
		return true
	}
	return false
}

// Terminal 终态：COMPLETED / FAILED
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderFailed
}

// 支付状态取自网关最近一次上报，与 OrderStatus 是两条独立的轴。
const (
	PaymentPending   = "PENDING"
	PaymentSuccess   = "SUCCESS"
	PaymentFailed    = "FAILED"
	PaymentUnknown   = "UNKNOWN"
	PaymentChallenge = "CHALLENGE"
)

// Order 充值订单
type Order struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// UserID 为空表示游客订单
	UserID      *int64          `gorm:"index" json:"userId"`
	Amount      int64           `gorm:"not null" json:"amount"`
	Discount    float64         `gorm:"not null;default:0" json:"discount"`
	FinalAmount decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"finalAmount"` // IDR，按客户端提交原样落库

	TopupMethod   string `gorm:"size:64" json:"topupMethod"`
	GameUsername  string `gorm:"size:128" json:"gameUsername"`
	GamePassword  string `gorm:"size:255" json:"-"`
	PlayerID      string `gorm:"size:128" json:"playerId"`
	EstimatedTime string `gorm:"size:64" json:"estimatedTime"`

	OrderStatus   OrderStatus `gorm:"size:16;not null;default:PENDING;index" json:"orderStatus"`
	PaymentStatus string      `gorm:"size:16;not null;default:PENDING" json:"paymentStatus"`
	// PaymentID 为网关支付句柄或收银台 URL
	PaymentID        *string `gorm:"size:512" json:"paymentId"`
	PaymentVendor    string  `gorm:"size:16" json:"paymentVendor,omitempty"`
	PaymentReference string  `gorm:"size:64;index" json:"paymentReference,omitempty"`

	// StatusVersion 每次状态写入自增，状态缓存据此丢弃乱序写入
	StatusVersion int64 `gorm:"not null;default:0" json:"-"`
}

func (Order) TableName() string { return "orders" }

// BelongsTo 判断订单是否属于指定用户；游客订单不属于任何人。
func (o *Order) BelongsTo(userID int64) bool {
	return o.UserID != nil && *o.UserID == userID
}
