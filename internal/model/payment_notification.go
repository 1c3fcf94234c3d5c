package model

import (
	"time"

	"gorm.io/datatypes"
)

// PaymentNotification 记录每一次网关回调的原始报文，便于对账与排查。
type PaymentNotification struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	Vendor        string         `gorm:"size:16;not null;index" json:"vendor"`
	Reference     string         `gorm:"size:64;index" json:"reference"`
	OrderID       uint           `gorm:"index" json:"orderId"`
	VendorStatus  string         `gorm:"size:32" json:"vendorStatus"`
	PaymentStatus string         `gorm:"size:16" json:"paymentStatus"`
	OrderStatus   OrderStatus    `gorm:"size:16" json:"orderStatus"`
	Outcome       string         `gorm:"size:32;not null" json:"outcome"` // applied / ignored / stale
	Payload       datatypes.JSON `json:"payload"`
}

func (PaymentNotification) TableName() string { return "payment_notifications" }

// All 返回需要 AutoMigrate 的全部模型。
func All() []any {
	return []any{&Account{}, &Order{}, &Product{}, &PaymentNotification{}}
}
