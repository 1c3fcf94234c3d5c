package model

import (
	"time"

	"gorm.io/gorm"
)

// Product 充值价目：Amount 个虚拟币对应的标价
type Product struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name        string `gorm:"size:128;not null" json:"name"`
	Amount      int64  `gorm:"not null;uniqueIndex" json:"amount"`
	Price       int64  `gorm:"not null" json:"price"` // 单位：IDR
	Quantity    int64  `gorm:"not null;default:0" json:"quantity"`
	Description string `gorm:"size:255" json:"description"`
}

func (Product) TableName() string { return "products" }

// DefaultProducts 是首次启动时写入的价目表。
func DefaultProducts() []Product {
	return []Product{
		{Name: "Robux 80", Amount: 80, Price: 15000, Quantity: 100, Description: "80 Robux for Roblox"},
		{Name: "Robux 400", Amount: 400, Price: 75000, Quantity: 50, Description: "400 Robux for Roblox"},
		{Name: "Robux 800", Amount: 800, Price: 150000, Quantity: 25, Description: "800 Robux for Roblox"},
	}
}
