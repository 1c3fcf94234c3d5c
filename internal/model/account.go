package model

import "time"

// Account 站内会员或管理员账号，密码只存 bcrypt 摘要。
type Account struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Username     string `gorm:"size:64;not null;uniqueIndex" json:"username"`
	Email        string `gorm:"size:128" json:"email"`
	PasswordHash string `gorm:"size:72;not null" json:"-"`
	Role         string `gorm:"size:16;not null;default:USER" json:"role"`
}

func (Account) TableName() string { return "accounts" }
