package model

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User 账号信息由认证模块维护，订单侧只用 ID / Email / Role。
type User struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	Email string `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Name  string `gorm:"size:255" json:"name"`
	Role  string `gorm:"size:32;not null;default:user" json:"role"`
}

func (User) TableName() string { return "users" }
