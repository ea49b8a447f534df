// Package models 定义数据模型
package models

import (
	"time"
)

// User 用户模型
type User struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string     `gorm:"type:varchar(100);not null" json:"name"`
	Email        string     `gorm:"type:varchar(255);not null;uniqueIndex:idx_users_email" json:"email"`
	Phone        *string    `gorm:"type:varchar(20)" json:"phone,omitempty"`
	PasswordHash string     `gorm:"type:varchar(255);not null" json:"-"`
	Role         string     `gorm:"type:varchar(20);not null;default:'user';index" json:"role"`
	IsActive     bool       `gorm:"not null" json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (User) TableName() string {
	return "users"
}

// UserRole 用户角色
const (
	UserRoleUser  = "user"  // 普通用户
	UserRoleAdmin = "admin" // 管理员
)

// ValidUserRole 是否为合法角色
func ValidUserRole(role string) bool {
	return role == UserRoleUser || role == UserRoleAdmin
}

// IsAdmin 是否为管理员
func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

// All 返回需要迁移的全部模型
func All() []interface{} {
	return []interface{}{
		&User{},
		&Coupon{},
		&CouponAssignment{},
		&CouponUsage{},
	}
}
