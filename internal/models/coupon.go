package models

import (
	"time"
)

// Coupon 优惠券模型
// 名称即兑换码，创建后不可修改；过期时间只在创建时写入
type Coupon struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name       string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_coupons_name" json:"name"`
	Kind       string    `gorm:"type:varchar(20);not null;check:chk_coupons_kind,kind IN ('specific','general')" json:"kind"`
	MaxUses    int       `gorm:"not null;check:chk_coupons_max_uses,max_uses >= 1" json:"max_uses"`
	UsageCount int       `gorm:"not null;default:0;check:chk_coupons_usage_count,usage_count >= 0 AND usage_count <= max_uses" json:"usage_count"`
	ExpiryDate time.Time `gorm:"not null;index:idx_coupons_active_expiry,priority:2" json:"expiry_date"`
	IsActive   bool      `gorm:"not null;index:idx_coupons_active_expiry,priority:1" json:"is_active"`
	CreatedBy  int64     `gorm:"not null;default:0" json:"created_by"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Assignments []CouponAssignment `gorm:"foreignKey:CouponID" json:"-"`
	Usages      []CouponUsage      `gorm:"foreignKey:CouponID" json:"-"`
}

// TableName 表名
func (Coupon) TableName() string {
	return "coupons"
}

// CouponKind 优惠券类型
const (
	CouponKindSpecific = "specific" // 指定用户
	CouponKindGeneral  = "general"  // 通用
)

// ValidCouponKind 是否为合法的优惠券类型
func ValidCouponKind(kind string) bool {
	return kind == CouponKindSpecific || kind == CouponKindGeneral
}

// IsGeneral 是否为通用券
func (c *Coupon) IsGeneral() bool {
	return c.Kind == CouponKindGeneral
}

// IsExpired 在 now 时刻是否已过期
func (c *Coupon) IsExpired(now time.Time) bool {
	return now.After(c.ExpiryDate)
}

// IsExhausted 使用次数是否已达上限
func (c *Coupon) IsExhausted() bool {
	return c.UsageCount >= c.MaxUses
}

// IsAvailable 在 now 时刻是否可兑换
func (c *Coupon) IsAvailable(now time.Time) bool {
	return c.IsActive && !c.IsExpired(now) && !c.IsExhausted()
}

// RemainingUses 剩余可用次数
func (c *Coupon) RemainingUses() int {
	if c.UsageCount >= c.MaxUses {
		return 0
	}
	return c.MaxUses - c.UsageCount
}

// CouponAssignment 指定券的分配关系
type CouponAssignment struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CouponID  int64     `gorm:"not null;uniqueIndex:idx_coupon_assignments_coupon_user,priority:1" json:"coupon_id"`
	UserID    int64     `gorm:"not null;uniqueIndex:idx_coupon_assignments_coupon_user,priority:2;index:idx_coupon_assignments_user" json:"user_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 表名
func (CouponAssignment) TableName() string {
	return "coupon_assignments"
}

// CouponUsage 兑换记录，每个用户对同一优惠券最多一条
type CouponUsage struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CouponID  int64     `gorm:"not null;uniqueIndex:idx_coupon_usages_coupon_user,priority:1" json:"coupon_id"`
	UserID    int64     `gorm:"not null;uniqueIndex:idx_coupon_usages_coupon_user,priority:2;index:idx_coupon_usages_user_used_at,priority:1" json:"user_id"`
	UsedAt    time.Time `gorm:"not null;index:idx_coupon_usages_user_used_at,priority:2" json:"used_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// 关联
	Coupon *Coupon `gorm:"foreignKey:CouponID" json:"coupon,omitempty"`
}

// TableName 表名
func (CouponUsage) TableName() string {
	return "coupon_usages"
}
