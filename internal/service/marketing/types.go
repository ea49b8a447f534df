package marketing

import (
	"math"
	"time"

	"github.com/dumeirei/coupon-platform-backend/internal/models"
	"github.com/dumeirei/coupon-platform-backend/internal/service/notify"
)

// NameMaxLength 优惠券名称最大长度（字符）
const NameMaxLength = 100

// MaxUsesLimit max_uses 与 usage_count 列为 INTEGER
const MaxUsesLimit = math.MaxInt32

// CreateCouponRequest 创建优惠券请求
type CreateCouponRequest struct {
	Name          string    `json:"name" binding:"required,notblank"`
	Kind          string    `json:"kind" binding:"required"`
	ExpiryDate    time.Time `json:"expiry_date" binding:"required"`
	AssignedUsers []int64   `json:"assigned_users,omitempty"`
	MaxUses       *int      `json:"max_uses,omitempty"`
}

// ListCouponsRequest 优惠券列表请求，PageSize 为 0 时返回全部
type ListCouponsRequest struct {
	Page     int
	PageSize int
	Kind     string
	IsActive *bool
	Keyword  string
}

// UserRef 用户引用，无法解析时 Missing 为 true
type UserRef struct {
	ID      int64  `json:"id"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Missing bool   `json:"missing,omitempty"`
}

// UsageEntry 兑换记录
type UsageEntry struct {
	User   *UserRef  `json:"user"`
	UsedAt time.Time `json:"used_at"`
}

// CouponDetail 优惠券详情
type CouponDetail struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	Kind          string        `json:"kind"`
	MaxUses       int           `json:"max_uses"`
	UsageCount    int           `json:"usage_count"`
	RemainingUses int           `json:"remaining_uses"`
	ExpiryDate    time.Time     `json:"expiry_date"`
	IsActive      bool          `json:"is_active"`
	IsExpired     bool          `json:"is_expired"`
	IsAvailable   bool          `json:"is_available"`
	CreatedBy     int64         `json:"created_by"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	AssignedUsers []*UserRef    `json:"assigned_users,omitempty"`
	UsedBy        []*UsageEntry `json:"used_by,omitempty"`
}

// CouponListResponse 优惠券列表响应
type CouponListResponse struct {
	List  []*CouponDetail `json:"list"`
	Total int64           `json:"total"`
}

// CouponSnapshot 核销回执与历史中的优惠券快照
type CouponSnapshot struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Kind       string    `json:"kind"`
	UsageCount int       `json:"usage_count"`
	MaxUses    int       `json:"max_uses"`
	IsActive   bool      `json:"is_active"`
	ExpiryDate time.Time `json:"expiry_date"`
}

// RedemptionReceipt 核销回执
type RedemptionReceipt struct {
	Coupon     *CouponSnapshot `json:"coupon"`
	User       *UserRef        `json:"user"`
	RedeemedAt time.Time       `json:"redeemed_at"`
}

// HistoryItem 用户兑换历史
type HistoryItem struct {
	Coupon     *CouponSnapshot `json:"coupon"`
	RedeemedAt time.Time       `json:"redeemed_at"`
}

// SweepResult 自动停用结果
type SweepResult struct {
	Exhausted int64 `json:"exhausted"`
	Expired   int64 `json:"expired"`
}

// Total 停用总数
func (r *SweepResult) Total() int64 {
	return r.Exhausted + r.Expired
}

func toDetail(c *models.Coupon, now time.Time) *CouponDetail {
	return &CouponDetail{
		ID:            c.ID,
		Name:          c.Name,
		Kind:          c.Kind,
		MaxUses:       c.MaxUses,
		UsageCount:    c.UsageCount,
		RemainingUses: c.RemainingUses(),
		ExpiryDate:    c.ExpiryDate,
		IsActive:      c.IsActive,
		IsExpired:     c.IsExpired(now),
		IsAvailable:   c.IsAvailable(now),
		CreatedBy:     c.CreatedBy,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func toSnapshot(c *models.Coupon) *CouponSnapshot {
	return &CouponSnapshot{
		ID:         c.ID,
		Name:       c.Name,
		Kind:       c.Kind,
		UsageCount: c.UsageCount,
		MaxUses:    c.MaxUses,
		IsActive:   c.IsActive,
		ExpiryDate: c.ExpiryDate,
	}
}

func toUserRef(u *models.User) *UserRef {
	return &UserRef{ID: u.ID, Name: u.Name, Email: u.Email}
}

func toCouponInfo(c *models.Coupon) notify.CouponInfo {
	return notify.CouponInfo{
		ID:         c.ID,
		Name:       c.Name,
		Kind:       c.Kind,
		UsageCount: c.UsageCount,
		MaxUses:    c.MaxUses,
		IsActive:   c.IsActive,
		ExpiryDate: c.ExpiryDate,
	}
}
