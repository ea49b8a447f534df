// Package repository 提供数据访问层
package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/dumeirei/coupon-platform-backend/internal/models"
)

// CouponRepository 优惠券仓储
type CouponRepository struct {
	db *gorm.DB
}

// NewCouponRepository 创建优惠券仓储
func NewCouponRepository(db *gorm.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

// WithTx 返回使用指定事务的仓储
func (r *CouponRepository) WithTx(tx *gorm.DB) *CouponRepository {
	return &CouponRepository{db: tx}
}

// Create 创建优惠券
func (r *CouponRepository) Create(ctx context.Context, coupon *models.Coupon) error {
	return r.db.WithContext(ctx).Create(coupon).Error
}

// GetByID 根据 ID 获取优惠券
func (r *CouponRepository) GetByID(ctx context.Context, id int64) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.WithContext(ctx).First(&coupon, id).Error
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// GetByName 根据名称获取优惠券
func (r *CouponRepository) GetByName(ctx context.Context, name string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&coupon).Error
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// ExistsByName 检查名称是否已存在
func (r *CouponRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Coupon{}).Where("name = ?", name).Count(&count).Error
	return count > 0, err
}

// ToggleActive 反转启用状态，不修改其他业务字段
func (r *CouponRepository) ToggleActive(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Model(&models.Coupon{}).
		Where("id = ?", id).
		Update("is_active", gorm.Expr("NOT is_active"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ConsumeUse 条件更新：仅当优惠券启用、未过期且未用尽时使用次数加一
// 通用券在达到上限时同时停用。返回受影响行数，0 表示条件不满足
func (r *CouponRepository) ConsumeUse(ctx context.Context, id int64, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Coupon{}).
		Where("id = ? AND is_active = ? AND usage_count < max_uses AND expiry_date >= ?", id, true, now).
		Updates(map[string]interface{}{
			"usage_count": gorm.Expr("usage_count + 1"),
			"is_active": gorm.Expr(
				"CASE WHEN kind = ? AND usage_count + 1 >= max_uses THEN ? ELSE is_active END",
				models.CouponKindGeneral, false,
			),
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}

// DeactivateExhausted 停用已用尽的通用券
func (r *CouponRepository) DeactivateExhausted(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Coupon{}).
		Where("is_active = ? AND kind = ? AND usage_count >= max_uses", true, models.CouponKindGeneral).
		Updates(map[string]interface{}{"is_active": false, "updated_at": now})
	return result.RowsAffected, result.Error
}

// DeactivateExpired 停用已过期的优惠券
func (r *CouponRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Coupon{}).
		Where("is_active = ? AND expiry_date < ?", true, now).
		Updates(map[string]interface{}{"is_active": false, "updated_at": now})
	return result.RowsAffected, result.Error
}

// CouponListParams 优惠券列表查询参数
type CouponListParams struct {
	Offset   int
	Limit    int
	Kind     string
	IsActive *bool
	Keyword  string
}

// List 获取优惠券列表，Limit 小于等于 0 时返回全部
func (r *CouponRepository) List(ctx context.Context, params CouponListParams) ([]*models.Coupon, int64, error) {
	var coupons []*models.Coupon
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Coupon{})

	if params.Kind != "" {
		query = query.Where("kind = ?", params.Kind)
	}
	if params.IsActive != nil {
		query = query.Where("is_active = ?", *params.IsActive)
	}
	if kw := strings.TrimSpace(params.Keyword); kw != "" {
		query = query.Where("name LIKE ?", "%"+kw+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("created_at DESC").Order("id DESC")
	if params.Limit > 0 {
		query = query.Offset(params.Offset).Limit(params.Limit)
	}
	if err := query.Find(&coupons).Error; err != nil {
		return nil, 0, err
	}

	return coupons, total, nil
}

// ListAvailableForUser 获取用户当前可兑换且未使用过的优惠券
// 通用券对所有人可见，指定券只对被分配的用户可见
func (r *CouponRepository) ListAvailableForUser(ctx context.Context, userID int64, kind string, now time.Time) ([]*models.Coupon, error) {
	var coupons []*models.Coupon

	assigned := r.db.Model(&models.CouponAssignment{}).Select("coupon_id").Where("user_id = ?", userID)
	used := r.db.Model(&models.CouponUsage{}).Select("coupon_id").Where("user_id = ?", userID)

	query := r.db.WithContext(ctx).Model(&models.Coupon{}).
		Where("is_active = ? AND expiry_date >= ? AND usage_count < max_uses", true, now).
		Where("(kind = ? OR id IN (?))", models.CouponKindGeneral, assigned).
		Where("id NOT IN (?)", used)
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}

	err := query.Order("expiry_date ASC").Order("id ASC").Find(&coupons).Error
	return coupons, err
}

// CouponStatusCounts 按状态统计
type CouponStatusCounts struct {
	Total      int64 `json:"total"`
	Active     int64 `json:"active"`
	Expired    int64 `json:"expired"`
	Inactive   int64 `json:"inactive"`
	TotalUsage int64 `json:"total_usage"`
}

// CountByStatus 统计各状态数量
// 过期优先于停用：已过期的优惠券只计入 expired
func (r *CouponRepository) CountByStatus(ctx context.Context, now time.Time) (*CouponStatusCounts, error) {
	var counts CouponStatusCounts
	err := r.db.WithContext(ctx).Model(&models.Coupon{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN is_active = ? AND expiry_date >= ? THEN 1 ELSE 0 END), 0) AS active,
			COALESCE(SUM(CASE WHEN expiry_date < ? THEN 1 ELSE 0 END), 0) AS expired,
			COALESCE(SUM(CASE WHEN is_active = ? AND expiry_date >= ? THEN 1 ELSE 0 END), 0) AS inactive,
			COALESCE(SUM(usage_count), 0) AS total_usage`,
			true, now, now, false, now).
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return &counts, nil
}

// TopByUsage 按使用次数获取前 N 个优惠券
func (r *CouponRepository) TopByUsage(ctx context.Context, n int) ([]*models.Coupon, error) {
	var coupons []*models.Coupon
	err := r.db.WithContext(ctx).
		Order("usage_count DESC").
		Order("id ASC").
		Limit(n).
		Find(&coupons).Error
	return coupons, err
}

// UserCouponCounts 单个用户的优惠券统计
type UserCouponCounts struct {
	UserID  int64 `json:"user_id"`
	Total   int64 `json:"total"`
	Active  int64 `json:"active"`
	Expired int64 `json:"expired"`
	Used    int64 `json:"used"`
}

// userCouponRelation 用户相关的优惠券：被分配的指定券与使用过的通用券
const userCouponRelation = `SELECT coupon_id, user_id FROM coupon_assignments
	UNION
	SELECT coupon_id, user_id FROM coupon_usages`

// CountForUsers 按用户统计相关优惠券数量
// userID 大于 0 时只统计该用户
func (r *CouponRepository) CountForUsers(ctx context.Context, userID int64, now time.Time) ([]*UserCouponCounts, error) {
	var rows []*UserCouponCounts

	query := r.db.WithContext(ctx).
		Table("("+userCouponRelation+") AS rel").
		Select(`rel.user_id AS user_id,
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN c.is_active = ? AND c.expiry_date >= ? THEN 1 ELSE 0 END), 0) AS active,
			COALESCE(SUM(CASE WHEN c.expiry_date < ? THEN 1 ELSE 0 END), 0) AS expired`,
			true, now, now).
		Joins("JOIN coupons c ON c.id = rel.coupon_id")
	if userID > 0 {
		query = query.Where("rel.user_id = ?", userID)
	}

	if err := query.Group("rel.user_id").Order("rel.user_id ASC").Scan(&rows).Error; err != nil {
		return nil, err
	}

	used, err := r.countUsagesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		row.Used = used[row.UserID]
	}
	return rows, nil
}

func (r *CouponRepository) countUsagesByUser(ctx context.Context, userID int64) (map[int64]int64, error) {
	type usageRow struct {
		UserID int64
		Used   int64
	}
	var rows []usageRow

	query := r.db.WithContext(ctx).Model(&models.CouponUsage{}).
		Select("user_id, COUNT(*) AS used")
	if userID > 0 {
		query = query.Where("user_id = ?", userID)
	}
	if err := query.Group("user_id").Scan(&rows).Error; err != nil {
		return nil, err
	}

	result := make(map[int64]int64, len(rows))
	for _, row := range rows {
		result[row.UserID] = row.Used
	}
	return result, nil
}
