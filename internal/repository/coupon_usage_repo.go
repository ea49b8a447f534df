package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/dumeirei/coupon-platform-backend/internal/models"
)

// CouponUsageRepository 优惠券分配与兑换记录仓储
type CouponUsageRepository struct {
	db *gorm.DB
}

// NewCouponUsageRepository 创建兑换记录仓储
func NewCouponUsageRepository(db *gorm.DB) *CouponUsageRepository {
	return &CouponUsageRepository{db: db}
}

// WithTx 返回使用指定事务的仓储
func (r *CouponUsageRepository) WithTx(tx *gorm.DB) *CouponUsageRepository {
	return &CouponUsageRepository{db: tx}
}

// CreateAssignments 批量写入分配关系
func (r *CouponUsageRepository) CreateAssignments(ctx context.Context, assignments []*models.CouponAssignment) error {
	if len(assignments) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(assignments, 100).Error
}

// ListAssignedUserIDs 获取优惠券的分配用户 ID
func (r *CouponUsageRepository) ListAssignedUserIDs(ctx context.Context, couponID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&models.CouponAssignment{}).
		Where("coupon_id = ?", couponID).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

// IsAssigned 用户是否被分配了该优惠券
func (r *CouponUsageRepository) IsAssigned(ctx context.Context, couponID, userID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.CouponAssignment{}).
		Where("coupon_id = ? AND user_id = ?", couponID, userID).
		Count(&count).Error
	return count > 0, err
}

// Create 写入兑换记录，(coupon_id, user_id) 重复时返回 gorm.ErrDuplicatedKey
func (r *CouponUsageRepository) Create(ctx context.Context, usage *models.CouponUsage) error {
	return r.db.WithContext(ctx).Create(usage).Error
}

// Exists 用户是否已兑换过该优惠券
func (r *CouponUsageRepository) Exists(ctx context.Context, couponID, userID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.CouponUsage{}).
		Where("coupon_id = ? AND user_id = ?", couponID, userID).
		Count(&count).Error
	return count > 0, err
}

// CountByCoupon 统计优惠券的兑换记录数
func (r *CouponUsageRepository) CountByCoupon(ctx context.Context, couponID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.CouponUsage{}).
		Where("coupon_id = ?", couponID).
		Count(&count).Error
	return count, err
}

// ListByCoupon 按兑换时间顺序获取优惠券的兑换记录
func (r *CouponUsageRepository) ListByCoupon(ctx context.Context, couponID int64) ([]*models.CouponUsage, error) {
	var usages []*models.CouponUsage
	err := r.db.WithContext(ctx).
		Where("coupon_id = ?", couponID).
		Order("used_at ASC").
		Order("id ASC").
		Find(&usages).Error
	return usages, err
}

// ListByUser 获取用户的兑换记录（包含优惠券），最新的在前
func (r *CouponUsageRepository) ListByUser(ctx context.Context, userID int64) ([]*models.CouponUsage, error) {
	var usages []*models.CouponUsage
	err := r.db.WithContext(ctx).
		Preload("Coupon").
		Where("user_id = ?", userID).
		Order("used_at DESC").
		Order("id DESC").
		Find(&usages).Error
	return usages, err
}

// ListAll 获取全部兑换记录，用于导出
func (r *CouponUsageRepository) ListAll(ctx context.Context) ([]*models.CouponUsage, error) {
	var usages []*models.CouponUsage
	err := r.db.WithContext(ctx).
		Preload("Coupon").
		Order("coupon_id ASC").
		Order("used_at ASC").
		Find(&usages).Error
	return usages, err
}

// CreateUsages 批量写入兑换记录，用于历史数据导入
func (r *CouponUsageRepository) CreateUsages(ctx context.Context, usages []*models.CouponUsage) error {
	if len(usages) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(usages, 100).Error
}
