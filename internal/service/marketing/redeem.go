package marketing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/coupon-platform-backend/internal/common/logger"
	"github.com/dumeirei/coupon-platform-backend/internal/common/metrics"
	"github.com/dumeirei/coupon-platform-backend/internal/common/tracing"
	"github.com/dumeirei/coupon-platform-backend/internal/models"
	"github.com/dumeirei/coupon-platform-backend/internal/service/notify"
)

// 核销结果标签
const (
	OutcomeSuccess      = "success"
	OutcomeNotFound     = "not_found"
	OutcomeInactive     = "inactive"
	OutcomeExpired      = "expired"
	OutcomeUnauthorized = "unauthorized"
	OutcomeLimitReached = "limit_reached"
	OutcomeAlreadyUsed  = "already_used"
	OutcomeConflict     = "conflict"
	OutcomeUserDisabled = "user_disabled"
	OutcomeInvalid      = "invalid"
	OutcomeError        = "error"
)

// RedemptionOutcome 核销错误对应的结果标签
func RedemptionOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrCouponNotFound), errors.Is(err, ErrUserNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrCouponInactive):
		return OutcomeInactive
	case errors.Is(err, ErrCouponExpired):
		return OutcomeExpired
	case errors.Is(err, ErrCouponUnauthorized):
		return OutcomeUnauthorized
	case errors.Is(err, ErrCouponLimitReached):
		return OutcomeLimitReached
	case errors.Is(err, ErrCouponAlreadyUsed):
		return OutcomeAlreadyUsed
	case errors.Is(err, ErrConflict):
		return OutcomeConflict
	case errors.Is(err, ErrUserDisabled):
		return OutcomeUserDisabled
	case errors.Is(err, ErrValidation):
		return OutcomeInvalid
	default:
		return OutcomeError
	}
}

// RedeemCoupon 按名称核销优惠券
// 校验依次为：存在、启用、未过期、授权或余量、未使用过、账号启用；任一失败立即返回且不做任何修改。
// 写入在同一事务内完成：先插入兑换记录（唯一索引防止重复），再条件更新使用次数，
// 条件不满足时整体回滚。
func (s *CouponService) RedeemCoupon(ctx context.Context, userID int64, name string) (receipt *RedemptionReceipt, err error) {
	name = strings.TrimSpace(name)
	kind := "unknown"

	ctx, span := tracing.StartSpan(ctx, "marketing.RedeemCoupon",
		tracing.WithUserID(userID),
		tracing.WithCouponName(name),
		tracing.WithOperation("redeem"),
	)
	defer func() {
		outcome := RedemptionOutcome(err)
		metrics.Redemption(kind, outcome)
		if err != nil && outcome == OutcomeError {
			tracing.EndSpan(span, err)
		} else {
			tracing.EndSpan(span, nil)
		}
	}()

	if name == "" {
		return nil, fmt.Errorf("%w: 优惠券名称不能为空", ErrValidation)
	}

	coupon, err := s.couponRepo.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("查询优惠券失败: %w", err)
	}
	kind = coupon.Kind
	span.SetAttributes(tracing.WithCouponID(coupon.ID), tracing.WithCouponKind(coupon.Kind))

	now := s.now()
	if err := s.checkRedeemable(ctx, coupon, userID, now); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	// 令牌有效期内被禁用的账号同样拒绝
	if !user.IsActive {
		return nil, ErrUserDisabled
	}

	updated, err := s.commitRedemption(ctx, coupon.ID, userID, now)
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx)
	s.notify(notify.EventCouponRedeemed, user, updated)

	logger.Info("coupon redeemed",
		logger.Module("marketing"),
		logger.CouponID(updated.ID),
		logger.CouponName(updated.Name),
		logger.UserID(userID),
		zap.Int("usage_count", updated.UsageCount),
		zap.Int("max_uses", updated.MaxUses),
		zap.Bool("is_active", updated.IsActive),
	)

	return &RedemptionReceipt{
		Coupon:     toSnapshot(updated),
		User:       toUserRef(user),
		RedeemedAt: now,
	}, nil
}

// commitRedemption 在一个事务内写入兑换记录并条件更新使用次数
func (s *CouponService) commitRedemption(ctx context.Context, couponID, userID int64, now time.Time) (*models.Coupon, error) {
	var updated *models.Coupon
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		usage := &models.CouponUsage{CouponID: couponID, UserID: userID, UsedAt: now}
		if err := s.usageRepo.WithTx(tx).Create(ctx, usage); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrCouponAlreadyUsed
			}
			return fmt.Errorf("写入兑换记录失败: %w", err)
		}

		couponRepo := s.couponRepo.WithTx(tx)
		affected, err := couponRepo.ConsumeUse(ctx, couponID, now)
		if err != nil {
			return fmt.Errorf("更新使用次数失败: %w", err)
		}

		current, err := couponRepo.GetByID(ctx, couponID)
		if err != nil {
			return fmt.Errorf("查询优惠券失败: %w", err)
		}
		if affected == 0 {
			// 校验之后被其他请求抢先
			if current.IsExhausted() {
				return ErrCouponLimitReached
			}
			return ErrConflict
		}
		updated = current
		return nil
	})
	return updated, err
}

// checkRedeemable 核销前的逐项校验
func (s *CouponService) checkRedeemable(ctx context.Context, coupon *models.Coupon, userID int64, now time.Time) error {
	if !coupon.IsActive {
		// 因用尽而停用的通用券直接报告已达上限
		if coupon.IsGeneral() && coupon.IsExhausted() {
			return ErrCouponLimitReached
		}
		return ErrCouponInactive
	}

	// 启用标志可能尚未被巡检更新，过期时间总是重新判断
	if coupon.IsExpired(now) {
		return ErrCouponExpired
	}

	if coupon.IsGeneral() {
		if coupon.IsExhausted() {
			return ErrCouponLimitReached
		}
	} else {
		assigned, err := s.usageRepo.IsAssigned(ctx, coupon.ID, userID)
		if err != nil {
			return fmt.Errorf("查询分配关系失败: %w", err)
		}
		if !assigned {
			return ErrCouponUnauthorized
		}
	}

	used, err := s.usageRepo.Exists(ctx, coupon.ID, userID)
	if err != nil {
		return fmt.Errorf("查询兑换记录失败: %w", err)
	}
	if used {
		return ErrCouponAlreadyUsed
	}
	return nil
}
