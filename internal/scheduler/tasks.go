package scheduler

import (
	"context"

	"go.uber.org/zap"

	"github.com/dumeirei/coupon-platform-backend/internal/service/marketing"
)

// JobCouponSweep 优惠券巡检任务名
const JobCouponSweep = "coupon_sweep"

// Sweeper 停用已过期或已用尽的优惠券
type Sweeper interface {
	Sweep(ctx context.Context) (*marketing.SweepResult, error)
}

// SweepJob 使 is_active 与过期时间、使用次数保持一致，有停用时记一条日志
func SweepJob(sweeper Sweeper, log *zap.Logger) Job {
	if log == nil {
		log = zap.NewNop()
	}
	return func(ctx context.Context) error {
		result, err := sweeper.Sweep(ctx)
		if err != nil {
			return err
		}
		if result.Total() > 0 {
			log.Info("coupons deactivated",
				zap.Int64("exhausted", result.Exhausted),
				zap.Int64("expired", result.Expired),
			)
		}
		return nil
	}
}
