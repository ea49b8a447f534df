package marketing

import (
	stderrors "errors"

	"github.com/dumeirei/coupon-platform-backend/internal/common/errors"
	marketingService "github.com/dumeirei/coupon-platform-backend/internal/service/marketing"
)

var couponErrors = []struct {
	sentinel error
	appErr   *errors.AppError
}{
	{marketingService.ErrDuplicateName, errors.ErrCouponDuplicateName},
	{marketingService.ErrUnknownUser, errors.ErrCouponUnknownUser},
	{marketingService.ErrInvalidExpiry, errors.ErrCouponInvalidExpiry},
	{marketingService.ErrInvalidMaxUses, errors.ErrCouponInvalidMaxUses},
	{marketingService.ErrCouponNotFound, errors.ErrCouponNotFound},
	{marketingService.ErrUserNotFound, errors.ErrUserNotFound},
	{marketingService.ErrCouponInactive, errors.ErrCouponInactive},
	{marketingService.ErrCouponExpired, errors.ErrCouponExpired},
	{marketingService.ErrCouponUnauthorized, errors.ErrCouponUnauthorized},
	{marketingService.ErrCouponLimitReached, errors.ErrCouponLimitReached},
	{marketingService.ErrCouponAlreadyUsed, errors.ErrCouponAlreadyUsed},
	{marketingService.ErrConflict, errors.ErrCouponConflict},
	{marketingService.ErrUserDisabled, errors.ErrAccountDisabled},
}

// ToAppError 将优惠券服务的错误转换为带业务码的 AppError
// 校验错误保留具体原因，未识别的错误原样返回，由 HandleError 按内部错误处理
func ToAppError(err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, marketingService.ErrValidation) {
		return errors.ErrInvalidParams.WithMessage(err.Error())
	}
	for _, m := range couponErrors {
		if stderrors.Is(err, m.sentinel) {
			return m.appErr
		}
	}
	return err
}
