package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	assert.Equal(t, "[9002] 优惠券已过期", ErrCouponExpired.Error())
	assert.Equal(t, "[1005] 数据库错误: connection reset",
		ErrDatabaseError.WithError(stderrors.New("connection reset")).Error())
}

func TestAppError_CopiesDoNotTouchRegistry(t *testing.T) {
	cause := stderrors.New("deadlock detected")

	msg := ErrCouponConflict.WithMessage("请稍后重试")
	withErr := ErrCouponConflict.WithError(cause)

	assert.Equal(t, "请稍后重试", msg.Message)
	assert.Equal(t, http.StatusConflict, msg.Status)
	assert.Same(t, cause, withErr.Err)
	assert.Same(t, cause, withErr.Unwrap())

	assert.Equal(t, "优惠券状态已变化，请刷新后重试", ErrCouponConflict.Message)
	assert.Nil(t, ErrCouponConflict.Err)
}

func TestAppError_Is(t *testing.T) {
	derived := ErrCouponExpired.WithMessage("优惠券 SAVE10 已过期")
	assert.ErrorIs(t, derived, ErrCouponExpired)
	assert.NotErrorIs(t, derived, ErrCouponInactive)

	assert.ErrorIs(t, fmt.Errorf("redeem: %w", ErrCouponLimitReached), ErrCouponLimitReached)

	cause := stderrors.New("timeout")
	assert.ErrorIs(t, ErrDatabaseError.WithError(cause), cause)
}

func TestAppError_HTTPStatus(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{&AppError{Code: 1}, http.StatusInternalServerError},
		{ErrCouponNotFound, http.StatusNotFound},
		{ErrCouponExpired, http.StatusGone},
		{ErrCouponUnauthorized, http.StatusForbidden},
		{ErrCouponDuplicateName, http.StatusConflict},
		{ErrRateLimitExceed, http.StatusTooManyRequests},
		{ErrInvalidParams, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.err.Code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus())
		})
	}
}

func TestFrom(t *testing.T) {
	t.Run("登记的错误原样返回", func(t *testing.T) {
		assert.Same(t, ErrCouponExpired, From(ErrCouponExpired))
	})

	t.Run("包装链中的错误", func(t *testing.T) {
		got := From(fmt.Errorf("redeem %d: %w", 7, ErrCouponAlreadyUsed))
		assert.Equal(t, ErrCouponAlreadyUsed.Code, got.Code)
	})

	t.Run("普通错误归为内部错误", func(t *testing.T) {
		plain := stderrors.New("boom")
		got := From(plain)
		assert.Equal(t, ErrInternalServer.Code, got.Code)
		assert.Same(t, plain, got.Err)
	})
}

// 客户端依赖这些业务码，不允许重复或缺少状态
func TestRegistry(t *testing.T) {
	registry := []*AppError{
		ErrInvalidParams, ErrInternalServer, ErrNotFound, ErrDatabaseError, ErrRateLimitExceed, ErrInvalidID,
		ErrUnauthorized, ErrTokenExpired, ErrTokenInvalid, ErrTokenRefreshFail,
		ErrPermissionDenied, ErrAccountDisabled, ErrPasswordError,
		ErrUserNotFound, ErrEmailExists, ErrCannotDeleteAdmin, ErrCannotDisableSelf,
		ErrCouponNotFound, ErrCouponExpired, ErrCouponLimitReached, ErrCouponAlreadyUsed,
		ErrCouponDuplicateName, ErrCouponUnknownUser, ErrCouponInvalidExpiry,
		ErrCouponInvalidMaxUses, ErrCouponInactive, ErrCouponUnauthorized, ErrCouponConflict,
	}

	seen := make(map[int]string, len(registry))
	for _, e := range registry {
		prev, dup := seen[e.Code]
		require.False(t, dup, "code %d used by %q and %q", e.Code, prev, e.Message)
		seen[e.Code] = e.Message
		assert.NotZero(t, e.Status, "code %d", e.Code)
		assert.NotEmpty(t, e.Message, "code %d", e.Code)
	}

	for _, e := range []*AppError{ErrCouponNotFound, ErrCouponConflict} {
		assert.GreaterOrEqual(t, e.Code, 9000)
		assert.Less(t, e.Code, 10000)
	}
}
