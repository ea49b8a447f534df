package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCoupon_DerivedFields(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		coupon        Coupon
		wantExpired   bool
		wantAvailable bool
		wantRemaining int
	}{
		{
			name:          "可用",
			coupon:        Coupon{IsActive: true, MaxUses: 3, UsageCount: 1, ExpiryDate: now.Add(time.Hour)},
			wantAvailable: true,
			wantRemaining: 2,
		},
		{
			name:          "已过期但标记仍为启用",
			coupon:        Coupon{IsActive: true, MaxUses: 3, UsageCount: 0, ExpiryDate: now.Add(-time.Second)},
			wantExpired:   true,
			wantRemaining: 3,
		},
		{
			name:          "次数用尽",
			coupon:        Coupon{IsActive: true, MaxUses: 2, UsageCount: 2, ExpiryDate: now.Add(time.Hour)},
			wantRemaining: 0,
		},
		{
			name:          "手动停用",
			coupon:        Coupon{IsActive: false, MaxUses: 2, UsageCount: 0, ExpiryDate: now.Add(time.Hour)},
			wantRemaining: 2,
		},
		{
			name:          "过期时刻本身仍可用",
			coupon:        Coupon{IsActive: true, MaxUses: 1, UsageCount: 0, ExpiryDate: now},
			wantAvailable: true,
			wantRemaining: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantExpired, tt.coupon.IsExpired(now))
			assert.Equal(t, tt.wantAvailable, tt.coupon.IsAvailable(now))
			assert.Equal(t, tt.wantRemaining, tt.coupon.RemainingUses())
		})
	}
}

func TestValidCouponKind(t *testing.T) {
	assert.True(t, ValidCouponKind(CouponKindSpecific))
	assert.True(t, ValidCouponKind(CouponKindGeneral))
	assert.False(t, ValidCouponKind("percent"))
	assert.False(t, ValidCouponKind(""))
}

func TestUser_IsAdmin(t *testing.T) {
	assert.True(t, (&User{Role: UserRoleAdmin}).IsAdmin())
	assert.False(t, (&User{Role: UserRoleUser}).IsAdmin())
	assert.True(t, ValidUserRole("user"))
	assert.False(t, ValidUserRole("root"))
}

func TestAll(t *testing.T) {
	assert.Len(t, All(), 4)
}
