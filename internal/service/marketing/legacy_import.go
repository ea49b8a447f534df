package marketing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/coupon-platform-backend/internal/common/logger"
	"github.com/dumeirei/coupon-platform-backend/internal/common/utils"
	"github.com/dumeirei/coupon-platform-backend/internal/models"
)

// LegacyUserRef 旧数据中的用户引用：数字 ID、数字字符串或邮箱
type LegacyUserRef string

// UnmarshalJSON 同时接受数字与字符串
func (r *LegacyUserRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = LegacyUserRef(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("无法识别的用户引用: %s", string(data))
	}
	*r = LegacyUserRef(n.String())
	return nil
}

// LegacyUsage 旧数据中的兑换记录，可能是裸用户引用，也可能是 {user, usedAt}
type LegacyUsage struct {
	User   LegacyUserRef `json:"user"`
	UsedAt time.Time     `json:"usedAt"`
}

// UnmarshalJSON 统一两种形态
func (u *LegacyUsage) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		type entry LegacyUsage
		var e entry
		if err := json.Unmarshal(data, &e); err != nil {
			return err
		}
		*u = LegacyUsage(e)
		return nil
	}
	var ref LegacyUserRef
	if err := ref.UnmarshalJSON(data); err != nil {
		return err
	}
	*u = LegacyUsage{User: ref}
	return nil
}

// LegacyCoupon 旧系统导出的优惠券
type LegacyCoupon struct {
	Name          string          `json:"name"`
	Kind          string          `json:"couponType"`
	AssignedUsers []LegacyUserRef `json:"assignedUsers"`
	UsedBy        []LegacyUsage   `json:"usedBy"`
	MaxUses       int             `json:"maxUses"`
	ExpiryDate    time.Time       `json:"expiryDate"`
	IsActive      *bool           `json:"isActive"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// ImportResult 导入结果
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Messages []string `json:"messages,omitempty"`
}

func (r *ImportResult) skip(name, reason string) {
	r.Skipped++
	r.Messages = append(r.Messages, fmt.Sprintf("%s: %s", name, reason))
}

// DecodeLegacyCoupons 读取旧系统导出的 JSON 数组
func DecodeLegacyCoupons(r io.Reader) ([]LegacyCoupon, error) {
	var coupons []LegacyCoupon
	if err := json.NewDecoder(r).Decode(&coupons); err != nil {
		return nil, fmt.Errorf("解析导入文件失败: %w", err)
	}
	return coupons, nil
}

// ImportLegacy 导入旧数据，兑换记录统一为结构化形式
// 无法解析的用户引用被丢弃；使用次数按兑换记录重新计算
func (s *CouponService) ImportLegacy(ctx context.Context, coupons []LegacyCoupon) (*ImportResult, error) {
	result := &ImportResult{}
	resolver := &legacyResolver{svc: s, cache: make(map[LegacyUserRef]int64)}

	for i := range coupons {
		lc := &coupons[i]
		name := strings.TrimSpace(lc.Name)

		coupon, assigned, usages, reason, err := s.normalizeLegacy(ctx, resolver, name, lc)
		if err != nil {
			return result, err
		}
		if reason != "" {
			result.skip(name, reason)
			continue
		}

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.couponRepo.WithTx(tx).Create(ctx, coupon); err != nil {
				return err
			}
			for _, a := range assigned {
				a.CouponID = coupon.ID
			}
			for _, u := range usages {
				u.CouponID = coupon.ID
			}
			usageRepo := s.usageRepo.WithTx(tx)
			if err := usageRepo.CreateAssignments(ctx, assigned); err != nil {
				return err
			}
			return usageRepo.CreateUsages(ctx, usages)
		})
		if err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				result.skip(name, "名称已存在")
				continue
			}
			return result, fmt.Errorf("导入优惠券 %s 失败: %w", name, err)
		}
		result.Imported++
	}

	s.invalidateStats(ctx)
	logger.Info("legacy coupons imported",
		logger.Module("marketing"),
		logger.Action("import"),
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// normalizeLegacy 返回待写入的数据；reason 非空表示跳过
func (s *CouponService) normalizeLegacy(ctx context.Context, resolver *legacyResolver, name string, lc *LegacyCoupon) (
	*models.Coupon, []*models.CouponAssignment, []*models.CouponUsage, string, error,
) {
	if name == "" || utils.RuneLen(name) > NameMaxLength {
		return nil, nil, nil, "名称为空或过长", nil
	}
	if !models.ValidCouponKind(lc.Kind) {
		return nil, nil, nil, "未知的优惠券类型 " + lc.Kind, nil
	}
	if lc.ExpiryDate.IsZero() {
		return nil, nil, nil, "缺少过期时间", nil
	}
	exists, err := s.couponRepo.ExistsByName(ctx, name)
	if err != nil {
		return nil, nil, nil, "", err
	}
	if exists {
		return nil, nil, nil, "名称已存在", nil
	}

	now := s.now()
	createdAt := lc.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}

	assignedSet := make(map[int64]bool)
	var assigned []*models.CouponAssignment
	if lc.Kind == models.CouponKindSpecific {
		for _, ref := range lc.AssignedUsers {
			id, err := resolver.resolve(ctx, ref)
			if err != nil {
				return nil, nil, nil, "", err
			}
			if id == 0 || assignedSet[id] {
				continue
			}
			assignedSet[id] = true
			assigned = append(assigned, &models.CouponAssignment{UserID: id})
		}
		if len(assigned) == 0 {
			return nil, nil, nil, "指定券没有可解析的分配用户", nil
		}
	}

	// 同一用户只保留最早的一次兑换
	firstUse := make(map[int64]time.Time)
	for _, entry := range lc.UsedBy {
		id, err := resolver.resolve(ctx, entry.User)
		if err != nil {
			return nil, nil, nil, "", err
		}
		if id == 0 {
			continue
		}
		if lc.Kind == models.CouponKindSpecific && !assignedSet[id] {
			continue
		}
		usedAt := entry.UsedAt.UTC()
		if usedAt.IsZero() {
			usedAt = createdAt
		}
		if prev, ok := firstUse[id]; !ok || usedAt.Before(prev) {
			firstUse[id] = usedAt
		}
	}
	usages := make([]*models.CouponUsage, 0, len(firstUse))
	for id, at := range firstUse {
		usages = append(usages, &models.CouponUsage{UserID: id, UsedAt: at})
	}
	sort.Slice(usages, func(i, j int) bool {
		if usages[i].UsedAt.Equal(usages[j].UsedAt) {
			return usages[i].UserID < usages[j].UserID
		}
		return usages[i].UsedAt.Before(usages[j].UsedAt)
	})

	maxUses := len(assigned)
	if lc.Kind == models.CouponKindGeneral {
		maxUses = max(lc.MaxUses, len(usages), 1)
	}
	if maxUses > MaxUsesLimit {
		return nil, nil, nil, "最大使用次数超出范围", nil
	}

	coupon := &models.Coupon{
		Name:       name,
		Kind:       lc.Kind,
		MaxUses:    maxUses,
		UsageCount: len(usages),
		ExpiryDate: lc.ExpiryDate.UTC(),
		IsActive:   lc.IsActive == nil || *lc.IsActive,
		CreatedAt:  createdAt,
	}
	if coupon.IsExpired(now) || (coupon.IsGeneral() && coupon.IsExhausted()) {
		coupon.IsActive = false
	}
	return coupon, assigned, usages, "", nil
}

// legacyResolver 将旧引用解析为用户 ID，0 表示无法解析
type legacyResolver struct {
	svc   *CouponService
	cache map[LegacyUserRef]int64
}

func (r *legacyResolver) resolve(ctx context.Context, ref LegacyUserRef) (int64, error) {
	if id, ok := r.cache[ref]; ok {
		return id, nil
	}

	var user *models.User
	var err error
	if id, convErr := strconv.ParseInt(string(ref), 10, 64); convErr == nil {
		user, err = r.svc.userRepo.GetByID(ctx, id)
	} else if strings.Contains(string(ref), "@") {
		user, err = r.svc.userRepo.GetByEmail(ctx, utils.NormalizeEmail(string(ref)))
	} else {
		r.cache[ref] = 0
		return 0, nil
	}

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.cache[ref] = 0
			return 0, nil
		}
		return 0, fmt.Errorf("解析用户 %s 失败: %w", ref, err)
	}
	r.cache[ref] = user.ID
	return user.ID, nil
}
