package marketing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/coupon-platform-backend/internal/common/cache"
	"github.com/dumeirei/coupon-platform-backend/internal/common/logger"
	"github.com/dumeirei/coupon-platform-backend/internal/common/metrics"
	"github.com/dumeirei/coupon-platform-backend/internal/common/utils"
	"github.com/dumeirei/coupon-platform-backend/internal/models"
	"github.com/dumeirei/coupon-platform-backend/internal/repository"
	"github.com/dumeirei/coupon-platform-backend/internal/service/notify"
)

// Notifier 通知投递，不阻塞也不返回错误
type Notifier interface {
	Notify(n *notify.Notification)
}

// CouponService 优惠券服务
type CouponService struct {
	db         *gorm.DB
	couponRepo *repository.CouponRepository
	usageRepo  *repository.CouponUsageRepository
	userRepo   *repository.UserRepository
	notifier   Notifier
	cache      *cache.Store
	now        func() time.Time
}

// NewCouponService 创建优惠券服务，notifier 与 store 可以为 nil
func NewCouponService(
	db *gorm.DB,
	couponRepo *repository.CouponRepository,
	usageRepo *repository.CouponUsageRepository,
	userRepo *repository.UserRepository,
	notifier Notifier,
	store *cache.Store,
) *CouponService {
	return &CouponService{
		db:         db,
		couponRepo: couponRepo,
		usageRepo:  usageRepo,
		userRepo:   userRepo,
		notifier:   notifier,
		cache:      store,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateCoupon 创建优惠券
// 指定券的 max_uses 等于分配人数，通用券由管理员指定
func (s *CouponService) CreateCoupon(ctx context.Context, adminID int64, req *CreateCouponRequest) (*CouponDetail, error) {
	name := strings.TrimSpace(req.Name)
	if err := validateCreate(name, req); err != nil {
		return nil, err
	}

	exists, err := s.couponRepo.ExistsByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("检查优惠券名称失败: %w", err)
	}
	if exists {
		return nil, ErrDuplicateName
	}

	now := s.now()
	expiry := req.ExpiryDate.UTC()
	if !expiry.After(now) {
		return nil, ErrInvalidExpiry
	}

	var users []*models.User
	maxUses := 0
	switch req.Kind {
	case models.CouponKindSpecific:
		ids := lo.Uniq(req.AssignedUsers)
		users, err = s.userRepo.FindManyByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("查询分配用户失败: %w", err)
		}
		if len(users) != len(ids) {
			return nil, ErrUnknownUser
		}
		// 已禁用的账号不能再获得优惠券
		if u, found := lo.Find(users, func(u *models.User) bool { return !u.IsActive }); found {
			return nil, fmt.Errorf("%w: 用户 %d 已禁用", ErrUnknownUser, u.ID)
		}
		maxUses = len(users)
	case models.CouponKindGeneral:
		if req.MaxUses == nil || *req.MaxUses < 1 || *req.MaxUses > MaxUsesLimit {
			return nil, ErrInvalidMaxUses
		}
		maxUses = *req.MaxUses
	}

	coupon := &models.Coupon{
		Name:       name,
		Kind:       req.Kind,
		MaxUses:    maxUses,
		UsageCount: 0,
		ExpiryDate: expiry,
		IsActive:   true,
		CreatedBy:  adminID,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.couponRepo.WithTx(tx).Create(ctx, coupon); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateName
			}
			return fmt.Errorf("创建优惠券失败: %w", err)
		}

		assignments := lo.Map(users, func(u *models.User, _ int) *models.CouponAssignment {
			return &models.CouponAssignment{CouponID: coupon.ID, UserID: u.ID}
		})
		if err := s.usageRepo.WithTx(tx).CreateAssignments(ctx, assignments); err != nil {
			return fmt.Errorf("写入分配关系失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.CouponCreated(coupon.Kind)
	s.invalidateStats(ctx)
	logger.Info("coupon created",
		logger.Module("marketing"),
		logger.CouponID(coupon.ID),
		logger.CouponName(coupon.Name),
		zap.String("kind", coupon.Kind),
		zap.Int("max_uses", coupon.MaxUses),
		logger.UserID(adminID),
	)

	for _, u := range users {
		s.notify(notify.EventCouponAssigned, u, coupon)
	}

	detail := toDetail(coupon, now)
	detail.AssignedUsers = lo.Map(users, func(u *models.User, _ int) *UserRef { return toUserRef(u) })
	return detail, nil
}

func validateCreate(name string, req *CreateCouponRequest) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: 名称不能为空", ErrValidation)
	case utils.RuneLen(name) > NameMaxLength:
		return fmt.Errorf("%w: 名称不能超过%d个字符", ErrValidation, NameMaxLength)
	case !models.ValidCouponKind(req.Kind):
		return fmt.Errorf("%w: 类型必须为 specific 或 general", ErrValidation)
	case req.ExpiryDate.IsZero():
		return fmt.Errorf("%w: 过期时间不能为空", ErrValidation)
	case req.Kind == models.CouponKindSpecific && len(req.AssignedUsers) == 0:
		return fmt.Errorf("%w: 指定券必须分配至少一个用户", ErrValidation)
	}
	return nil
}

// ToggleCouponStatus 切换启用状态，其余字段不变
func (s *CouponService) ToggleCouponStatus(ctx context.Context, couponID int64) (*CouponDetail, error) {
	if err := s.couponRepo.ToggleActive(ctx, couponID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("切换优惠券状态失败: %w", err)
	}
	s.invalidateStats(ctx)
	return s.GetCouponDetail(ctx, couponID)
}

// ListCoupons 获取优惠券列表（管理端），返回前先执行自动停用
func (s *CouponService) ListCoupons(ctx context.Context, req *ListCouponsRequest) (*CouponListResponse, error) {
	if req.Kind != "" && !models.ValidCouponKind(req.Kind) {
		return nil, fmt.Errorf("%w: 未知的优惠券类型 %s", ErrValidation, req.Kind)
	}

	if _, err := s.Sweep(ctx); err != nil {
		return nil, err
	}

	params := repository.CouponListParams{
		Kind:     req.Kind,
		IsActive: req.IsActive,
		Keyword:  strings.TrimSpace(req.Keyword),
	}
	if req.PageSize > 0 {
		page := max(req.Page, 1)
		params.Offset = (page - 1) * req.PageSize
		params.Limit = req.PageSize
	}

	coupons, total, err := s.couponRepo.List(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("查询优惠券列表失败: %w", err)
	}

	now := s.now()
	return &CouponListResponse{
		List:  lo.Map(coupons, func(c *models.Coupon, _ int) *CouponDetail { return toDetail(c, now) }),
		Total: total,
	}, nil
}

// Sweep 停用已用尽的通用券与已过期的优惠券
func (s *CouponService) Sweep(ctx context.Context) (*SweepResult, error) {
	now := s.now()

	exhausted, err := s.couponRepo.DeactivateExhausted(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("停用已用尽优惠券失败: %w", err)
	}
	expired, err := s.couponRepo.DeactivateExpired(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("停用已过期优惠券失败: %w", err)
	}

	result := &SweepResult{Exhausted: exhausted, Expired: expired}
	if result.Total() > 0 {
		metrics.Deactivations("exhausted", exhausted)
		metrics.Deactivations("expired", expired)
		s.invalidateStats(ctx)
		logger.Info("coupons deactivated",
			logger.Module("marketing"),
			logger.Action("sweep"),
			zap.Int64("exhausted", exhausted),
			zap.Int64("expired", expired),
		)
	}
	return result, nil
}

// GetCouponDetail 获取优惠券详情，包含分配用户与兑换记录
func (s *CouponService) GetCouponDetail(ctx context.Context, couponID int64) (*CouponDetail, error) {
	coupon, err := s.couponRepo.GetByID(ctx, couponID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("查询优惠券失败: %w", err)
	}

	assignedIDs, err := s.usageRepo.ListAssignedUserIDs(ctx, couponID)
	if err != nil {
		return nil, fmt.Errorf("查询分配用户失败: %w", err)
	}
	usages, err := s.usageRepo.ListByCoupon(ctx, couponID)
	if err != nil {
		return nil, fmt.Errorf("查询兑换记录失败: %w", err)
	}

	ids := lo.Uniq(append(assignedIDs, lo.Map(usages, func(u *models.CouponUsage, _ int) int64 { return u.UserID })...))
	refs, err := s.resolveUsers(ctx, ids)
	if err != nil {
		return nil, err
	}

	detail := toDetail(coupon, s.now())
	detail.AssignedUsers = lo.Map(assignedIDs, func(id int64, _ int) *UserRef { return refs[id] })
	detail.UsedBy = lo.Map(usages, func(u *models.CouponUsage, _ int) *UsageEntry {
		return &UsageEntry{User: refs[u.UserID], UsedAt: u.UsedAt}
	})
	return detail, nil
}

// resolveUsers 批量解析用户，已删除的用户标记为 Missing
func (s *CouponService) resolveUsers(ctx context.Context, ids []int64) (map[int64]*UserRef, error) {
	users, err := s.userRepo.FindManyByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	found := lo.KeyBy(users, func(u *models.User) int64 { return u.ID })

	refs := make(map[int64]*UserRef, len(ids))
	for _, id := range ids {
		if u, ok := found[id]; ok {
			refs[id] = toUserRef(u)
		} else {
			refs[id] = &UserRef{ID: id, Missing: true}
		}
	}
	return refs, nil
}

// ListAvailableCoupons 用户可兑换且尚未使用的优惠券
func (s *CouponService) ListAvailableCoupons(ctx context.Context, userID int64, kind string) ([]*CouponDetail, error) {
	if kind != "" && !models.ValidCouponKind(kind) {
		return nil, fmt.Errorf("%w: 未知的优惠券类型 %s", ErrValidation, kind)
	}

	now := s.now()
	coupons, err := s.couponRepo.ListAvailableForUser(ctx, userID, kind, now)
	if err != nil {
		return nil, fmt.Errorf("查询可用优惠券失败: %w", err)
	}
	return lo.Map(coupons, func(c *models.Coupon, _ int) *CouponDetail { return toDetail(c, now) }), nil
}

// GetRedemptionHistory 用户兑换历史，最新的在前
func (s *CouponService) GetRedemptionHistory(ctx context.Context, userID int64) ([]*HistoryItem, error) {
	usages, err := s.usageRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("查询兑换历史失败: %w", err)
	}

	items := make([]*HistoryItem, 0, len(usages))
	for _, u := range usages {
		if u.Coupon == nil {
			continue
		}
		items = append(items, &HistoryItem{Coupon: toSnapshot(u.Coupon), RedeemedAt: u.UsedAt})
	}
	return items, nil
}

func (s *CouponService) notify(event string, user *models.User, coupon *models.Coupon) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(&notify.Notification{
		Event:  event,
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Phone:  lo.FromPtr(user.Phone),
		Coupon: toCouponInfo(coupon),
	})
}

// invalidateStats 统计缓存代次加一，旧键由 TTL 回收，失败只记录日志
func (s *CouponService) invalidateStats(ctx context.Context) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Bump(ctx, cache.KeyStatsGeneration); err != nil {
		logger.Warn("invalidate stats cache failed", logger.Module("marketing"), zap.Error(err))
	}
}
