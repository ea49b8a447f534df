package marketing

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/dumeirei/coupon-platform-backend/internal/common/cache"
	"github.com/dumeirei/coupon-platform-backend/internal/common/logger"
	"github.com/dumeirei/coupon-platform-backend/internal/common/metrics"
	"github.com/dumeirei/coupon-platform-backend/internal/common/utils"
	"github.com/dumeirei/coupon-platform-backend/internal/models"
	"github.com/dumeirei/coupon-platform-backend/internal/repository"
)

// 排行榜数量
const (
	DefaultTopN = 5
	MaxTopN     = 50
)

const statsCacheName = "stats"

// CouponStats 优惠券统计
type CouponStats struct {
	Total      int64             `json:"total"`
	Active     int64             `json:"active"`
	Expired    int64             `json:"expired"`
	Inactive   int64             `json:"inactive"`
	TotalUsage int64             `json:"total_usage"`
	TopCoupons []*CouponSnapshot `json:"top_coupons"`
}

// UserCouponStats 单个用户的优惠券统计
type UserCouponStats struct {
	UserID      int64  `json:"user_id"`
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	UserMissing bool   `json:"user_missing,omitempty"`
	Total       int64  `json:"total"`
	Active      int64  `json:"active"`
	Expired     int64  `json:"expired"`
	Used        int64  `json:"used"`
}

// StatsService 统计服务，只读
type StatsService struct {
	couponRepo *repository.CouponRepository
	userRepo   *repository.UserRepository
	cache      *cache.Store
	ttl        time.Duration
	topN       int
	now        func() time.Time
}

// NewStatsService 创建统计服务，ttl 为 0 时不缓存
func NewStatsService(couponRepo *repository.CouponRepository, userRepo *repository.UserRepository, store *cache.Store, ttl time.Duration, topN int) *StatsService {
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &StatsService{
		couponRepo: couponRepo,
		userRepo:   userRepo,
		cache:      store,
		ttl:        ttl,
		topN:       utils.Clamp(topN, 1, MaxTopN),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// GetCouponStats 优惠券状态统计与使用排行，topN 小于等于 0 时取默认值
func (s *StatsService) GetCouponStats(ctx context.Context, topN int) (*CouponStats, error) {
	if topN <= 0 {
		topN = s.topN
	}
	topN = utils.Clamp(topN, 1, MaxTopN)

	key := s.cacheKey(ctx, "coupons", strconv.Itoa(topN))
	var stats CouponStats
	if s.getCached(ctx, key, &stats) {
		return &stats, nil
	}

	counts, err := s.couponRepo.CountByStatus(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("统计优惠券状态失败: %w", err)
	}
	top, err := s.couponRepo.TopByUsage(ctx, topN)
	if err != nil {
		return nil, fmt.Errorf("查询使用排行失败: %w", err)
	}

	stats = CouponStats{
		Total:      counts.Total,
		Active:     counts.Active,
		Expired:    counts.Expired,
		Inactive:   counts.Inactive,
		TotalUsage: counts.TotalUsage,
		TopCoupons: lo.Map(top, func(c *models.Coupon, _ int) *CouponSnapshot { return toSnapshot(c) }),
	}
	s.setCached(ctx, key, &stats)
	return &stats, nil
}

// GetUserCouponStats 单个用户的统计，没有任何优惠券时返回全 0
func (s *StatsService) GetUserCouponStats(ctx context.Context, userID int64) (*UserCouponStats, error) {
	key := s.cacheKey(ctx, "user", strconv.FormatInt(userID, 10))
	var stats UserCouponStats
	if s.getCached(ctx, key, &stats) {
		return &stats, nil
	}

	rows, err := s.couponRepo.CountForUsers(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("统计用户优惠券失败: %w", err)
	}

	stats = UserCouponStats{UserID: userID}
	if len(rows) > 0 {
		stats = *toUserStats(rows[0])
	}
	user, err := s.userRepo.FindManyByIDs(ctx, []int64{userID})
	if err != nil {
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	if len(user) == 1 {
		stats.Name, stats.Email = user[0].Name, user[0].Email
	} else {
		stats.UserMissing = true
	}

	s.setCached(ctx, key, &stats)
	return &stats, nil
}

// GetAllUserCouponStats 所有关联过优惠券的用户统计
// 已删除的用户不会导致整体失败，只标记 user_missing
func (s *StatsService) GetAllUserCouponStats(ctx context.Context) ([]*UserCouponStats, error) {
	key := s.cacheKey(ctx, "users")
	var stats []*UserCouponStats
	if s.getCached(ctx, key, &stats) {
		return stats, nil
	}

	rows, err := s.couponRepo.CountForUsers(ctx, 0, s.now())
	if err != nil {
		return nil, fmt.Errorf("统计用户优惠券失败: %w", err)
	}

	ids := lo.Map(rows, func(r *repository.UserCouponCounts, _ int) int64 { return r.UserID })
	users, err := s.userRepo.FindManyByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	byID := lo.KeyBy(users, func(u *models.User) int64 { return u.ID })

	stats = make([]*UserCouponStats, 0, len(rows))
	for _, row := range rows {
		item := toUserStats(row)
		if u, ok := byID[row.UserID]; ok {
			item.Name, item.Email = u.Name, u.Email
		} else {
			item.UserMissing = true
		}
		stats = append(stats, item)
	}

	s.setCached(ctx, key, stats)
	return stats, nil
}

func toUserStats(row *repository.UserCouponCounts) *UserCouponStats {
	return &UserCouponStats{
		UserID:  row.UserID,
		Total:   row.Total,
		Active:  row.Active,
		Expired: row.Expired,
		Used:    row.Used,
	}
}

// cacheKey 带当前代次的缓存键，缓存不可用时返回空串
func (s *StatsService) cacheKey(ctx context.Context, parts ...string) string {
	if s.ttl <= 0 || !s.cache.Enabled() {
		return ""
	}
	gen, err := s.cache.Generation(ctx, cache.KeyStatsGeneration)
	if err != nil {
		logger.Warn("read stats cache generation failed", logger.Module("marketing"), zap.Error(err))
		return ""
	}
	return StatsCacheKey(gen, parts...)
}

// StatsCacheKey 如 stats:g3:coupons:5
func StatsCacheKey(gen int64, parts ...string) string {
	return cache.BuildKey(cache.KeyPrefixStats, append([]string{"g" + strconv.FormatInt(gen, 10)}, parts...)...)
}

func (s *StatsService) getCached(ctx context.Context, key string, dest interface{}) bool {
	if key == "" {
		return false
	}
	err := s.cache.Get(ctx, key, dest)
	if err == nil {
		metrics.CacheHit(statsCacheName)
		return true
	}
	metrics.CacheMiss(statsCacheName)
	if !cache.IsMiss(err) {
		logger.Warn("read stats cache failed", logger.Module("marketing"), zap.String("key", key), zap.Error(err))
	}
	return false
}

func (s *StatsService) setCached(ctx context.Context, key string, value interface{}) {
	if key == "" {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		logger.Warn("write stats cache failed", logger.Module("marketing"), zap.String("key", key), zap.Error(err))
	}
}
