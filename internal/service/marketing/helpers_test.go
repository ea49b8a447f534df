package marketing

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dumeirei/coupon-platform-backend/internal/common/cache"
	"github.com/dumeirei/coupon-platform-backend/internal/models"
	"github.com/dumeirei/coupon-platform-backend/internal/repository"
	"github.com/dumeirei/coupon-platform-backend/internal/service/notify"
)

// testClock 可手动推进的时钟
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingNotifier 记录所有通知
type recordingNotifier struct {
	mu   sync.Mutex
	sent []*notify.Notification
}

func (n *recordingNotifier) Notify(x *notify.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, x)
}

func (n *recordingNotifier) events(event string) []*notify.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []*notify.Notification
	for _, x := range n.sent {
		if x.Event == event {
			out = append(out, x)
		}
	}
	return out
}

type testEnv struct {
	db       *gorm.DB
	svc      *CouponService
	stats    *StatsService
	clock    *testClock
	notifier *recordingNotifier
	coupons  *repository.CouponRepository
	usages   *repository.CouponUsageRepository
	users    *repository.UserRepository
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func setupTestEnv(t *testing.T, store *cache.Store) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	env := &testEnv{
		db:       db,
		clock:    newTestClock(),
		notifier: &recordingNotifier{},
		coupons:  repository.NewCouponRepository(db),
		usages:   repository.NewCouponUsageRepository(db),
		users:    repository.NewUserRepository(db),
	}
	env.svc = NewCouponService(db, env.coupons, env.usages, env.users, env.notifier, store)
	env.svc.now = env.clock.Now
	env.stats = NewStatsService(env.coupons, env.users, store, time.Minute, DefaultTopN)
	env.stats.now = env.clock.Now
	return env
}

func (e *testEnv) createUser(t *testing.T, name string) *models.User {
	t.Helper()

	user := &models.User{
		Name:         name,
		Email:        strings.ToLower(name) + "@example.com",
		PasswordHash: "x",
		Role:         models.UserRoleUser,
		IsActive:     true,
	}
	require.NoError(t, e.db.Create(user).Error)
	return user
}

func (e *testEnv) createGeneral(t *testing.T, name string, maxUses int, ttl time.Duration) *CouponDetail {
	t.Helper()

	detail, err := e.svc.CreateCoupon(t.Context(), 1, &CreateCouponRequest{
		Name:       name,
		Kind:       models.CouponKindGeneral,
		ExpiryDate: e.clock.Now().Add(ttl),
		MaxUses:    &maxUses,
	})
	require.NoError(t, err)
	return detail
}

func (e *testEnv) createSpecific(t *testing.T, name string, ttl time.Duration, users ...*models.User) *CouponDetail {
	t.Helper()

	ids := make([]int64, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	detail, err := e.svc.CreateCoupon(t.Context(), 1, &CreateCouponRequest{
		Name:          name,
		Kind:          models.CouponKindSpecific,
		ExpiryDate:    e.clock.Now().Add(ttl),
		AssignedUsers: ids,
	})
	require.NoError(t, err)
	return detail
}

// reload 读取数据库中的最新状态
func (e *testEnv) reload(t *testing.T, id int64) *models.Coupon {
	t.Helper()

	var c models.Coupon
	require.NoError(t, e.db.First(&c, id).Error)
	return &c
}

// assertLedger 检查使用次数与兑换记录一致且不超过上限
func (e *testEnv) assertLedger(t *testing.T, id int64) {
	t.Helper()

	c := e.reload(t, id)
	count, err := e.usages.CountByCoupon(t.Context(), id)
	require.NoError(t, err)
	require.Equal(t, int64(c.UsageCount), count, "usage_count 与兑换记录数不一致")
	require.LessOrEqual(t, c.UsageCount, c.MaxUses, "usage_count 超过 max_uses")

	var dup int64
	require.NoError(t, e.db.Model(&models.CouponUsage{}).
		Select("COUNT(*) - COUNT(DISTINCT user_id)").
		Where("coupon_id = ?", id).
		Scan(&dup).Error)
	require.Zero(t, dup, "同一用户重复兑换")
}

func intPtr(v int) *int { return &v }
