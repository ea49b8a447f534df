package main

import (
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/coupon-platform-backend/internal/common/cache"
	"github.com/dumeirei/coupon-platform-backend/internal/common/config"
	"github.com/dumeirei/coupon-platform-backend/internal/common/crypto"
	"github.com/dumeirei/coupon-platform-backend/internal/common/jwt"
	"github.com/dumeirei/coupon-platform-backend/internal/common/metrics"
	"github.com/dumeirei/coupon-platform-backend/internal/common/response"
	"github.com/dumeirei/coupon-platform-backend/internal/common/tracing"
	adminHandler "github.com/dumeirei/coupon-platform-backend/internal/handler/admin"
	authHandler "github.com/dumeirei/coupon-platform-backend/internal/handler/auth"
	marketingHandler "github.com/dumeirei/coupon-platform-backend/internal/handler/marketing"
	"github.com/dumeirei/coupon-platform-backend/internal/middleware"
	"github.com/dumeirei/coupon-platform-backend/internal/repository"
	adminService "github.com/dumeirei/coupon-platform-backend/internal/service/admin"
	authService "github.com/dumeirei/coupon-platform-backend/internal/service/auth"
	marketingService "github.com/dumeirei/coupon-platform-backend/internal/service/marketing"
)

const maxRequestBody = 1 << 20

// 不进入链路追踪的探活路径
var probePaths = []string{"/health", "/ping", "/ready"}

type services struct {
	tokens *jwt.Manager
	auth   *authService.AuthService
	users  *adminService.UserAdminService
	coupon *marketingService.CouponService
	stats  *marketingService.StatsService
}

func newServices(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, notifier marketingService.Notifier) *services {
	tokens := jwt.NewManager(&jwt.Config{
		Secret:     cfg.JWT.Secret,
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
		Issuer:     cfg.JWT.Issuer,
	})
	hasher := crypto.NewPasswordHasher(cfg.Crypto.BcryptCost)
	store := cache.NewStore(redisClient)

	users := repository.NewUserRepository(db)
	coupons := repository.NewCouponRepository(db)
	usages := repository.NewCouponUsageRepository(db)

	return &services{
		tokens: tokens,
		auth:   authService.NewAuthService(users, tokens, hasher, cfg.Marketing.BootstrapAdmin),
		users:  adminService.NewUserAdminService(users, hasher),
		coupon: marketingService.NewCouponService(db, coupons, usages, users, notifier, store),
		stats:  marketingService.NewStatsService(coupons, users, store, cfg.Marketing.StatsCacheTTL, cfg.Marketing.TopN),
	}
}

// useMiddleware 顺序：请求 ID 先于其余中间件，访问日志最后
func useMiddleware(r *gin.Engine, cfg *config.Config, log *zap.Logger) {
	r.Use(
		middleware.RequestID(),
		middleware.Recovery(log),
		middleware.SecureHeaders(),
		middleware.CORS(&cfg.CORS),
		middleware.RequestSizeLimiter(maxRequestBody),
	)
	if cfg.Tracing.Enabled {
		r.Use(tracing.Middleware(cfg.Tracing.ServiceName, slices.Concat(probePaths, []string{cfg.Metrics.Path})...))
	}
	if cfg.Metrics.Enabled {
		r.Use(metrics.Init(cfg.Metrics.Namespace).Middleware(cfg.Metrics.Path))
	}
	r.Use(middleware.AccessLog(log))
}

func rateLimits(cfg *config.Config, redisClient *redis.Client) (login, redeem gin.HandlerFunc) {
	if !cfg.RateLimit.Enabled {
		redisClient = nil
	}
	return middleware.LoginRateLimit(redisClient, cfg.RateLimit.LoginPerMinute),
		middleware.RedeemRateLimit(redisClient, cfg.RateLimit.RedeemPerMinute)
}

// setupRouter 挂载全部路由，返回的优惠券服务供巡检任务使用
func setupRouter(
	r *gin.Engine,
	cfg *config.Config,
	log *zap.Logger,
	db *gorm.DB,
	redisClient *redis.Client,
	notifier marketingService.Notifier,
) *marketingService.CouponService {
	svc := newServices(cfg, db, redisClient, notifier)
	useMiddleware(r, cfg, log)

	r.GET("/health", healthHandler)
	r.GET("/ping", pingHandler)
	r.GET("/ready", readyHandler(db, redisClient))
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, metrics.Handler())
	}
	if !cfg.IsProduction() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	loginLimit, redeemLimit := rateLimits(cfg, redisClient)
	authH := authHandler.NewHandler(svc.auth)

	v1 := r.Group("/api/v1")
	authH.RegisterRoutes(v1, loginLimit)

	member := v1.Group("", middleware.UserAuth(svc.tokens))
	authH.RegisterProtectedRoutes(member)
	marketingHandler.NewCouponHandler(svc.coupon, svc.stats).RegisterRoutes(member, redeemLimit)

	admin := r.Group("/api/admin", middleware.AdminAuth(svc.tokens))
	adminHandler.NewMarketingHandler(svc.coupon, svc.stats).RegisterRoutes(admin)
	adminHandler.NewUserHandler(svc.users).RegisterRoutes(admin)

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "接口不存在")
	})
	return svc.coupon
}
