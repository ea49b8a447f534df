package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dumeirei/coupon-platform-backend/internal/common/config"
	"github.com/dumeirei/coupon-platform-backend/internal/common/jwt"
	"github.com/dumeirei/coupon-platform-backend/internal/common/response"
	"github.com/dumeirei/coupon-platform-backend/internal/models"
	"github.com/dumeirei/coupon-platform-backend/internal/service/notify"
)

type discardNotifier struct{}

func (discardNotifier) Notify(*notify.Notification) {}

func newTestRouter(t *testing.T) (*gin.Engine, *config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Metrics.Enabled = false
	cfg.Tracing.Enabled = false

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	r := gin.New()
	require.NotNil(t, setupRouter(r, cfg, zap.NewNop(), db, nil, discardNotifier{}))
	return r, cfg
}

func bearer(t *testing.T, cfg *config.Config, role string) string {
	t.Helper()
	pair, err := jwt.NewManager(&jwt.Config{
		Secret:     cfg.JWT.Secret,
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
		Issuer:     cfg.JWT.Issuer,
	}).GenerateTokenPair(1, role)
	require.NoError(t, err)
	return "Bearer " + pair.AccessToken
}

func TestSetupRouter(t *testing.T) {
	r, cfg := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		role   string
		status int
		code   int
	}{
		{"探活", http.MethodGet, "/health", "", http.StatusOK, -1},
		{"未知路由", http.MethodGet, "/nope", "", http.StatusNotFound, 1003},
		{"用户接口需要令牌", http.MethodGet, "/api/v1/user/profile", "", http.StatusUnauthorized, 2000},
		{"普通用户访问后台", http.MethodGet, "/api/admin/coupons", models.UserRoleUser, http.StatusForbidden, 2004},
		{"管理员查看优惠券", http.MethodGet, "/api/admin/coupons", models.UserRoleAdmin, http.StatusOK, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.role != "" {
				req.Header.Set("Authorization", bearer(t, cfg, tt.role))
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, tt.status, w.Code, w.Body.String())
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
			if tt.code < 0 {
				return
			}
			var resp response.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}
