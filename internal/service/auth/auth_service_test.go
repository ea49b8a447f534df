// Package auth 认证服务单元测试
package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dumeirei/coupon-platform-backend/internal/common/config"
	"github.com/dumeirei/coupon-platform-backend/internal/common/crypto"
	"github.com/dumeirei/coupon-platform-backend/internal/common/errors"
	"github.com/dumeirei/coupon-platform-backend/internal/common/jwt"
	"github.com/dumeirei/coupon-platform-backend/internal/models"
	"github.com/dumeirei/coupon-platform-backend/internal/repository"
)

var testBootstrap = config.BootstrapAdmin{
	Name:     "Root",
	Email:    "Root@Example.com",
	Password: "bootstrap-pass",
}

// setupTestDB 创建测试数据库
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
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

// setupTestAuthService 创建测试用的 AuthService
func setupTestAuthService(t *testing.T, bootstrap config.BootstrapAdmin) (*AuthService, *gorm.DB) {
	db := setupTestDB(t)
	jwtManager := jwt.NewManager(&jwt.Config{
		Secret:     "test-secret-key",
		AccessTTL:  time.Hour,
		RefreshTTL: 2 * time.Hour,
		Issuer:     "test",
	})
	hasher := crypto.NewPasswordHasher(bcrypt.MinCost)
	return NewAuthService(repository.NewUserRepository(db), jwtManager, hasher, bootstrap), db
}

func createUser(t *testing.T, db *gorm.DB, email, password, role string, active bool) *models.User {
	hash, err := crypto.NewPasswordHasher(bcrypt.MinCost).Hash(password)
	require.NoError(t, err)
	user := &models.User{
		Name:         "tester",
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     active,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestAuthService_Login(t *testing.T) {
	service, db := setupTestAuthService(t, config.BootstrapAdmin{})
	ctx := t.Context()
	user := createUser(t, db, "alice@example.com", "secret123", models.UserRoleUser, true)
	createUser(t, db, "disabled@example.com", "secret123", models.UserRoleUser, false)

	t.Run("登录成功", func(t *testing.T) {
		resp, err := service.Login(ctx, &LoginRequest{Email: " Alice@Example.com", Password: "secret123"})
		require.NoError(t, err)
		assert.Equal(t, user.ID, resp.User.ID)
		assert.Equal(t, models.UserRoleUser, resp.User.Role)
		require.NotNil(t, resp.TokenPair)

		claims, err := service.jwtManager.ParseAccessToken(resp.TokenPair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, user.ID, claims.UserID)
		assert.Equal(t, jwt.RoleUser, claims.Role)

		var stored models.User
		require.NoError(t, db.First(&stored, user.ID).Error)
		assert.NotNil(t, stored.LastLoginAt)
	})

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"密码错误", "alice@example.com", "wrong", errors.ErrPasswordError},
		{"用户不存在", "nobody@example.com", "secret123", errors.ErrPasswordError},
		{"账号已禁用", "disabled@example.com", "secret123", errors.ErrAccountDisabled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Login(ctx, &LoginRequest{Email: tt.email, Password: tt.password})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAuthService_BootstrapAdmin(t *testing.T) {
	t.Run("首次登录创建管理员", func(t *testing.T) {
		service, db := setupTestAuthService(t, testBootstrap)
		ctx := t.Context()

		resp, err := service.Login(ctx, &LoginRequest{Email: "root@example.com", Password: "bootstrap-pass"})
		require.NoError(t, err)
		assert.Equal(t, models.UserRoleAdmin, resp.User.Role)
		assert.Equal(t, "Root", resp.User.Name)

		var count int64
		require.NoError(t, db.Model(&models.User{}).Where("role = ?", models.UserRoleAdmin).Count(&count).Error)
		assert.Equal(t, int64(1), count)

		// 再次登录使用已创建的账号
		again, err := service.Login(ctx, &LoginRequest{Email: "root@example.com", Password: "bootstrap-pass"})
		require.NoError(t, err)
		assert.Equal(t, resp.User.ID, again.User.ID)
	})

	t.Run("密码不匹配不创建", func(t *testing.T) {
		service, db := setupTestAuthService(t, testBootstrap)

		_, err := service.Login(t.Context(), &LoginRequest{Email: "root@example.com", Password: "guess"})
		assert.ErrorIs(t, err, errors.ErrPasswordError)

		var count int64
		require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
		assert.Zero(t, count)
	})

	t.Run("已有管理员时不创建", func(t *testing.T) {
		service, db := setupTestAuthService(t, testBootstrap)
		createUser(t, db, "admin@example.com", "secret123", models.UserRoleAdmin, true)

		_, err := service.Login(t.Context(), &LoginRequest{Email: "root@example.com", Password: "bootstrap-pass"})
		assert.ErrorIs(t, err, errors.ErrPasswordError)
	})

	t.Run("创建前不能注册该邮箱", func(t *testing.T) {
		service, db := setupTestAuthService(t, testBootstrap)
		ctx := t.Context()

		_, err := service.Register(ctx, &RegisterRequest{Name: "Mallory", Email: " Root@Example.com ", Password: "secret123"})
		assert.ErrorIs(t, err, errors.ErrEmailExists)

		var count int64
		require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
		assert.Zero(t, count)

		resp, err := service.Login(ctx, &LoginRequest{Email: "root@example.com", Password: "bootstrap-pass"})
		require.NoError(t, err)
		assert.Equal(t, models.UserRoleAdmin, resp.User.Role)
	})

	t.Run("已有管理员后该邮箱按普通规则注册", func(t *testing.T) {
		service, db := setupTestAuthService(t, testBootstrap)
		createUser(t, db, "admin@example.com", "secret123", models.UserRoleAdmin, true)

		resp, err := service.Register(t.Context(), &RegisterRequest{Name: "Root", Email: "root@example.com", Password: "secret123"})
		require.NoError(t, err)
		assert.Equal(t, models.UserRoleUser, resp.User.Role)
	})

	t.Run("未配置时不创建", func(t *testing.T) {
		service, _ := setupTestAuthService(t, config.BootstrapAdmin{Email: "root@example.com"})

		_, err := service.Login(t.Context(), &LoginRequest{Email: "root@example.com", Password: ""})
		assert.ErrorIs(t, err, errors.ErrPasswordError)
	})
}

func TestAuthService_Register(t *testing.T) {
	service, db := setupTestAuthService(t, config.BootstrapAdmin{})
	ctx := t.Context()

	phone := "+8613800138000"
	resp, err := service.Register(ctx, &RegisterRequest{
		Name:     " Bob ",
		Email:    "Bob@Example.com",
		Password: "secret123",
		Phone:    &phone,
	})
	require.NoError(t, err)
	assert.Equal(t, "Bob", resp.User.Name)
	assert.Equal(t, "bob@example.com", resp.User.Email)
	assert.Equal(t, models.UserRoleUser, resp.User.Role)
	assert.NotEmpty(t, resp.TokenPair.AccessToken)

	var stored models.User
	require.NoError(t, db.First(&stored, resp.User.ID).Error)
	assert.True(t, stored.IsActive)

	t.Run("邮箱已存在", func(t *testing.T) {
		_, err := service.Register(ctx, &RegisterRequest{Name: "Bob", Email: "bob@example.com", Password: "secret123"})
		assert.ErrorIs(t, err, errors.ErrEmailExists)
	})

	t.Run("手机号格式错误", func(t *testing.T) {
		bad := "12-34"
		_, err := service.Register(ctx, &RegisterRequest{Name: "Eve", Email: "eve@example.com", Password: "secret123", Phone: &bad})
		assert.ErrorIs(t, err, errors.ErrInvalidParams)
	})
}

func TestAuthService_RefreshToken(t *testing.T) {
	service, db := setupTestAuthService(t, config.BootstrapAdmin{})
	ctx := t.Context()
	user := createUser(t, db, "alice@example.com", "secret123", models.UserRoleUser, true)

	login, err := service.Login(ctx, &LoginRequest{Email: "alice@example.com", Password: "secret123"})
	require.NoError(t, err)

	t.Run("刷新成功并使用最新角色", func(t *testing.T) {
		require.NoError(t, db.Model(user).Update("role", models.UserRoleAdmin).Error)

		pair, err := service.RefreshToken(ctx, login.TokenPair.RefreshToken)
		require.NoError(t, err)
		claims, err := service.jwtManager.ParseAccessToken(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, jwt.RoleAdmin, claims.Role)
	})

	t.Run("访问令牌不能用于刷新", func(t *testing.T) {
		_, err := service.RefreshToken(ctx, login.TokenPair.AccessToken)
		assert.ErrorIs(t, err, errors.ErrTokenInvalid)
	})

	t.Run("无效令牌", func(t *testing.T) {
		_, err := service.RefreshToken(ctx, "invalid")
		assert.ErrorIs(t, err, errors.ErrTokenInvalid)
	})

	t.Run("账号禁用后不能刷新", func(t *testing.T) {
		require.NoError(t, db.Model(user).Update("is_active", false).Error)
		_, err := service.RefreshToken(ctx, login.TokenPair.RefreshToken)
		assert.ErrorIs(t, err, errors.ErrAccountDisabled)
	})

	t.Run("用户已删除", func(t *testing.T) {
		require.NoError(t, db.Delete(&models.User{}, user.ID).Error)
		_, err := service.RefreshToken(ctx, login.TokenPair.RefreshToken)
		assert.ErrorIs(t, err, errors.ErrTokenRefreshFail)
	})
}

func TestAuthService_GetProfile(t *testing.T) {
	service, db := setupTestAuthService(t, config.BootstrapAdmin{})
	user := createUser(t, db, "alice@example.com", "secret123", models.UserRoleUser, true)

	info, err := service.GetProfile(t.Context(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", info.Email)

	_, err = service.GetProfile(t.Context(), 9999)
	assert.ErrorIs(t, err, errors.ErrUserNotFound)
}

func TestAuthService_LoginRehashesOldCost(t *testing.T) {
	service, db := setupTestAuthService(t, config.BootstrapAdmin{})

	old, err := crypto.NewPasswordHasher(bcrypt.MinCost + 1).Hash("secret123")
	require.NoError(t, err)
	user := &models.User{Name: "old", Email: "old@example.com", PasswordHash: old, Role: models.UserRoleUser, IsActive: true}
	require.NoError(t, db.Create(user).Error)

	_, err = service.Login(t.Context(), &LoginRequest{Email: "old@example.com", Password: "secret123"})
	require.NoError(t, err)

	var stored models.User
	require.NoError(t, db.First(&stored, user.ID).Error)
	assert.NotEqual(t, old, stored.PasswordHash)
	cost, err := bcrypt.Cost([]byte(stored.PasswordHash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
	assert.True(t, crypto.VerifyPassword("secret123", stored.PasswordHash))
}
