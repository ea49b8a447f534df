// Package auth 提供认证服务
package auth

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/coupon-platform-backend/internal/common/config"
	"github.com/dumeirei/coupon-platform-backend/internal/common/crypto"
	"github.com/dumeirei/coupon-platform-backend/internal/common/errors"
	"github.com/dumeirei/coupon-platform-backend/internal/common/jwt"
	"github.com/dumeirei/coupon-platform-backend/internal/common/logger"
	"github.com/dumeirei/coupon-platform-backend/internal/common/utils"
	"github.com/dumeirei/coupon-platform-backend/internal/models"
	"github.com/dumeirei/coupon-platform-backend/internal/repository"
)

// AuthService 认证服务
type AuthService struct {
	userRepo   *repository.UserRepository
	jwtManager *jwt.Manager
	hasher     *crypto.PasswordHasher
	bootstrap  config.BootstrapAdmin
	now        func() time.Time
}

// NewAuthService 创建认证服务
func NewAuthService(
	userRepo *repository.UserRepository,
	jwtManager *jwt.Manager,
	hasher *crypto.PasswordHasher,
	bootstrap config.BootstrapAdmin,
) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
		hasher:     hasher,
		bootstrap:  bootstrap,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Name     string  `json:"name" binding:"required,notblank,max=100"`
	Email    string  `json:"email" binding:"required,email"`
	Password string  `json:"password" binding:"required,min=6,max=72"`
	Phone    *string `json:"phone"`
}

// RefreshRequest 刷新令牌请求
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	User      *UserInfo      `json:"user"`
	TokenPair *jwt.TokenPair `json:"token"`
}

// UserInfo 用户信息
type UserInfo struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Phone *string `json:"phone,omitempty"`
	Role  string  `json:"role"`
}

// Login 邮箱密码登录
// 系统中还没有管理员时，使用配置中的初始管理员账号登录会先创建该管理员
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	email := utils.NormalizeEmail(req.Email)

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if !stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrDatabaseError.WithError(err)
		}
		user, err = s.bootstrapAdmin(ctx, email, req.Password)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, errors.ErrPasswordError
		}
	}

	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		return nil, errors.ErrPasswordError
	}
	if !user.IsActive {
		return nil, errors.ErrAccountDisabled
	}

	tokenPair, err := s.jwtManager.GenerateTokenPair(user.ID, user.Role)
	if err != nil {
		return nil, errors.ErrInternalServer.WithError(err)
	}

	now := s.now()
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		logger.Warn("update last login failed", logger.Module("auth"), logger.UserID(user.ID), zap.Error(err))
	}
	s.rehashIfNeeded(ctx, user, req.Password)

	return &LoginResponse{
		User:      toUserInfo(user),
		TokenPair: tokenPair,
	}, nil
}

// rehashIfNeeded bcrypt 强度调整后，在用户下次登录时换成新哈希
func (s *AuthService) rehashIfNeeded(ctx context.Context, user *models.User, password string) {
	if !s.hasher.NeedsRehash(user.PasswordHash) {
		return
	}
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.userRepo.UpdateFields(ctx, user.ID, map[string]interface{}{"password_hash": hash})
	}
	if err != nil {
		logger.Warn("password rehash failed", logger.Module("auth"), logger.UserID(user.ID), zap.Error(err))
	}
}

// bootstrapReserved 初始管理员创建之前，配置中的邮箱不开放注册
func (s *AuthService) bootstrapReserved(ctx context.Context, email string) (bool, error) {
	if !s.bootstrap.Enabled() || email != utils.NormalizeEmail(s.bootstrap.Email) {
		return false, nil
	}
	admins, err := s.userRepo.CountByRole(ctx, models.UserRoleAdmin)
	if err != nil {
		return false, errors.ErrDatabaseError.WithError(err)
	}
	return admins == 0, nil
}

// bootstrapAdmin 按配置创建初始管理员，条件不满足时返回 nil
func (s *AuthService) bootstrapAdmin(ctx context.Context, email, password string) (*models.User, error) {
	if !s.bootstrap.Enabled() || email != utils.NormalizeEmail(s.bootstrap.Email) || password != s.bootstrap.Password {
		return nil, nil
	}

	admins, err := s.userRepo.CountByRole(ctx, models.UserRoleAdmin)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if admins > 0 {
		return nil, nil
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, errors.ErrInternalServer.WithError(err)
	}

	name := strings.TrimSpace(s.bootstrap.Name)
	if name == "" {
		name = "Administrator"
	}
	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         models.UserRoleAdmin,
		IsActive:     true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	logger.Info("bootstrap admin created", logger.Module("auth"), logger.UserID(user.ID))
	return user, nil
}

// Register 注册普通用户并直接登录
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*LoginResponse, error) {
	email := utils.NormalizeEmail(req.Email)

	exists, err := s.userRepo.ExistsByEmail(ctx, email, 0)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if exists {
		return nil, errors.ErrEmailExists
	}
	reserved, err := s.bootstrapReserved(ctx, email)
	if err != nil {
		return nil, err
	}
	if reserved {
		return nil, errors.ErrEmailExists
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, errors.ErrInvalidParams.WithMessage("密码格式不正确")
	}

	var phone *string
	if req.Phone != nil && strings.TrimSpace(*req.Phone) != "" {
		p := strings.TrimSpace(*req.Phone)
		if !utils.ValidatePhone(p) {
			return nil, errors.ErrInvalidParams.WithMessage("手机号格式不正确")
		}
		phone = &p
	}

	user := &models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		Phone:        phone,
		PasswordHash: hash,
		Role:         models.UserRoleUser,
		IsActive:     true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errors.ErrEmailExists
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	tokenPair, err := s.jwtManager.GenerateTokenPair(user.ID, user.Role)
	if err != nil {
		return nil, errors.ErrInternalServer.WithError(err)
	}

	logger.Info("user registered", logger.Module("auth"), logger.UserID(user.ID))
	return &LoginResponse{
		User:      toUserInfo(user),
		TokenPair: tokenPair,
	}, nil
}

// RefreshToken 刷新令牌，角色以数据库中的当前值为准
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*jwt.TokenPair, error) {
	claims, err := s.jwtManager.ParseRefreshToken(refreshToken)
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.ErrTokenExpired
		}
		return nil, errors.ErrTokenInvalid
	}

	user, err := s.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if stderrors.Is(err, errors.ErrUserNotFound) {
			return nil, errors.ErrTokenRefreshFail
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, errors.ErrAccountDisabled
	}

	tokenPair, err := s.jwtManager.GenerateTokenPair(user.ID, user.Role)
	if err != nil {
		return nil, errors.ErrInternalServer.WithError(err)
	}
	return tokenPair, nil
}

// GetUserByID 根据 ID 获取用户
func (s *AuthService) GetUserByID(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrUserNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return user, nil
}

// GetProfile 当前用户资料
func (s *AuthService) GetProfile(ctx context.Context, userID int64) (*UserInfo, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toUserInfo(user), nil
}

func toUserInfo(user *models.User) *UserInfo {
	return &UserInfo{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Phone: user.Phone,
		Role:  user.Role,
	}
}
