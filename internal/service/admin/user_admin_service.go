// Package admin 管理端服务
package admin

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/coupon-platform-backend/internal/common/crypto"
	"github.com/dumeirei/coupon-platform-backend/internal/common/errors"
	"github.com/dumeirei/coupon-platform-backend/internal/common/logger"
	"github.com/dumeirei/coupon-platform-backend/internal/common/utils"
	"github.com/dumeirei/coupon-platform-backend/internal/models"
	"github.com/dumeirei/coupon-platform-backend/internal/repository"
)

// UserAdminService 用户管理服务
type UserAdminService struct {
	userRepo *repository.UserRepository
	hasher   *crypto.PasswordHasher
}

// NewUserAdminService 创建用户管理服务
func NewUserAdminService(userRepo *repository.UserRepository, hasher *crypto.PasswordHasher) *UserAdminService {
	return &UserAdminService{
		userRepo: userRepo,
		hasher:   hasher,
	}
}

// UserListFilters 用户列表筛选条件
type UserListFilters struct {
	Keyword  string
	Role     string
	IsActive *bool
}

// UserInfo 管理端用户信息
type UserInfo struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone,omitempty"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// CreateUserRequest 创建用户请求
type CreateUserRequest struct {
	Name     string  `json:"name" binding:"required,notblank,max=100"`
	Email    string  `json:"email" binding:"required,email"`
	Password string  `json:"password" binding:"required,min=6,max=72"`
	Phone    *string `json:"phone"`
	Role     string  `json:"role"`
}

// UpdateUserRequest 更新用户请求，未传的字段保持不变
type UpdateUserRequest struct {
	Name     *string `json:"name" binding:"omitempty,notblank,max=100"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Password *string `json:"password" binding:"omitempty,min=6,max=72"`
	Phone    *string `json:"phone"`
	Role     *string `json:"role"`
}

// List 获取用户列表
func (s *UserAdminService) List(ctx context.Context, page, pageSize int, filters *UserListFilters) ([]*UserInfo, int64, error) {
	p := utils.NewPagination(page, pageSize)
	params := repository.UserListParams{Offset: p.Offset(), Limit: p.Limit()}
	if filters != nil {
		params.Keyword = filters.Keyword
		params.Role = filters.Role
		params.IsActive = filters.IsActive
	}

	users, total, err := s.userRepo.List(ctx, params)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}

	results := make([]*UserInfo, len(users))
	for i, user := range users {
		results[i] = ToUserInfo(user)
	}
	return results, total, nil
}

// Get 获取用户详情
func (s *UserAdminService) Get(ctx context.Context, id int64) (*UserInfo, error) {
	user, err := s.getUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToUserInfo(user), nil
}

// Create 创建用户，角色为空时默认为普通用户
func (s *UserAdminService) Create(ctx context.Context, req *CreateUserRequest) (*UserInfo, error) {
	role := req.Role
	if role == "" {
		role = models.UserRoleUser
	}
	if !models.ValidUserRole(role) {
		return nil, errors.ErrInvalidParams.WithMessage("无效的角色")
	}

	email := utils.NormalizeEmail(req.Email)
	if err := s.checkEmail(ctx, email, 0); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, errors.ErrInvalidParams.WithMessage("密码格式不正确")
	}

	user := &models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		Phone:        normalizePhone(req.Phone),
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errors.ErrEmailExists
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	logger.Info("user created",
		logger.Module("admin"),
		logger.UserID(user.ID),
		zap.String("role", user.Role),
	)
	return ToUserInfo(user), nil
}

// Update 更新用户
func (s *UserAdminService) Update(ctx context.Context, id int64, req *UpdateUserRequest) (*UserInfo, error) {
	user, err := s.getUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		email := utils.NormalizeEmail(*req.Email)
		if email != user.Email {
			if err := s.checkEmail(ctx, email, id); err != nil {
				return nil, err
			}
			user.Email = email
		}
	}
	if req.Password != nil {
		hash, err := s.hasher.Hash(*req.Password)
		if err != nil {
			return nil, errors.ErrInvalidParams.WithMessage("密码格式不正确")
		}
		user.PasswordHash = hash
	}
	if req.Phone != nil {
		user.Phone = normalizePhone(req.Phone)
	}
	if req.Role != nil {
		if !models.ValidUserRole(*req.Role) {
			return nil, errors.ErrInvalidParams.WithMessage("无效的角色")
		}
		user.Role = *req.Role
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errors.ErrEmailExists
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return ToUserInfo(user), nil
}

// Delete 删除用户，管理员账号不可删除
// 该用户已有的分配与兑换记录保留，读取时标记为已删除用户
func (s *UserAdminService) Delete(ctx context.Context, id int64) error {
	user, err := s.getUser(ctx, id)
	if err != nil {
		return err
	}
	if user.IsAdmin() {
		return errors.ErrCannotDeleteAdmin
	}

	if err := s.userRepo.Delete(ctx, id); err != nil {
		return errors.ErrDatabaseError.WithError(err)
	}

	logger.Info("user deleted", logger.Module("admin"), logger.UserID(id))
	return nil
}

// ToggleStatus 启用/禁用用户，不能禁用当前操作的管理员自己
func (s *UserAdminService) ToggleStatus(ctx context.Context, operatorID, id int64) (*UserInfo, error) {
	user, err := s.getUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.ID == operatorID && user.IsActive {
		return nil, errors.ErrCannotDisableSelf
	}

	user.IsActive = !user.IsActive
	if err := s.userRepo.UpdateFields(ctx, id, map[string]interface{}{"is_active": user.IsActive}); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return ToUserInfo(user), nil
}

func (s *UserAdminService) getUser(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrUserNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return user, nil
}

func (s *UserAdminService) checkEmail(ctx context.Context, email string, excludeID int64) error {
	exists, err := s.userRepo.ExistsByEmail(ctx, email, excludeID)
	if err != nil {
		return errors.ErrDatabaseError.WithError(err)
	}
	if exists {
		return errors.ErrEmailExists
	}
	return nil
}

func normalizePhone(phone *string) *string {
	if phone == nil {
		return nil
	}
	p := strings.TrimSpace(*phone)
	if p == "" {
		return nil
	}
	return &p
}

// ToUserInfo 转换为管理端用户信息
func ToUserInfo(user *models.User) *UserInfo {
	return &UserInfo{
		ID:          user.ID,
		Name:        user.Name,
		Email:       user.Email,
		Phone:       lo.FromPtr(user.Phone),
		Role:        user.Role,
		IsActive:    user.IsActive,
		LastLoginAt: user.LastLoginAt,
		CreatedAt:   user.CreatedAt,
	}
}
