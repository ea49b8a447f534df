package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/dumeirei/coupon-platform-backend/internal/models"
)

// UserRepository 用户表读写，未找到时返回 gorm.ErrRecordNotFound
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) users(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.User{})
}

func (r *UserRepository) first(ctx context.Context, scope func(*gorm.DB) *gorm.DB) (*models.User, error) {
	user := new(models.User)
	if err := r.db.WithContext(ctx).Scopes(scope).First(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.first(ctx, func(db *gorm.DB) *gorm.DB { return db.Where("id = ?", id) })
}

// GetByEmail email 需先经过 utils.NormalizeEmail
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, func(db *gorm.DB) *gorm.DB { return db.Where("email = ?", email) })
}

// FindManyByIDs 按 id 升序返回，不存在的 id 被忽略
func (r *UserRepository) FindManyByIDs(ctx context.Context, ids []int64) ([]*models.User, error) {
	users := make([]*models.User, 0, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&users).Error
	return users, err
}

// Update 整行保存
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

// UpdateFields 只更新给定列，零值同样写入
func (r *UserRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.users(ctx).Where("id = ?", id).Updates(fields).Error
}

// UpdateLastLogin 不触发 updated_at
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	return r.users(ctx).Where("id = ?", id).UpdateColumn("last_login_at", at).Error
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&models.User{}, id).Error
}

// UserListParams 管理端用户列表的筛选条件，零值表示不过滤
type UserListParams struct {
	Offset   int
	Limit    int
	Keyword  string
	Role     string
	IsActive *bool
}

func (p UserListParams) scope(db *gorm.DB) *gorm.DB {
	if kw := strings.TrimSpace(p.Keyword); kw != "" {
		like := "%" + kw + "%"
		db = db.Where("(name LIKE ? OR email LIKE ?)", like, like)
	}
	if p.Role != "" {
		db = db.Where("role = ?", p.Role)
	}
	if p.IsActive != nil {
		db = db.Where("is_active = ?", *p.IsActive)
	}
	return db
}

// List 新注册的用户在前
func (r *UserRepository) List(ctx context.Context, params UserListParams) ([]*models.User, int64, error) {
	var total int64
	if err := r.users(ctx).Scopes(params.scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []*models.User
	err := r.users(ctx).Scopes(params.scope).
		Order("id DESC").
		Offset(params.Offset).
		Limit(params.Limit).
		Find(&users).Error
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// ExistsByEmail excludeID 大于 0 时排除该用户自身
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error) {
	q := r.users(ctx).Where("email = ?", email)
	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var n int64
	err := q.Count(&n).Error
	return n > 0, err
}

func (r *UserRepository) CountByRole(ctx context.Context, role string) (int64, error) {
	var n int64
	err := r.users(ctx).Where("role = ?", role).Count(&n).Error
	return n, err
}
