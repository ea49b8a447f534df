package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dumeirei/coupon-platform-backend/internal/models"
)

func TestUserRepository_CRUD(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := &models.User{
		Name:         "Alice",
		Email:        "alice@example.com",
		PasswordHash: "hash",
		Role:         models.UserRoleUser,
		IsActive:     true,
	}
	require.NoError(t, repo.Create(ctx, user))
	assert.NotZero(t, user.ID)

	t.Run("按邮箱获取", func(t *testing.T) {
		found, err := repo.GetByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
	})

	t.Run("邮箱唯一", func(t *testing.T) {
		err := repo.Create(ctx, &models.User{Name: "A2", Email: "alice@example.com", PasswordHash: "x", Role: models.UserRoleUser})
		assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

		exists, err := repo.ExistsByEmail(ctx, "alice@example.com", 0)
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = repo.ExistsByEmail(ctx, "alice@example.com", user.ID)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("更新字段", func(t *testing.T) {
		require.NoError(t, repo.UpdateFields(ctx, user.ID, map[string]interface{}{"name": "Alice L"}))
		at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
		require.NoError(t, repo.UpdateLastLogin(ctx, user.ID, at))

		found, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "Alice L", found.Name)
		require.NotNil(t, found.LastLoginAt)
		assert.True(t, at.Equal(*found.LastLoginAt))
	})

	t.Run("删除", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, user.ID))
		_, err := repo.GetByID(ctx, user.ID)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})
}

func TestUserRepository_FindManyByIDs(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	alice := createRepoTestUser(t, db, "Alice")
	bob := createRepoTestUser(t, db, "Bob")

	users, err := repo.FindManyByIDs(ctx, []int64{bob.ID, alice.ID, 9999})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, alice.ID, users[0].ID)
	assert.Equal(t, bob.ID, users[1].ID)

	users, err = repo.FindManyByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestUserRepository_List(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	createRepoTestUser(t, db, "Alice")
	bob := createRepoTestUser(t, db, "Bob")
	require.NoError(t, db.Model(bob).Update("is_active", false).Error)
	admin := createRepoTestUser(t, db, "Root")
	require.NoError(t, db.Model(admin).Update("role", models.UserRoleAdmin).Error)

	tests := []struct {
		name   string
		params UserListParams
		total  int64
	}{
		{"全部", UserListParams{Limit: 10}, 3},
		{"按角色", UserListParams{Limit: 10, Role: models.UserRoleAdmin}, 1},
		{"按关键字", UserListParams{Limit: 10, Keyword: "bob@"}, 1},
		{"按状态", UserListParams{Limit: 10, IsActive: new(bool)}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, total, err := repo.List(ctx, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.total, total)
		})
	}

	count, err := repo.CountByRole(ctx, models.UserRoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
