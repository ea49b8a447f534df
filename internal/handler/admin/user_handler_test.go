package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/coupon-platform-backend/internal/common/errors"
	"github.com/dumeirei/coupon-platform-backend/internal/models"
	adminService "github.com/dumeirei/coupon-platform-backend/internal/service/admin"
)

func TestUserAPI_CRUD(t *testing.T) {
	env := setupAdminAPI(t)

	var created adminService.UserInfo
	t.Run("创建", func(t *testing.T) {
		status, resp := env.do(t, http.MethodPost, "/api/admin/users", gin.H{
			"name":     "Alice",
			"email":    "Alice@Example.com",
			"password": "secret123",
		})
		require.Equal(t, http.StatusCreated, status, resp.Message)
		require.NoError(t, json.Unmarshal(resp.Data, &created))
		assert.Equal(t, "alice@example.com", created.Email)
		assert.Equal(t, models.UserRoleUser, created.Role)
	})

	t.Run("邮箱重复", func(t *testing.T) {
		status, resp := env.do(t, http.MethodPost, "/api/admin/users", gin.H{
			"name":     "Alice",
			"email":    "alice@example.com",
			"password": "secret123",
		})
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, errors.ErrEmailExists.Code, resp.Code)
	})

	t.Run("参数校验", func(t *testing.T) {
		status, resp := env.do(t, http.MethodPost, "/api/admin/users", gin.H{
			"name":     "  ",
			"email":    "not-an-email",
			"password": "123",
		})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "name 不能为空", resp.Message)
	})

	t.Run("列表", func(t *testing.T) {
		status, resp := env.do(t, http.MethodGet, "/api/admin/users?role=user", nil)
		require.Equal(t, http.StatusOK, status)

		var page pageData
		require.NoError(t, json.Unmarshal(resp.Data, &page))
		assert.Equal(t, int64(1), page.Total)
	})

	t.Run("详情", func(t *testing.T) {
		status, resp := env.do(t, http.MethodGet, fmt.Sprintf("/api/admin/users/%d", created.ID), nil)
		require.Equal(t, http.StatusOK, status)

		var info adminService.UserInfo
		require.NoError(t, json.Unmarshal(resp.Data, &info))
		assert.Equal(t, "Alice", info.Name)
	})

	t.Run("更新", func(t *testing.T) {
		status, resp := env.do(t, http.MethodPut, fmt.Sprintf("/api/admin/users/%d", created.ID), gin.H{"name": "Alice L"})
		require.Equal(t, http.StatusOK, status)

		var info adminService.UserInfo
		require.NoError(t, json.Unmarshal(resp.Data, &info))
		assert.Equal(t, "Alice L", info.Name)
	})

	t.Run("禁用", func(t *testing.T) {
		status, resp := env.do(t, http.MethodPut, fmt.Sprintf("/api/admin/users/%d/status", created.ID), nil)
		require.Equal(t, http.StatusOK, status)

		var info adminService.UserInfo
		require.NoError(t, json.Unmarshal(resp.Data, &info))
		assert.False(t, info.IsActive)
	})

	t.Run("删除", func(t *testing.T) {
		status, _ := env.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", created.ID), nil)
		require.Equal(t, http.StatusOK, status)

		status, resp := env.do(t, http.MethodGet, fmt.Sprintf("/api/admin/users/%d", created.ID), nil)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, errors.ErrUserNotFound.Code, resp.Code)
	})
}

func TestUserAPI_AdminProtection(t *testing.T) {
	env := setupAdminAPI(t)

	t.Run("不能删除管理员", func(t *testing.T) {
		status, resp := env.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", env.admin.ID), nil)
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, errors.ErrCannotDeleteAdmin.Code, resp.Code)
	})

	t.Run("不能禁用自己", func(t *testing.T) {
		status, resp := env.do(t, http.MethodPut, fmt.Sprintf("/api/admin/users/%d/status", env.admin.ID), nil)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, errors.ErrCannotDisableSelf.Code, resp.Code)
	})

	t.Run("普通用户无权访问", func(t *testing.T) {
		_, token := env.createUser(t, "Bob", models.UserRoleUser)
		w := env.request(t, http.MethodGet, "/api/admin/users", token, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
