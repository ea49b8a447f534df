package admin

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/coupon-platform-backend/internal/common/handler"
	"github.com/dumeirei/coupon-platform-backend/internal/common/response"
	"github.com/dumeirei/coupon-platform-backend/internal/middleware"
	adminService "github.com/dumeirei/coupon-platform-backend/internal/service/admin"
)

// UserService 由 adminService.UserAdminService 实现
type UserService interface {
	List(ctx context.Context, page, pageSize int, filters *adminService.UserListFilters) ([]*adminService.UserInfo, int64, error)
	Get(ctx context.Context, id int64) (*adminService.UserInfo, error)
	Create(ctx context.Context, req *adminService.CreateUserRequest) (*adminService.UserInfo, error)
	Update(ctx context.Context, id int64, req *adminService.UpdateUserRequest) (*adminService.UserInfo, error)
	Delete(ctx context.Context, id int64) error
	ToggleStatus(ctx context.Context, operatorID, id int64) (*adminService.UserInfo, error)
}

// UserHandler 后台账号管理
type UserHandler struct {
	users UserService
}

func NewUserHandler(users UserService) *UserHandler {
	return &UserHandler{users: users}
}

func (h *UserHandler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/users")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.PUT("/:id/status", h.ToggleStatus)
}

// List 分页查询，keyword 同时匹配名称与邮箱
// @Summary 获取用户列表
// @Tags 管理端-用户管理
// @Produce json
// @Security Bearer
// @Param keyword query string false "名称或邮箱关键词"
// @Param role query string false "角色：user / admin"
// @Param is_active query bool false "是否启用"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=response.PageData{list=[]admin.UserInfo}}
// @Router /api/admin/users [get]
func (h *UserHandler) List(c *gin.Context) {
	active, ok := handler.ParseQueryBool(c, "is_active")
	if !ok {
		return
	}
	p := handler.BindPagination(c)
	filters := &adminService.UserListFilters{
		Keyword:  c.Query("keyword"),
		Role:     c.Query("role"),
		IsActive: active,
	}

	list, total, err := h.users.List(c.Request.Context(), p.Page, p.PageSize, filters)
	handler.MustSucceedPage(c, err, list, total, p.Page, p.PageSize)
}

// Get
// @Summary 获取用户详情
// @Tags 管理端-用户管理
// @Produce json
// @Security Bearer
// @Param id path int true "用户ID"
// @Success 200 {object} response.Response{data=admin.UserInfo}
// @Failure 404 {object} response.Response
// @Router /api/admin/users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	if id, ok := handler.ParseID(c, "用户"); ok {
		info, err := h.users.Get(c.Request.Context(), id)
		handler.MustSucceed(c, err, info)
	}
}

// Create 未指定角色时为普通用户
// @Summary 创建用户
// @Tags 管理端-用户管理
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body admin.CreateUserRequest true "用户信息"
// @Success 201 {object} response.Response{data=admin.UserInfo}
// @Failure 409 {object} response.Response
// @Router /api/admin/users [post]
func (h *UserHandler) Create(c *gin.Context) {
	var req adminService.CreateUserRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	info, err := h.users.Create(c.Request.Context(), &req)
	if handler.HandleError(c, err) {
		return
	}
	response.Created(c, info)
}

// Update 只修改请求中出现的字段
// @Summary 更新用户
// @Tags 管理端-用户管理
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "用户ID"
// @Param request body admin.UpdateUserRequest true "更新内容"
// @Success 200 {object} response.Response{data=admin.UserInfo}
// @Router /api/admin/users/{id} [put]
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := handler.ParseID(c, "用户")
	if !ok {
		return
	}
	var req adminService.UpdateUserRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	info, err := h.users.Update(c.Request.Context(), id, &req)
	handler.MustSucceed(c, err, info)
}

// Delete
// @Summary 删除用户
// @Tags 管理端-用户管理
// @Produce json
// @Security Bearer
// @Param id path int true "用户ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /api/admin/users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	if id, ok := handler.ParseID(c, "用户"); ok {
		handler.MustSucceedWithMessage(c, h.users.Delete(c.Request.Context(), id), "删除成功", nil)
	}
}

// ToggleStatus 管理员不能禁用自己
// @Summary 启用/禁用用户
// @Tags 管理端-用户管理
// @Produce json
// @Security Bearer
// @Param id path int true "用户ID"
// @Success 200 {object} response.Response{data=admin.UserInfo}
// @Router /api/admin/users/{id}/status [put]
func (h *UserHandler) ToggleStatus(c *gin.Context) {
	id, ok := handler.ParseID(c, "用户")
	if !ok {
		return
	}
	info, err := h.users.ToggleStatus(c.Request.Context(), middleware.GetUserID(c), id)
	handler.MustSucceed(c, err, info)
}
