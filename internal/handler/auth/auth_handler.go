// Package auth 登录、注册与令牌刷新接口
package auth

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/coupon-platform-backend/internal/common/handler"
	"github.com/dumeirei/coupon-platform-backend/internal/common/jwt"
	"github.com/dumeirei/coupon-platform-backend/internal/common/response"
	authService "github.com/dumeirei/coupon-platform-backend/internal/service/auth"
)

// Service 由 authService.AuthService 实现
type Service interface {
	Login(ctx context.Context, req *authService.LoginRequest) (*authService.LoginResponse, error)
	Register(ctx context.Context, req *authService.RegisterRequest) (*authService.LoginResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*jwt.TokenPair, error)
	GetProfile(ctx context.Context, userID int64) (*authService.UserInfo, error)
}

// Handler 认证接口
type Handler struct {
	svc Service
}

// NewHandler svc 不能为 nil
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 公开路由，loginLimit 只挂在登录和注册上
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, loginLimit gin.HandlerFunc) {
	g := r.Group("/auth")
	g.POST("/login", loginLimit, h.Login)
	g.POST("/register", loginLimit, h.Register)
	g.POST("/refresh", h.RefreshToken)
}

// RegisterProtectedRoutes r 上需已挂 UserAuth
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/user/profile", h.GetProfile)
}

// Login 邮箱密码登录，首次以引导管理员账号登录时会创建该账号
// @Summary 邮箱密码登录
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body authService.LoginRequest true "登录信息"
// @Success 200 {object} response.Response{data=authService.LoginResponse}
// @Failure 401 {object} response.Response
// @Router /api/v1/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req authService.LoginRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	resp, err := h.svc.Login(c.Request.Context(), &req)
	handler.MustSucceed(c, err, resp)
}

// Register 注册普通用户并直接签发令牌
// @Summary 注册普通用户
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body authService.RegisterRequest true "注册信息"
// @Success 201 {object} response.Response{data=authService.LoginResponse}
// @Failure 409 {object} response.Response
// @Router /api/v1/auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req authService.RegisterRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	resp, err := h.svc.Register(c.Request.Context(), &req)
	if handler.HandleError(c, err) {
		return
	}
	response.Created(c, resp)
}

// RefreshToken 用刷新令牌换一对新令牌
// @Summary 刷新令牌
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body authService.RefreshRequest true "刷新令牌"
// @Success 200 {object} response.Response{data=jwt.TokenPair}
// @Failure 401 {object} response.Response
// @Router /api/v1/auth/refresh [post]
func (h *Handler) RefreshToken(c *gin.Context) {
	var req authService.RefreshRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	pair, err := h.svc.RefreshToken(c.Request.Context(), req.RefreshToken)
	handler.MustSucceed(c, err, pair)
}

// GetProfile 当前登录用户
// @Summary 获取当前用户信息
// @Tags 用户
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=authService.UserInfo}
// @Router /api/v1/user/profile [get]
func (h *Handler) GetProfile(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}
	profile, err := h.svc.GetProfile(c.Request.Context(), userID)
	handler.MustSucceed(c, err, profile)
}
