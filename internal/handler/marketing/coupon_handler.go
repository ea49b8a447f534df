// Package marketing 提供优惠券相关的 HTTP Handler
package marketing

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/coupon-platform-backend/internal/common/handler"
	"github.com/dumeirei/coupon-platform-backend/internal/common/response"
	marketingService "github.com/dumeirei/coupon-platform-backend/internal/service/marketing"
)

// CouponHandler 用户端优惠券处理器
type CouponHandler struct {
	couponService *marketingService.CouponService
	statsService  *marketingService.StatsService
}

// NewCouponHandler 创建优惠券处理器
func NewCouponHandler(couponSvc *marketingService.CouponService, statsSvc *marketingService.StatsService) *CouponHandler {
	return &CouponHandler{
		couponService: couponSvc,
		statsService:  statsSvc,
	}
}

// RedeemRequest 核销请求
type RedeemRequest struct {
	Name string `json:"name" binding:"required,notblank"`
}

// Redeem 核销优惠券
// @Summary 核销优惠券
// @Tags 优惠券
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body RedeemRequest true "优惠券名称"
// @Success 200 {object} response.Response{data=marketing.RedemptionReceipt}
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 410 {object} response.Response
// @Router /api/v1/coupons/redeem [post]
func (h *CouponHandler) Redeem(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	var req RedeemRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	receipt, err := h.couponService.RedeemCoupon(c.Request.Context(), userID, strings.TrimSpace(req.Name))
	if handler.HandleError(c, ToAppError(err)) {
		return
	}
	response.SuccessWithMessage(c, "核销成功", receipt)
}

// GetAvailable 获取当前可用的优惠券
// @Summary 获取当前可用的优惠券
// @Tags 优惠券
// @Produce json
// @Security Bearer
// @Param kind query string false "类型：specific / general"
// @Success 200 {object} response.Response{data=[]marketing.CouponDetail}
// @Router /api/v1/coupons/available [get]
func (h *CouponHandler) GetAvailable(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	coupons, err := h.couponService.ListAvailableCoupons(c.Request.Context(), userID, c.Query("kind"))
	handler.MustSucceed(c, ToAppError(err), coupons)
}

// GetHistory 获取兑换历史
// @Summary 获取兑换历史
// @Tags 优惠券
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=[]marketing.HistoryItem}
// @Router /api/v1/coupons/history [get]
func (h *CouponHandler) GetHistory(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	history, err := h.couponService.GetRedemptionHistory(c.Request.Context(), userID)
	handler.MustSucceed(c, ToAppError(err), history)
}

// GetMyStats 获取本人优惠券统计
// @Summary 获取本人优惠券统计
// @Tags 优惠券
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=marketing.UserCouponStats}
// @Router /api/v1/coupons/stats [get]
func (h *CouponHandler) GetMyStats(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	stats, err := h.statsService.GetUserCouponStats(c.Request.Context(), userID)
	handler.MustSucceed(c, err, stats)
}

// RegisterRoutes 注册用户端优惠券路由，需放在认证中间件之后
func (h *CouponHandler) RegisterRoutes(r *gin.RouterGroup, redeemLimit gin.HandlerFunc) {
	coupons := r.Group("/coupons")
	{
		coupons.POST("/redeem", redeemLimit, h.Redeem)
		coupons.GET("/available", h.GetAvailable)
		coupons.GET("/history", h.GetHistory)
		coupons.GET("/stats", h.GetMyStats)
	}
}
