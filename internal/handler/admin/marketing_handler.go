// Package admin 提供管理端 HTTP Handler
package admin

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/coupon-platform-backend/internal/common/handler"
	"github.com/dumeirei/coupon-platform-backend/internal/common/qrcode"
	"github.com/dumeirei/coupon-platform-backend/internal/common/response"
	marketingHandler "github.com/dumeirei/coupon-platform-backend/internal/handler/marketing"
	"github.com/dumeirei/coupon-platform-backend/internal/middleware"
	marketingService "github.com/dumeirei/coupon-platform-backend/internal/service/marketing"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// MarketingHandler 优惠券管理处理器
type MarketingHandler struct {
	couponService *marketingService.CouponService
	statsService  *marketingService.StatsService
}

// NewMarketingHandler 创建优惠券管理处理器
func NewMarketingHandler(couponSvc *marketingService.CouponService, statsSvc *marketingService.StatsService) *MarketingHandler {
	return &MarketingHandler{
		couponService: couponSvc,
		statsService:  statsSvc,
	}
}

// CreateCoupon 创建优惠券
// @Summary 创建优惠券
// @Tags 管理端-优惠券
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body marketing.CreateCouponRequest true "优惠券信息"
// @Success 201 {object} response.Response{data=marketing.CouponDetail}
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/admin/coupons [post]
func (h *MarketingHandler) CreateCoupon(c *gin.Context) {
	var req marketingService.CreateCouponRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	coupon, err := h.couponService.CreateCoupon(c.Request.Context(), middleware.GetUserID(c), &req)
	if handler.HandleError(c, marketingHandler.ToAppError(err)) {
		return
	}
	response.Created(c, coupon)
}

// GetCouponList 获取优惠券列表，列表前先停用已过期和已用尽的优惠券
// @Summary 获取优惠券列表
// @Tags 管理端-优惠券
// @Produce json
// @Security Bearer
// @Param kind query string false "类型：specific / general"
// @Param is_active query bool false "是否启用"
// @Param keyword query string false "名称关键词"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=response.PageData{list=[]marketing.CouponDetail}}
// @Router /api/admin/coupons [get]
func (h *MarketingHandler) GetCouponList(c *gin.Context) {
	p := handler.BindPagination(c)
	isActive, ok := handler.ParseQueryBool(c, "is_active")
	if !ok {
		return
	}

	result, err := h.couponService.ListCoupons(c.Request.Context(), &marketingService.ListCouponsRequest{
		Page:     p.Page,
		PageSize: p.PageSize,
		Kind:     c.Query("kind"),
		IsActive: isActive,
		Keyword:  c.Query("keyword"),
	})
	if handler.HandleError(c, marketingHandler.ToAppError(err)) {
		return
	}
	response.SuccessPage(c, result.List, result.Total, p.Page, p.PageSize)
}

// GetCouponDetail 获取优惠券详情
// @Summary 获取优惠券详情
// @Tags 管理端-优惠券
// @Produce json
// @Security Bearer
// @Param id path int true "优惠券ID"
// @Success 200 {object} response.Response{data=marketing.CouponDetail}
// @Failure 404 {object} response.Response
// @Router /api/admin/coupons/{id} [get]
func (h *MarketingHandler) GetCouponDetail(c *gin.Context) {
	id, ok := handler.ParseID(c, "优惠券")
	if !ok {
		return
	}

	coupon, err := h.couponService.GetCouponDetail(c.Request.Context(), id)
	handler.MustSucceed(c, marketingHandler.ToAppError(err), coupon)
}

// ToggleCouponStatus 启用/停用优惠券
// @Summary 启用/停用优惠券
// @Tags 管理端-优惠券
// @Produce json
// @Security Bearer
// @Param id path int true "优惠券ID"
// @Success 200 {object} response.Response{data=marketing.CouponDetail}
// @Router /api/admin/coupons/{id}/status [put]
func (h *MarketingHandler) ToggleCouponStatus(c *gin.Context) {
	id, ok := handler.ParseID(c, "优惠券")
	if !ok {
		return
	}

	coupon, err := h.couponService.ToggleCouponStatus(c.Request.Context(), id)
	handler.MustSucceed(c, marketingHandler.ToAppError(err), coupon)
}

// GetCouponQRCode 获取优惠券名称的二维码
// @Summary 获取优惠券二维码
// @Tags 管理端-优惠券
// @Produce png
// @Security Bearer
// @Param id path int true "优惠券ID"
// @Param size query int false "尺寸（像素）" default(256)
// @Success 200 {file} binary
// @Router /api/admin/coupons/{id}/qrcode [get]
func (h *MarketingHandler) GetCouponQRCode(c *gin.Context) {
	id, ok := handler.ParseID(c, "优惠券")
	if !ok {
		return
	}

	coupon, err := h.couponService.GetCouponDetail(c.Request.Context(), id)
	if handler.HandleError(c, marketingHandler.ToAppError(err)) {
		return
	}

	size, _ := strconv.Atoi(c.Query("size"))
	png, err := qrcode.EncodePNG(coupon.Name, size)
	if handler.HandleError(c, err) {
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// GetCouponStats 获取优惠券统计
// @Summary 获取优惠券统计
// @Tags 管理端-优惠券
// @Produce json
// @Security Bearer
// @Param top query int false "使用排行数量" default(5)
// @Success 200 {object} response.Response{data=marketing.CouponStats}
// @Router /api/admin/coupons/stats [get]
func (h *MarketingHandler) GetCouponStats(c *gin.Context) {
	top, _ := strconv.Atoi(c.Query("top"))

	stats, err := h.statsService.GetCouponStats(c.Request.Context(), top)
	handler.MustSucceed(c, err, stats)
}

// GetUserStats 获取各用户的优惠券统计
// @Summary 获取各用户的优惠券统计
// @Tags 管理端-优惠券
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=[]marketing.UserCouponStats}
// @Router /api/admin/coupons/stats/users [get]
func (h *MarketingHandler) GetUserStats(c *gin.Context) {
	stats, err := h.statsService.GetAllUserCouponStats(c.Request.Context())
	handler.MustSucceed(c, err, stats)
}

// ExportCoupons 导出优惠券与兑换记录
// @Summary 导出优惠券与兑换记录（XLSX）
// @Tags 管理端-优惠券
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security Bearer
// @Success 200 {file} binary
// @Router /api/admin/coupons/export [get]
func (h *MarketingHandler) ExportCoupons(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.couponService.ExportReport(c.Request.Context(), &buf); handler.HandleError(c, err) {
		return
	}

	filename := fmt.Sprintf("coupons-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	response.Attachment(c, filename, xlsxContentType, buf.Bytes())
}

// RegisterRoutes 注册优惠券管理路由
func (h *MarketingHandler) RegisterRoutes(r *gin.RouterGroup) {
	coupons := r.Group("/coupons")
	{
		coupons.GET("", h.GetCouponList)
		coupons.POST("", h.CreateCoupon)
		coupons.GET("/stats", h.GetCouponStats)
		coupons.GET("/stats/users", h.GetUserStats)
		coupons.GET("/export", h.ExportCoupons)
		coupons.GET("/:id", h.GetCouponDetail)
		coupons.PUT("/:id/status", h.ToggleCouponStatus)
		coupons.GET("/:id/qrcode", h.GetCouponQRCode)
	}
}
