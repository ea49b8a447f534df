package marketing

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"

	"github.com/dumeirei/coupon-platform-backend/internal/models"
	"github.com/dumeirei/coupon-platform-backend/internal/repository"
)

// 导出工作表
const (
	SheetCoupons = "优惠券"
	SheetUsages  = "兑换记录"
)

const exportTimeLayout = "2006-01-02 15:04:05"

var (
	couponHeader = []interface{}{"ID", "名称", "类型", "已使用", "最大次数", "剩余", "过期时间", "启用", "已过期", "创建时间"}
	usageHeader  = []interface{}{"优惠券ID", "优惠券名称", "用户ID", "用户名", "邮箱", "兑换时间"}
)

// ExportReport 导出优惠券与兑换记录（XLSX）
func (s *CouponService) ExportReport(ctx context.Context, w io.Writer) error {
	if _, err := s.Sweep(ctx); err != nil {
		return err
	}

	coupons, _, err := s.couponRepo.List(ctx, repository.CouponListParams{})
	if err != nil {
		return fmt.Errorf("查询优惠券失败: %w", err)
	}
	usages, err := s.usageRepo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("查询兑换记录失败: %w", err)
	}

	userIDs := lo.Uniq(lo.Map(usages, func(u *models.CouponUsage, _ int) int64 { return u.UserID }))
	refs, err := s.resolveUsers(ctx, userIDs)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetCoupons); err != nil {
		return fmt.Errorf("创建工作表失败: %w", err)
	}
	if _, err := f.NewSheet(SheetUsages); err != nil {
		return fmt.Errorf("创建工作表失败: %w", err)
	}

	now := s.now()
	if err := writeRows(f, SheetCoupons, couponHeader, len(coupons), func(i int) []interface{} {
		return couponRow(coupons[i], now)
	}); err != nil {
		return err
	}
	if err := writeRows(f, SheetUsages, usageHeader, len(usages), func(i int) []interface{} {
		return usageRow(usages[i], refs[usages[i].UserID])
	}); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("写入导出文件失败: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, header []interface{}, n int, row func(i int) []interface{}) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("写入表头失败: %w", err)
	}
	for i := 0; i < n; i++ {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := row(i)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("写入第%d行失败: %w", i+2, err)
		}
	}
	return nil
}

func couponRow(c *models.Coupon, now time.Time) []interface{} {
	return []interface{}{
		c.ID,
		c.Name,
		c.Kind,
		c.UsageCount,
		c.MaxUses,
		c.RemainingUses(),
		c.ExpiryDate.Format(exportTimeLayout),
		yesNo(c.IsActive),
		yesNo(c.IsExpired(now)),
		c.CreatedAt.Format(exportTimeLayout),
	}
}

func usageRow(u *models.CouponUsage, ref *UserRef) []interface{} {
	couponName := ""
	if u.Coupon != nil {
		couponName = u.Coupon.Name
	}
	userName, email := "(已删除)", ""
	if ref != nil && !ref.Missing {
		userName, email = ref.Name, ref.Email
	}
	return []interface{}{u.CouponID, couponName, u.UserID, userName, email, u.UsedAt.Format(exportTimeLayout)}
}

func yesNo(b bool) string {
	if b {
		return "是"
	}
	return "否"
}
