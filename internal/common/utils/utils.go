// Package utils 字符串规范化与分页计算
package utils

import (
	"cmp"
	"regexp"
	"strings"
	"unicode/utf8"
)

// E.164，允许省略 +
var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{6,14}$`)

// ValidatePhone 校验手机号格式
func ValidatePhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// NormalizeEmail 邮箱比较前统一小写并去掉首尾空白
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RuneLen 按字符计数，优惠券名称的长度限制以此为准
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// Clamp 将 v 限制在 [lo, hi]
func Clamp[T cmp.Ordered](v, lo, hi T) T {
	return min(max(v, lo), hi)
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Pagination 页码从 1 开始
type Pagination struct {
	Page     int `json:"page" form:"page"`
	PageSize int `json:"page_size" form:"page_size"`
}

// NewPagination 非法页码取 1，页大小缺省为 DefaultPageSize，上限 MaxPageSize
func NewPagination(page, pageSize int) Pagination {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return Pagination{
		Page:     max(page, 1),
		PageSize: min(pageSize, MaxPageSize),
	}
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func (p Pagination) Limit() int {
	return p.PageSize
}
