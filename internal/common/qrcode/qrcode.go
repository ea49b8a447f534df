// Package qrcode 优惠券名称二维码，用于线下张贴后扫码核销
package qrcode

import (
	"errors"
	"strings"

	goqrcode "github.com/skip2/go-qrcode"
)

// ErrEmptyContent 内容为空
var ErrEmptyContent = errors.New("qrcode: empty content")

// 边长范围与默认值（像素）
const (
	MinSize     = 64
	MaxSize     = 1024
	DefaultSize = 256
)

// ClampSize 非正数取默认值，其余截断到 [MinSize, MaxSize]
func ClampSize(size int) int {
	switch {
	case size <= 0:
		return DefaultSize
	case size < MinSize:
		return MinSize
	case size > MaxSize:
		return MaxSize
	}
	return size
}

// EncodePNG 生成 PNG。张贴物料容易污损，使用最高纠错级别
func EncodePNG(content string, size int) ([]byte, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	code, err := goqrcode.New(content, goqrcode.Highest)
	if err != nil {
		return nil, err
	}
	return code.PNG(ClampSize(size))
}
