package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePhone(t *testing.T) {
	tests := []struct {
		phone string
		want  bool
	}{
		{"13812345678", true},
		{"+8613812345678", true},
		{"+14155550123", true},
		{"12345", false},
		{"+1234567890123456", false},
		{"0123456789", false},
		{"1381234567a", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.phone, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidatePhone(tt.phone))
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ops@example.com", NormalizeEmail("  Ops@Example.COM \n"))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestRuneLen(t *testing.T) {
	assert.Equal(t, 6, RuneLen("SPRING"))
	assert.Equal(t, 4, RuneLen("新春满减"))
	assert.Equal(t, 0, RuneLen(""))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1, Clamp(0, 1, 50))
	assert.Equal(t, 50, Clamp(80, 1, 50))
	assert.Equal(t, 7, Clamp(7, 1, 50))
	assert.Equal(t, int64(-3), Clamp(int64(-9), -3, 3))
}

func TestNewPagination(t *testing.T) {
	tests := []struct {
		name       string
		page, size int
		wantPage   int
		wantSize   int
		wantOffset int
	}{
		{"正常", 3, 20, 3, 20, 40},
		{"页码为 0", 0, 20, 1, 20, 0},
		{"负页码", -2, 5, 1, 5, 0},
		{"缺省页大小", 2, 0, 2, DefaultPageSize, DefaultPageSize},
		{"超过上限", 1, 500, 1, MaxPageSize, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPagination(tt.page, tt.size)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantSize, p.PageSize)
			assert.Equal(t, tt.wantOffset, p.Offset())
			assert.Equal(t, tt.wantSize, p.Limit())
		})
	}
}
