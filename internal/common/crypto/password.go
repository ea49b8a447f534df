// Package crypto 密码哈希与敏感信息脱敏
package crypto

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes bcrypt 能处理的最大输入
const MaxPasswordBytes = 72

// ErrPasswordTooLong 密码超过 MaxPasswordBytes
var ErrPasswordTooLong = errors.New("crypto: password exceeds 72 bytes")

// PasswordHasher bcrypt 哈希，cost 在构造时固定
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher cost 不在 bcrypt 允许范围内时退回 DefaultCost
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	sum, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	return string(sum), err
}

// Verify hash 格式非法时同样返回 false
func (h *PasswordHasher) Verify(password, hash string) bool {
	return VerifyPassword(password, hash)
}

// NeedsRehash hash 的 cost 与当前配置不同时返回 true
func (h *PasswordHasher) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	return err != nil || cost != h.cost
}

// VerifyPassword 与 cost 无关，供测试与一次性脚本使用
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
