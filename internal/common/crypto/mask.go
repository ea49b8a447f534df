package crypto

import "strings"

// MaskPhone 保留前 3 位与后 4 位，过短时原样返回
func MaskPhone(phone string) string {
	n := len(phone)
	if n < 8 {
		return phone
	}
	return phone[:3] + strings.Repeat("*", n-7) + phone[n-4:]
}

// MaskEmail 本地部分只保留首字符
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return email
	}
	head := []rune(local)[0]
	return string(head) + "***@" + domain
}
