package logger

import "go.uber.org/zap"

// 请求相关字段

func RequestID(id string) zap.Field  { return zap.String("request_id", id) }
func Method(method string) zap.Field { return zap.String("method", method) }
func Path(path string) zap.Field     { return zap.String("path", path) }
func IP(ip string) zap.Field         { return zap.String("ip", ip) }
func StatusCode(code int) zap.Field  { return zap.Int("status_code", code) }

// 业务字段

func UserID(id int64) zap.Field          { return zap.Int64("user_id", id) }
func CouponID(id int64) zap.Field        { return zap.Int64("coupon_id", id) }
func CouponName(name string) zap.Field   { return zap.String("coupon_name", name) }
func NotificationID(id string) zap.Field { return zap.String("notification_id", id) }
func Channel(name string) zap.Field      { return zap.String("channel", name) }

// Module 所属模块，如 scheduler、notify
func Module(name string) zap.Field { return zap.String("module", name) }

// Action 模块内的具体操作
func Action(name string) zap.Field { return zap.String("action", name) }
