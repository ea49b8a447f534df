// Package handler HTTP 处理器，按业务拆分在子包中：
// auth 登录注册，marketing 用户侧优惠券，admin 管理端。
//
// 生成接口文档：swag init -g cmd/api-gateway/main.go --dir ./,./internal/handler
package handler
