// Package validation gin 绑定用的自定义规则与错误提示
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var once sync.Once

// Register 作用于 gin 默认校验器，可重复调用
func Register() {
	once.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			RegisterOn(v)
		}
	})
}

// RegisterOn 注册 notblank 规则，错误中的字段名改用 json 标签
func RegisterOn(v *validator.Validate) {
	_ = v.RegisterValidation("notblank", notBlank)
	v.RegisterTagNameFunc(jsonName)
}

func notBlank(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.String {
		return true
	}
	return strings.TrimSpace(field.String()) != ""
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	default:
		return name
	}
}

// Describe 把绑定错误转成给前端看的提示，只描述第一个失败字段
func Describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "请求体格式错误"
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s 不能为空", fe.Field())
	case "email":
		return fmt.Sprintf("%s 不是有效的邮箱", fe.Field())
	case "min", "gte":
		return fmt.Sprintf("%s 不能小于 %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s 不能超过 %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s 只能是 %s 之一", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s 校验失败 (%s)", fe.Field(), fe.Tag())
	}
}
