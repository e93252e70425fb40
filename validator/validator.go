package validator

import (
	stderrors "errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

/* ========================================================================
 * Validator - 配置校验
 * ========================================================================
 * 职责: 基于 validate 标签校验配置结构体，支持 error_msg 自定义消息
 * 特性:
 *   - 字段名使用 mapstructure 标签，与配置文件中的键一致
 *   - 嵌套结构体由 go-playground/validator 递归校验
 * 使用示例:
 *     type SlugConfig struct {
 *         Delimiter string `mapstructure:"delimiter" validate:"required,oneof=- _ ." error_msg:"oneof:分隔符只能是 - _ ."`
 *     }
 *     if err := validator.New().Validate(&cfg); err != nil {
 *         // 处理验证错误
 *     }
 * ======================================================================== */

// Validator 自定义验证器
type Validator struct {
	validate *validator.Validate
	messages *messageCache
}

// New 创建新的验证器
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &Validator{
		validate: v,
		messages: newMessageCache(),
	}
}

// Validate 验证结构体
// 返回 *ValidationError，键为配置路径（如 sluggable.delimiter）
func (v *Validator) Validate(s any) error {
	if s == nil {
		return nil
	}

	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return err
	}

	root := reflect.TypeOf(s)
	out := &ValidationError{Errors: make(map[string][]string)}
	for _, fe := range fieldErrs {
		msg := v.messages.lookup(root, fe.StructNamespace(), fe.Tag())
		if msg == "" {
			msg = fe.Error()
		}
		out.Add(trimRoot(fe.Namespace()), msg)
	}
	return out
}

// trimRoot 去掉命名空间开头的类型名
func trimRoot(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}
