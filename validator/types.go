package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aisgo/gorm-behaviors/errors"
)

const (
	// tagCustom 自定义错误消息标签名
	tagCustom = "error_msg"
	// ruleSeparator 规则分隔符，用于分隔多个规则
	ruleSeparator = "|"
	// keyValueSep 键值分隔符，用于分隔规则名和错误消息
	keyValueSep = ":"
)

// ValidationError 按字段分组的验证错误
type ValidationError struct {
	Errors map[string][]string // 字段路径 -> 错误消息列表
}

// Error 实现 error 接口，字段按名称排序
func (v *ValidationError) Error() string {
	fields := make([]string, 0, len(v.Errors))
	for field := range v.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var sb strings.Builder
	for _, field := range fields {
		sb.WriteString(fmt.Sprintf("%s: %s; ", field, strings.Join(v.Errors[field], ", ")))
	}
	return sb.String()
}

// Is 使 errors.Is(err, errors.ErrInvalidArgument) 成立
func (v *ValidationError) Is(target error) bool {
	return errors.Code(target) == errors.ErrCodeInvalidArgument
}

// HasErrors 检查是否有验证错误
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add 添加字段错误
func (v *ValidationError) Add(field, message string) {
	if v.Errors == nil {
		v.Errors = make(map[string][]string)
	}
	v.Errors[field] = append(v.Errors[field], message)
}

// Get 获取字段错误消息
func (v *ValidationError) Get(field string) []string {
	return v.Errors[field]
}
