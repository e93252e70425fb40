package validator

import (
	"reflect"
	"strings"
	"sync"
)

/* ========================================================================
 * Message Cache - 自定义错误消息缓存
 * ========================================================================
 * 职责: 按 (类型, 字段路径) 缓存解析后的 error_msg 标签
 * ======================================================================== */

type messageKey struct {
	root reflect.Type
	path string
}

type messageCache struct {
	mu    sync.RWMutex
	cache map[messageKey]map[string]string // rule -> message
}

func newMessageCache() *messageCache {
	return &messageCache{cache: make(map[messageKey]map[string]string)}
}

// lookup 返回字段 rule 对应的自定义消息，未定义时返回空
func (c *messageCache) lookup(root reflect.Type, structNamespace, rule string) string {
	key := messageKey{root: root, path: structNamespace}

	c.mu.RLock()
	rules, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return rules[rule]
	}

	rules = parseErrorMessageTag(fieldTag(root, structNamespace))

	c.mu.Lock()
	c.cache[key] = rules
	c.mu.Unlock()
	return rules[rule]
}

// fieldTag 沿 StructNamespace（如 Config.Sluggable.Delimiter）找到字段的 error_msg 标签
func fieldTag(root reflect.Type, structNamespace string) string {
	parts := strings.Split(structNamespace, ".")
	if len(parts) < 2 {
		return ""
	}

	t := root
	var field reflect.StructField
	for _, name := range parts[1:] {
		if i := strings.IndexByte(name, '['); i >= 0 {
			name = name[:i]
		}
		for t.Kind() == reflect.Ptr || t.Kind() == reflect.Slice || t.Kind() == reflect.Array || t.Kind() == reflect.Map {
			t = t.Elem()
		}
		if t.Kind() != reflect.Struct {
			return ""
		}
		f, ok := t.FieldByName(name)
		if !ok {
			return ""
		}
		field = f
		t = f.Type
	}
	return field.Tag.Get(tagCustom)
}

// parseErrorMessageTag 解析错误消息标签
// 格式: "required:邮箱必填|email:邮箱格式错误"
func parseErrorMessageTag(tag string) map[string]string {
	rules := make(map[string]string)
	if tag == "" {
		return rules
	}
	for _, ruleMessage := range strings.Split(tag, ruleSeparator) {
		parts := strings.SplitN(ruleMessage, keyValueSep, 2)
		if len(parts) == 2 {
			rules[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return rules
}
