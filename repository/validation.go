package repository

import (
	"regexp"
	"strings"

	"github.com/aisgo/gorm-behaviors/errors"
)

/* ========================================================================
 * SQL 安全校验器
 * ========================================================================
 * 职责: 防止 OrderBy / Select 注入
 * 设计: 列名白名单 + 关键字黑名单
 * ======================================================================== */

var (
	// column / table.column / table.column AS alias
	columnPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)?(\s+(?i:AS)\s+[a-zA-Z_][a-zA-Z0-9_]*)?$`)

	dangerousKeywords = []string{
		"DROP", "DELETE", "UPDATE", "INSERT", "TRUNCATE", "ALTER", "CREATE",
		"GRANT", "REVOKE", "EXEC", "EXECUTE", "UNION", "INTO", "OUTFILE",
		"LOAD_FILE", "DUMPFILE", "SLEEP", "BENCHMARK",
	}

	dangerousTokens = []string{"--", "/*", "*/", ";"}

	aggregateFuncs = []string{"COUNT(", "SUM(", "AVG(", "MAX(", "MIN("}
)

// ValidateOrderBy 校验排序字符串，如 "status ASC, created_at DESC"
func ValidateOrderBy(orderBy string) error {
	if strings.TrimSpace(orderBy) == "" {
		return nil
	}
	if err := checkDangerous("order by", orderBy); err != nil {
		return err
	}

	for _, part := range strings.Split(orderBy, ",") {
		fields := strings.Fields(part)
		if len(fields) == 0 || len(fields) > 2 {
			return invalid("order by", part, "must be 'column' or 'column ASC/DESC'")
		}
		if !columnPattern.MatchString(fields[0]) {
			return invalid("order by", part, "invalid column name")
		}
		if len(fields) == 2 {
			switch strings.ToUpper(fields[1]) {
			case "ASC", "DESC":
			default:
				return invalid("order by", part, "direction must be ASC or DESC")
			}
		}
	}
	return nil
}

// ValidateSelect 校验选择字段，允许普通列与聚合函数
func ValidateSelect(selects []string) error {
	for _, sel := range selects {
		sel = strings.TrimSpace(sel)
		if sel == "" {
			continue
		}
		if err := checkDangerous("select", sel); err != nil {
			return err
		}
		if isAggregateFunction(sel) {
			continue
		}
		if !columnPattern.MatchString(sel) {
			return invalid("select", sel, "invalid column name")
		}
	}
	return nil
}

func invalid(field, value, reason string) error {
	return errors.Newf(errors.ErrCodeInvalidArgument, "invalid %s %q: %s", field, strings.TrimSpace(value), reason)
}

func checkDangerous(field, value string) error {
	upper := strings.ToUpper(value)
	for _, tok := range dangerousTokens {
		if strings.Contains(upper, tok) {
			return invalid(field, value, "contains "+tok)
		}
	}
	for _, kw := range dangerousKeywords {
		if containsWord(upper, kw) {
			return invalid(field, value, "contains keyword "+kw)
		}
	}
	return nil
}

// containsWord 按单词边界匹配，created_at 不会命中 CREATE
func containsWord(text, word string) bool {
	for start := 0; ; {
		idx := strings.Index(text[start:], word)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(word)
		if (idx == 0 || !isWordChar(text[idx-1])) && (end == len(text) || !isWordChar(text[end])) {
			return true
		}
		start = idx + 1
	}
}

func isWordChar(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_'
}

func isAggregateFunction(sel string) bool {
	upper := strings.ToUpper(sel)
	for _, fn := range aggregateFuncs {
		if strings.HasPrefix(upper, fn) {
			return true
		}
	}
	return false
}
