package lifecycle

import (
	"strings"
	"sync"

	"github.com/aisgo/gorm-behaviors/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

/* ========================================================================
 * Mapping Requirement - 映射检查
 * ========================================================================
 * 职责: 加载元数据阶段，检查启用行为的模型是否映射了行为需要的列
 * 说明: 结构体无法在运行时增加列，由嵌入的字段结构体提供，这里只做校验
 * ======================================================================== */

// Requirement 行为对模型的列要求
type Requirement struct {
	Behavior string
	Columns  []string
	Match    func(s *schema.Schema) bool

	checked sync.Map // *schema.Schema -> error
}

// NewRequirement 创建行为的列要求
func NewRequirement(behavior string, match func(s *schema.Schema) bool, columns ...string) *Requirement {
	return &Requirement{Behavior: behavior, Columns: columns, Match: match}
}

// Check 缺少任一列时返回 ErrMapping，结果按 Schema 缓存
func (r *Requirement) Check(s *schema.Schema) error {
	if v, ok := r.checked.Load(s); ok {
		err, _ := v.(error)
		return err
	}

	var missing []string
	for _, col := range r.Columns {
		if s.LookUpField(col) == nil {
			missing = append(missing, col)
		}
	}

	var err error
	if len(missing) > 0 {
		err = errors.Newf(errors.ErrCodeMapping, "%s: model %s is missing mapped column(s) %s",
			r.Behavior, s.Name, strings.Join(missing, ", "))
	}
	r.checked.Store(s, err)
	return err
}

// Field 返回列对应的字段，未映射时为 nil
func (r *Requirement) Field(s *schema.Schema, column string) *schema.Field {
	return s.LookUpField(column)
}

// Validate 解析模型，并检查启用了该行为的模型
func (r *Requirement) Validate(db *gorm.DB, models ...any) error {
	for _, model := range models {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return errors.Wrapf(errors.ErrCodeMapping, err, "%s: parse model %T", r.Behavior, model)
		}
		if r.Match != nil && !r.Match(stmt.Schema) {
			continue
		}
		if err := r.Check(stmt.Schema); err != nil {
			return err
		}
	}
	return nil
}
