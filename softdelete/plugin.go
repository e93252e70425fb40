package softdelete

import (
	"reflect"
	"sort"
	"time"

	"github.com/aisgo/gorm-behaviors/lifecycle"
	"github.com/aisgo/gorm-behaviors/metrics"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// enabledKey 与 GORM 内置软删除使用同一个标记，
// checkMissingWhereConditions 据此忽略作用域条件
const enabledKey = "soft_delete_enabled"

// Requirement deleted_at 列映射检查
var Requirement = lifecycle.NewRequirement(Name, lifecycle.ModelImplements[SoftDeletable], Column)

// Option 插件选项
type Option func(*Plugin)

// WithClock 指定时间来源，默认使用 gorm.Config.NowFunc
func WithClock(now func() time.Time) Option {
	return func(p *Plugin) { p.now = now }
}

// Plugin GORM 插件
type Plugin struct {
	now func() time.Time
}

// New 创建插件
func New(opts ...Option) *Plugin {
	p := &Plugin{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name 实现 gorm.Plugin
func (p *Plugin) Name() string { return Name }

// Initialize 实现 gorm.Plugin
func (p *Plugin) Initialize(db *gorm.DB) error {
	match := lifecycle.ModelImplements[SoftDeletable]
	return lifecycle.Register(db, Name,
		lifecycle.Hook{Event: lifecycle.OnFlush, Match: match, Fn: p.onFlush},
		lifecycle.Hook{Event: lifecycle.PreQuery, Match: match, Fn: scope},
		lifecycle.Hook{Event: lifecycle.PreUpdate, Match: match, Fn: scope},
	)
}

func (p *Plugin) clock(db *gorm.DB) time.Time {
	if p.now != nil {
		return p.now()
	}
	return db.NowFunc()
}

// onFlush 把待执行的删除改写为更新
// 其他行为在 PreRemove 中记录的列（如 deleted_by）一并写入
func (p *Plugin) onFlush(db *gorm.DB) {
	stmt := db.Statement
	if stmt.Unscoped || stmt.SQL.Len() > 0 {
		return
	}
	if err := Requirement.Check(stmt.Schema); err != nil {
		_ = db.AddError(err)
		return
	}

	now := p.clock(db)
	for _, e := range lifecycle.Collect[SoftDeletable](db) {
		lifecycle.Track(db, e, Column, func() {
			t := now
			e.SetDeletedAt(&t)
		})
	}

	stmt.AddClause(setClause(db, now))

	// 按主键限定，与 gorm:delete 对实体删除的处理一致
	addPrimaryKeyCondition(stmt, stmt.ReflectValue)
	if stmt.ReflectValue.CanAddr() && stmt.Dest != stmt.Model && stmt.Model != nil {
		addPrimaryKeyCondition(stmt, reflect.ValueOf(stmt.Model))
	}

	scope(db)
	stmt.AddClauseIfNotExists(clause.Update{})
	stmt.Build(db.Callback().Update().Clauses...)

	metrics.SoftDeleteTotal.WithLabelValues(stmt.Schema.Table).Inc()
}

func setClause(db *gorm.DB, now time.Time) clause.Set {
	pending := lifecycle.PendingColumns(db)
	delete(pending, Column)

	cols := make([]string, 0, len(pending))
	for col := range pending {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	set := clause.Set{{Column: clause.Column{Name: Column}, Value: now}}
	for _, col := range cols {
		set = append(set, clause.Assignment{Column: clause.Column{Name: col}, Value: pending[col]})
	}
	return set
}

func addPrimaryKeyCondition(stmt *gorm.Statement, rv reflect.Value) {
	_, queryValues := schema.GetIdentityFieldValuesMap(stmt.Context, rv, stmt.Schema.PrimaryFields)
	column, values := schema.ToQueryValues(stmt.Table, stmt.Schema.PrimaryFieldDBNames, queryValues)
	if len(values) > 0 {
		stmt.AddClause(clause.Where{Exprs: []clause.Expression{clause.IN{Column: column, Values: values}}})
	}
}

// scope 追加 deleted_at IS NULL 条件，Unscoped 或已追加时跳过
// 单个 OR 条件会先与已有条件合并，避免 "a OR b AND deleted_at IS NULL"
func scope(db *gorm.DB) {
	stmt := db.Statement
	if stmt.Unscoped {
		return
	}
	if _, ok := stmt.Clauses[enabledKey]; ok {
		return
	}
	if stmt.Schema.LookUpField(Column) == nil {
		return
	}

	if c, ok := stmt.Clauses["WHERE"]; ok {
		if where, ok := c.Expression.(clause.Where); ok && len(where.Exprs) >= 1 {
			for _, expr := range where.Exprs {
				if orCond, ok := expr.(clause.OrConditions); ok && len(orCond.Exprs) == 1 {
					where.Exprs = []clause.Expression{clause.And(where.Exprs...)}
					c.Expression = where
					stmt.Clauses["WHERE"] = c
					break
				}
			}
		}
	}

	stmt.AddClause(clause.Where{Exprs: []clause.Expression{
		clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: Column}, Value: nil},
	}})
	stmt.Clauses[enabledKey] = clause.Clause{}
}
