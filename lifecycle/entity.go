package lifecycle

import (
	"reflect"
	"sync"

	"github.com/aisgo/gorm-behaviors/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

/* ========================================================================
 * Entity Helpers - 语句中的实体访问
 * ======================================================================== */

type implKey struct {
	model reflect.Type
	iface reflect.Type
}

var implCache sync.Map // implKey -> bool

// ModelImplements 判断 Schema 对应的模型（或其指针）是否实现了接口 T
func ModelImplements[T any](s *schema.Schema) bool {
	if s == nil || s.ModelType == nil {
		return false
	}
	iface := reflect.TypeOf((*T)(nil)).Elem()
	key := implKey{model: s.ModelType, iface: iface}
	if v, ok := implCache.Load(key); ok {
		return v.(bool)
	}
	ok := s.ModelType.Implements(iface) || reflect.PointerTo(s.ModelType).Implements(iface)
	implCache.Store(key, ok)
	return ok
}

// Entities 返回当前语句涉及的所有实体
// 单个结构体返回其指针；切片 / 数组返回每个元素的指针；map 目标不包含实体
func Entities(db *gorm.DB) []any {
	rv := db.Statement.ReflectValue
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem := reflect.Indirect(rv.Index(i))
			if elem.Kind() != reflect.Struct || !elem.CanAddr() {
				continue
			}
			out = append(out, elem.Addr().Interface())
		}
		return out
	case reflect.Struct:
		if rv.CanAddr() {
			return []any{rv.Addr().Interface()}
		}
		return []any{rv.Interface()}
	default:
		return nil
	}
}

// Collect 返回当前语句中实现了 T 的实体
func Collect[T any](db *gorm.DB) []T {
	entities := Entities(db)
	out := make([]T, 0, len(entities))
	for _, e := range entities {
		if t, ok := e.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

// PrimaryKey 返回实体的主键值，任一主键为零值时 ok=false
func PrimaryKey(db *gorm.DB, entity any) (values []any, ok bool) {
	s := db.Statement.Schema
	if s == nil || len(s.PrimaryFields) == 0 {
		return nil, false
	}
	rv := reflect.ValueOf(entity)
	if reflect.Indirect(rv).Type() != s.ModelType {
		return nil, false
	}
	for _, f := range s.PrimaryFields {
		v, zero := f.ValueOf(db.Statement.Context, rv)
		if zero {
			return nil, false
		}
		values = append(values, v)
	}
	return values, true
}

// ApplyPendingAssignments 在 gorm:update 之前把待更新的值写回模型
// 使 PreUpdate 回调看到的是已修改的实体状态。只写回 AssignedColumns 中的列
func ApplyPendingAssignments(db *gorm.DB) {
	stmt := db.Statement
	if stmt.Schema == nil || stmt.ReflectValue.Kind() != reflect.Struct || !stmt.ReflectValue.CanAddr() {
		return
	}
	if stmt.Dest == stmt.Model {
		return
	}
	assigned := AssignedColumns(db)

	assign := func(f *schema.Field, v any) bool {
		if err := f.Set(stmt.Context, stmt.ReflectValue, v); err != nil {
			_ = db.AddError(errors.Wrapf(errors.ErrCodeInvalidArgument, err, "assign column %s", f.DBName))
			return false
		}
		return true
	}

	switch dest := stmt.Dest.(type) {
	case map[string]any:
		for k, v := range dest {
			f := stmt.Schema.LookUpField(k)
			if f == nil {
				continue
			}
			if _, ok := assigned[f.DBName]; !ok {
				continue
			}
			if !assign(f, v) {
				return
			}
		}
	default:
		destValue := reflect.Indirect(reflect.ValueOf(stmt.Dest))
		if destValue.Kind() != reflect.Struct || destValue.Type() != stmt.Schema.ModelType {
			return
		}
		for _, f := range stmt.Schema.Fields {
			if _, ok := assigned[f.DBName]; !ok || f.PrimaryKey {
				continue
			}
			v, zero := f.ValueOf(stmt.Context, destValue)
			if zero && f.AutoUpdateTime > 0 {
				continue
			}
			if !assign(f, v) {
				return
			}
		}
	}
}

func isExpression(v any) bool {
	_, ok := v.(clause.Expression)
	return ok
}

// AssignedColumns 返回更新语句会写入的列
//
//	Update("title", v) / Updates(map)   -> map 的键
//	Updates(struct)                     -> 非零字段
//	Select("a", "b") / Select("*")      -> 选中的列，零值同样写入；Omit 的列排除
//
// autoUpdateTime 列按 GORM 的规则计入。值为 SQL 表达式的列不计入
func AssignedColumns(db *gorm.DB) map[string]struct{} {
	stmt := db.Statement
	out := make(map[string]struct{})
	if stmt.Schema == nil {
		return out
	}

	selected, restricted := stmt.SelectAndOmitColumns(false, true)
	autoUpdate := func(f *schema.Field) bool {
		return f.AutoUpdateTime > 0 && !stmt.SkipHooks
	}

	switch dest := stmt.Dest.(type) {
	case map[string]any:
		for k, v := range dest {
			f := stmt.Schema.LookUpField(k)
			if f == nil || f.DBName == "" || !f.Updatable || isExpression(v) {
				continue
			}
			if use, ok := selected[f.DBName]; (ok && use) || (!ok && !restricted) {
				out[f.DBName] = struct{}{}
			}
		}
		for _, f := range stmt.Schema.Fields {
			if f.DBName == "" || !f.Updatable || !autoUpdate(f) {
				continue
			}
			if use, ok := selected[f.DBName]; !ok || use {
				out[f.DBName] = struct{}{}
			}
		}
	default:
		src := reflect.Indirect(reflect.ValueOf(stmt.Dest))
		if src.Kind() != reflect.Struct || src.Type() != stmt.Schema.ModelType {
			return out
		}
		for _, f := range stmt.Schema.Fields {
			if f.DBName == "" || f.PrimaryKey || !f.Updatable {
				continue
			}
			use, ok := selected[f.DBName]
			if ok && !use {
				continue
			}
			if !ok && restricted && !autoUpdate(f) {
				continue
			}
			if _, zero := f.ValueOf(stmt.Context, src); ok || !zero || autoUpdate(f) {
				out[f.DBName] = struct{}{}
			}
		}
	}
	return out
}

// Stored 在当前事务内按主键读取实体对应的行，包含已软删除的行
// 没有主键或行不存在时返回 nil。同一语句内每个实体只读取一次，返回值不可修改
func Stored(db *gorm.DB, entity any) (any, error) {
	pk, ok := PrimaryKey(db, entity)
	if !ok {
		return nil, nil
	}

	t := trackerOf(db)
	t.mu.Lock()
	row, cached := t.stored[entity]
	t.mu.Unlock()
	if cached {
		return row, nil
	}

	s := db.Statement.Schema
	prev := reflect.New(s.ModelType).Interface()
	tx := db.Session(&gorm.Session{NewDB: true, SkipHooks: true}).Unscoped().Table(db.Statement.Table)
	for i, f := range s.PrimaryFields {
		tx = tx.Where(clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: f.DBName}, Value: pk[i]})
	}
	switch err := tx.Take(prev).Error; {
	case err == nil:
		row = prev
	case errors.Is(err, gorm.ErrRecordNotFound):
		row = nil
	default:
		return nil, err
	}

	t.mu.Lock()
	t.stored[entity] = row
	t.mu.Unlock()
	return row, nil
}

// CurrentRow 返回更新完成后的行: 已存储的行叠加本次语句写入的列
// 实体只加载了部分字段时，未写入的列取库中的值。行不存在时返回 nil
func CurrentRow(db *gorm.DB, entity any) (any, error) {
	stored, err := Stored(db, entity)
	if err != nil || stored == nil {
		return nil, err
	}

	stmt := db.Statement
	row := reflect.New(stmt.Schema.ModelType)
	row.Elem().Set(reflect.ValueOf(stored).Elem())
	src := reflect.ValueOf(entity)
	for col := range AssignedColumns(db) {
		f := stmt.Schema.FieldsByDBName[col]
		if f == nil || !f.Readable {
			continue
		}
		v, _ := f.ValueOf(stmt.Context, src)
		if err := f.Set(stmt.Context, row, v); err != nil {
			return nil, err
		}
	}
	return row.Interface(), nil
}

// Values 返回实体所有已映射列的当前值（列名 -> 值）
func Values(db *gorm.DB, entity any) map[string]any {
	s := db.Statement.Schema
	rv := reflect.ValueOf(entity)
	out := make(map[string]any, len(s.DBNames))
	for _, name := range s.DBNames {
		f := s.FieldsByDBName[name]
		if f == nil || !f.Readable {
			continue
		}
		v, _ := f.ValueOf(db.Statement.Context, rv)
		out[name] = v
	}
	return out
}
