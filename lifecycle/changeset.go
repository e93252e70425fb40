package lifecycle

import (
	"reflect"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"
)

/* ========================================================================
 * Change Set - 语句级变更记录
 * ========================================================================
 * 职责: 记录行为插件对实体属性的修改，供软删除 / 变更日志使用
 * 存储: db.InstanceSet，生命周期与单条语句一致
 * ======================================================================== */

const trackerKey = "behaviors:tracker"

// Change 单列变更
type Change struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// ChangeSet 列名 -> 变更
type ChangeSet map[string]Change

// Columns 返回排序后的列名
func (c ChangeSet) Columns() []string {
	cols := make([]string, 0, len(c))
	for col := range c {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

// Merge 合并另一个变更集，同名列以 other 为准但保留最早的旧值
func (c ChangeSet) Merge(other ChangeSet) ChangeSet {
	if c == nil {
		c = make(ChangeSet, len(other))
	}
	for col, ch := range other {
		if prev, ok := c[col]; ok {
			ch.Old = prev.Old
		}
		c[col] = ch
	}
	return c
}

// Diff 比较两组列值，返回发生变化的列
func Diff(before, after map[string]any) ChangeSet {
	out := make(ChangeSet)
	for col, newValue := range after {
		oldValue := before[col]
		if !EqualValues(oldValue, newValue) {
			out[col] = Change{Old: oldValue, New: newValue}
		}
	}
	return out
}

// EqualValues 比较两个列值，时间按时刻比较，指针按指向的值比较
func EqualValues(a, b any) bool {
	a, b = deref(a), deref(b)
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}

func deref(v any) any {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}

type tracker struct {
	mu        sync.Mutex
	changes   map[any]ChangeSet
	snapshots map[any]map[string]any
	stored    map[any]any
}

func trackerOf(db *gorm.DB) *tracker {
	if v, ok := db.InstanceGet(trackerKey); ok {
		if t, ok := v.(*tracker); ok {
			return t
		}
	}
	t := &tracker{
		changes:   make(map[any]ChangeSet),
		snapshots: make(map[any]map[string]any),
		stored:    make(map[any]any),
	}
	db.InstanceSet(trackerKey, t)
	return t
}

// PropertyChanged 记录实体某列的变更，并把新值写入当前语句
// map 更新与部分字段更新也会带上该列
func PropertyChanged(db *gorm.DB, entity any, column string, oldValue, newValue any) {
	t := trackerOf(db)
	t.mu.Lock()
	cs := t.changes[entity]
	t.changes[entity] = cs.Merge(ChangeSet{column: {Old: oldValue, New: newValue}})
	t.mu.Unlock()

	writeThrough(db, column, newValue)
}

// Track 执行 mutate，并按映射列记录实体在 mutate 前后的值
// 列未映射时只执行 mutate；值未变化时不记录
func Track(db *gorm.DB, entity any, column string, mutate func()) {
	field := db.Statement.Schema.LookUpField(column)
	if field == nil {
		mutate()
		return
	}

	rv := reflect.ValueOf(entity)
	before, _ := field.ValueOf(db.Statement.Context, rv)
	before = deref(before)
	mutate()
	after, _ := field.ValueOf(db.Statement.Context, rv)
	after = deref(after)

	if !EqualValues(before, after) {
		PropertyChanged(db, entity, field.DBName, before, after)
	}
}

func writeThrough(db *gorm.DB, column string, value any) {
	stmt := db.Statement
	if dest, ok := stmt.Dest.(map[string]any); ok {
		if stmt.Schema != nil {
			for k := range dest {
				if f := stmt.Schema.LookUpField(k); f != nil && f.DBName == column {
					dest[k] = value
					return
				}
			}
		}
		dest[column] = value
		return
	}
	if stmt.Dest != stmt.Model && stmt.ReflectValue.Kind() == reflect.Struct {
		stmt.SetColumn(column, value, true)
	}
}

// Changes 返回实体在当前语句中被记录的变更
func Changes(db *gorm.DB, entity any) ChangeSet {
	t := trackerOf(db)
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(ChangeSet, len(t.changes[entity]))
	for col, ch := range t.changes[entity] {
		out[col] = ch
	}
	return out
}

// PendingColumns 返回当前语句所有实体记录的列新值（同列取最后一次）
func PendingColumns(db *gorm.DB) map[string]any {
	t := trackerOf(db)
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]any)
	for _, e := range Entities(db) {
		for col, ch := range t.changes[e] {
			out[col] = ch.New
		}
	}
	return out
}

// SetSnapshot 保存实体在修改前的列值
func SetSnapshot(db *gorm.DB, entity any, values map[string]any) {
	t := trackerOf(db)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshots[entity] = values
}

// Snapshot 读取实体在修改前的列值
func Snapshot(db *gorm.DB, entity any) (map[string]any, bool) {
	t := trackerOf(db)
	t.mu.Lock()
	defer t.mu.Unlock()
	values, ok := t.snapshots[entity]
	return values, ok
}
