package loggable

import (
	"reflect"
	"time"

	"github.com/aisgo/gorm-behaviors/errors"
	"github.com/aisgo/gorm-behaviors/lifecycle"
	"github.com/aisgo/gorm-behaviors/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Option 插件选项
type Option func(*Plugin)

// WithSink 指定输出端，多个时依次写入
func WithSink(sinks ...Sink) Option {
	return func(p *Plugin) {
		switch len(sinks) {
		case 0:
		case 1:
			p.sink = sinks[0]
		default:
			p.sink = MultiSink(sinks)
		}
	}
}

// WithStrict 输出失败时让语句返回错误，默认只记录日志
func WithStrict() Option {
	return func(p *Plugin) { p.strict = true }
}

// WithLogger 指定日志
func WithLogger(log *logger.Logger) Option {
	return func(p *Plugin) {
		if log != nil {
			p.log = log
		}
	}
}

// WithClock 指定记录时间来源
func WithClock(now func() time.Time) Option {
	return func(p *Plugin) { p.now = now }
}

// Plugin GORM 插件
type Plugin struct {
	sink   Sink
	strict bool
	log    *logger.Logger
	now    func() time.Time
}

// New 创建插件，未指定输出端时写入日志
func New(opts ...Option) *Plugin {
	p := &Plugin{log: logger.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	if p.sink == nil {
		p.sink = NewZapSink(p.log)
	}
	return p
}

// Name 实现 gorm.Plugin
func (p *Plugin) Name() string { return Name }

// Initialize 实现 gorm.Plugin
func (p *Plugin) Initialize(db *gorm.DB) error {
	match := lifecycle.ModelImplements[Loggable]
	return lifecycle.Register(db, Name,
		lifecycle.Hook{Event: lifecycle.PostPersist, Match: match, Fn: p.postPersist},
		lifecycle.Hook{Event: lifecycle.PreUpdate, Match: match, Fn: p.preUpdate},
		lifecycle.Hook{Event: lifecycle.PostUpdate, Match: match, Fn: p.postUpdate},
		lifecycle.Hook{Event: lifecycle.PreRemove, Match: match, Fn: p.preRemove},
	)
}

// postPersist 先输出创建消息，再输出插入的变更集（零值列不计入）
func (p *Plugin) postPersist(db *gorm.DB) {
	for _, e := range lifecycle.Collect[Loggable](db) {
		p.emit(db, e, ActionCreate, e.CreateLogMessage(), nil)

		changes := insertChanges(db, e).Merge(lifecycle.Changes(db, e))
		if msg := e.UpdateLogMessage(changes); msg != "" {
			p.emit(db, e, ActionChange, msg, changes)
		}
	}
}

// preUpdate 在同一事务内读取更新前的行
func (p *Plugin) preUpdate(db *gorm.DB) {
	for _, e := range lifecycle.Collect[Loggable](db) {
		prev, err := p.loadSnapshot(db, e)
		if err != nil {
			p.log.WithContext(db.Statement.Context).Warn("load snapshot failed",
				zap.String("table", db.Statement.Table), zap.Error(err))
			continue
		}
		if prev != nil {
			lifecycle.SetSnapshot(db, e, prev)
		}
	}
}

// postUpdate 与快照比较得到变更集，其他行为记录的变更一并合并
func (p *Plugin) postUpdate(db *gorm.DB) {
	lifecycle.ApplyPendingAssignments(db)
	if db.Error != nil {
		return
	}
	assigned := lifecycle.AssignedColumns(db)

	for _, e := range lifecycle.Collect[Loggable](db) {
		if _, ok := lifecycle.PrimaryKey(db, e); !ok {
			continue
		}
		changes := updateChanges(db, e, assigned)
		if msg := e.UpdateLogMessage(changes); msg != "" {
			p.emit(db, e, ActionChange, msg, changes)
		}
	}
}

// updateChanges 只比较本次语句写入的列和其他行为修改过的列
// 模型只加载了部分字段时，其余列的零值不代表被清空
func updateChanges(db *gorm.DB, e any, assigned map[string]struct{}) lifecycle.ChangeSet {
	changes := lifecycle.Changes(db, e)
	before, ok := lifecycle.Snapshot(db, e)
	if !ok {
		return changes
	}

	values := lifecycle.Values(db, e)
	after := make(map[string]any, len(assigned)+len(changes))
	for col := range assigned {
		if v, ok := values[col]; ok {
			after[col] = v
		}
	}
	for col := range changes {
		if v, ok := values[col]; ok {
			after[col] = v
			delete(changes, col)
		}
	}
	return changes.Merge(lifecycle.Diff(before, after))
}

func (p *Plugin) preRemove(db *gorm.DB) {
	for _, e := range lifecycle.Collect[Loggable](db) {
		p.emit(db, e, ActionRemove, e.RemoveLogMessage(), nil)
	}
}

func (p *Plugin) emit(db *gorm.DB, e any, action Action, message string, changes lifecycle.ChangeSet) {
	pk, _ := lifecycle.PrimaryKey(db, e)
	rec := Record{
		Action:     action,
		Table:      db.Statement.Table,
		PrimaryKey: pk,
		Message:    message,
		Changes:    changes,
		At:         p.now(),
	}
	if err := p.sink.Write(db.Statement.Context, rec); err != nil {
		p.log.WithContext(db.Statement.Context).Error("write log record failed",
			zap.String("table", rec.Table),
			zap.String("action", string(action)),
			zap.Error(err))
		if p.strict {
			_ = db.AddError(errors.Wrap(errors.ErrCodeLoggable, "write log record", err))
		}
	}
}

// loadSnapshot 读取更新前的行，没有主键（批量更新）或行不存在时返回 nil
func (p *Plugin) loadSnapshot(db *gorm.DB, e any) (map[string]any, error) {
	prev, err := lifecycle.Stored(db, e)
	if err != nil || prev == nil {
		return nil, err
	}
	return lifecycle.Values(db, prev), nil
}

func insertChanges(db *gorm.DB, e any) lifecycle.ChangeSet {
	s := db.Statement.Schema
	rv := reflect.ValueOf(e)
	out := make(lifecycle.ChangeSet, len(s.DBNames))
	for _, name := range s.DBNames {
		f := s.FieldsByDBName[name]
		if f == nil || !f.Readable {
			continue
		}
		if v, zero := f.ValueOf(db.Statement.Context, rv); !zero {
			out[name] = lifecycle.Change{New: v}
		}
	}
	return out
}
