package lifecycle

import (
	"github.com/aisgo/gorm-behaviors/errors"
	"github.com/aisgo/gorm-behaviors/metrics"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

/* ========================================================================
 * Lifecycle - 实体生命周期事件
 * ========================================================================
 * 职责: 将行为插件的回调挂载到 GORM 固定的回调链上
 * 映射:
 *   PrePersist  -> create 链, gorm:create 之前
 *   PostPersist -> create 链, gorm:after_create 之前
 *   PreUpdate   -> update 链, gorm:update 之前
 *   PostUpdate  -> update 链, gorm:after_update 之前
 *   PreRemove   -> delete 链, gorm:delete_before_associations 之前
 *   OnFlush     -> delete 链, gorm:delete 之前（总在所有 PreRemove 之后）
 *   PreQuery    -> query 链, gorm:query 之前
 *   PersistFinished / UpdateFinished
 *               -> create / update 链末尾, 事务提交或回滚之后，语句出错时同样调用
 * LoadMetadata 不是回调，由 Requirement.Validate 在注册模型时执行。
 * ======================================================================== */

// Event 生命周期事件名
type Event string

const (
	LoadMetadata Event = "load_metadata"
	PrePersist   Event = "pre_persist"
	PostPersist  Event = "post_persist"
	PreUpdate    Event = "pre_update"
	PostUpdate   Event = "post_update"
	PreRemove    Event = "pre_remove"
	OnFlush      Event = "on_flush"
	PreQuery     Event = "pre_query"

	PersistFinished Event = "persist_finished"
	UpdateFinished  Event = "update_finished"
)

// final 语句结束时的事件，不因 db.Error 跳过
func (e Event) final() bool {
	return e == PersistFinished || e == UpdateFinished
}

const lastCallback = "gorm:commit_or_rollback_transaction"

// Hook 单个事件回调
type Hook struct {
	Event Event
	// Match 按模型 Schema 过滤，返回 false 时不调用 Fn
	Match func(s *schema.Schema) bool
	Fn    func(db *gorm.DB)
}

const skipKey = "behaviors:skip:"

// CallbackName 返回回调在 GORM 中注册的名称
func CallbackName(behavior string, event Event) string {
	return "behaviors:" + behavior + ":" + string(event)
}

// Register 将行为的回调注册到 db，同名回调已存在时跳过
func Register(db *gorm.DB, behavior string, hooks ...Hook) error {
	for _, h := range hooks {
		if h.Fn == nil {
			continue
		}
		name := CallbackName(behavior, h.Event)
		if err := register(db, h.Event, name, wrap(behavior, h)); err != nil {
			return err
		}
	}
	return nil
}

func register(db *gorm.DB, event Event, name string, fn func(*gorm.DB)) error {
	cb := db.Callback()
	switch event {
	case PrePersist:
		if cb.Create().Get(name) != nil {
			return nil
		}
		return cb.Create().Before("gorm:create").Register(name, fn)
	case PostPersist:
		if cb.Create().Get(name) != nil {
			return nil
		}
		return cb.Create().Before("gorm:after_create").Register(name, fn)
	case PreUpdate:
		if cb.Update().Get(name) != nil {
			return nil
		}
		return cb.Update().Before("gorm:update").Register(name, fn)
	case PostUpdate:
		if cb.Update().Get(name) != nil {
			return nil
		}
		return cb.Update().Before("gorm:after_update").Register(name, fn)
	case PreRemove:
		if cb.Delete().Get(name) != nil {
			return nil
		}
		return cb.Delete().Before("gorm:delete_before_associations").Register(name, fn)
	case OnFlush:
		if cb.Delete().Get(name) != nil {
			return nil
		}
		return cb.Delete().Before("gorm:delete").Register(name, fn)
	case PersistFinished:
		if cb.Create().Get(name) != nil {
			return nil
		}
		return cb.Create().After(lastCallback).Register(name, fn)
	case UpdateFinished:
		if cb.Update().Get(name) != nil {
			return nil
		}
		return cb.Update().After(lastCallback).Register(name, fn)
	case PreQuery:
		if cb.Query().Get(name) != nil {
			return nil
		}
		return cb.Query().Before("gorm:query").Register(name, fn)
	default:
		return errors.Newf(errors.ErrCodeInvalidArgument, "unsupported lifecycle event %q", event)
	}
}

func wrap(behavior string, h Hook) func(*gorm.DB) {
	final := h.Event.final()
	return func(db *gorm.DB) {
		if db.Statement.Schema == nil || (db.Error != nil && !final) {
			return
		}
		if Disabled(db, behavior) {
			return
		}
		if h.Match != nil && !h.Match(db.Statement.Schema) {
			return
		}

		metrics.BehaviorEventTotal.WithLabelValues(behavior, string(h.Event), db.Statement.Schema.Table).Inc()
		failed := db.Error != nil
		h.Fn(db)
		if !failed && db.Error != nil {
			metrics.BehaviorErrorTotal.WithLabelValues(behavior, string(h.Event)).Inc()
		}
	}
}

// Disable 在当前会话上关闭指定行为，传入 "*" 关闭全部
//
//	lifecycle.Disable(db, "sluggable").Create(&article)
func Disable(db *gorm.DB, behaviors ...string) *gorm.DB {
	for _, b := range behaviors {
		db = db.Set(skipKey+b, true)
	}
	return db
}

// Disabled 判断行为是否在当前会话上被关闭
func Disabled(db *gorm.DB, behavior string) bool {
	if v, ok := db.Get(skipKey + "*"); ok && v == true {
		return true
	}
	v, ok := db.Get(skipKey + behavior)
	return ok && v == true
}
