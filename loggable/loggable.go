package loggable

import (
	"time"

	"github.com/aisgo/gorm-behaviors/lifecycle"
)

/* ========================================================================
 * Loggable - 实体变更日志
 * ========================================================================
 * 职责: 实体创建 / 更新 / 删除时输出日志消息和列级变更集
 * 事件: PostPersist, PreUpdate (快照), PostUpdate, PreRemove
 * 输出: Sink (zap 日志 / Kafka)
 * ======================================================================== */

// Name 行为名
const Name = "loggable"

// Loggable 由需要变更日志的实体实现
type Loggable interface {
	CreateLogMessage() string
	// UpdateLogMessage 返回空字符串时不输出
	UpdateLogMessage(changes lifecycle.ChangeSet) string
	RemoveLogMessage() string
}

// Action 日志动作
type Action string

const (
	ActionCreate Action = "create"
	ActionChange Action = "change"
	ActionRemove Action = "remove"
)

// Record 一条变更日志
type Record struct {
	Action     Action              `json:"action"`
	Table      string              `json:"table"`
	PrimaryKey []any               `json:"primary_key,omitempty"`
	Message    string              `json:"message"`
	Changes    lifecycle.ChangeSet `json:"changes,omitempty"`
	At         time.Time           `json:"at"`
}
