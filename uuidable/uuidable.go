package uuidable

import (
	"github.com/google/uuid"
)

/* ========================================================================
 * Uuidable - 实体 UUID 标识
 * ========================================================================
 * 职责: 插入前为实现 Uuidable 的实体生成 uuid 列
 * 映射: 模型必须映射 uuid 列，推荐嵌入 UUIDFields
 * ======================================================================== */

// Name 行为名，用于回调命名与 lifecycle.Disable
const Name = "uuidable"

// Column uuid 列名
const Column = "uuid"

// Uuidable 需要自动生成 UUID 的实体
type Uuidable interface {
	GetUUID() uuid.UUID
	SetUUID(id uuid.UUID)
}

// UUIDFields 可嵌入的 uuid 列
type UUIDFields struct {
	UUID uuid.UUID `gorm:"column:uuid;type:varchar(36);uniqueIndex" json:"uuid"`
}

// GetUUID 实现 Uuidable
func (f *UUIDFields) GetUUID() uuid.UUID { return f.UUID }

// SetUUID 实现 Uuidable
func (f *UUIDFields) SetUUID(id uuid.UUID) { f.UUID = id }

// GenerateUUID 仅在实体没有 UUID 时生成
// 返回 true 表示生成了新值
func GenerateUUID(e Uuidable, gen Generator) (bool, error) {
	if e.GetUUID() != uuid.Nil {
		return false, nil
	}
	id, err := gen()
	if err != nil {
		return false, err
	}
	e.SetUUID(id)
	return true, nil
}
