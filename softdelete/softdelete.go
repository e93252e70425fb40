package softdelete

import (
	"time"
)

/* ========================================================================
 * SoftDelete - 软删除
 * ========================================================================
 * 职责: 把实现 SoftDeletable 的模型上的 DELETE 改写为
 *       UPDATE ... SET deleted_at = now，查询与更新默认排除已删除行
 * 映射: 模型必须映射 deleted_at 列，推荐嵌入 SoftDeleteFields
 * 说明: Unscoped() 的删除仍是物理删除
 * ======================================================================== */

// Name 行为名
const Name = "softdelete"

// Column 删除时间列
const Column = "deleted_at"

// SoftDeletable 支持软删除的实体
type SoftDeletable interface {
	GetDeletedAt() *time.Time
	SetDeletedAt(t *time.Time)
}

// SoftDeleteFields 可嵌入的删除时间列
type SoftDeleteFields struct {
	DeletedAt *time.Time `gorm:"column:deleted_at;index" json:"deleted_at,omitempty"`
}

// GetDeletedAt 实现 SoftDeletable
func (f *SoftDeleteFields) GetDeletedAt() *time.Time { return f.DeletedAt }

// SetDeletedAt 实现 SoftDeletable
func (f *SoftDeleteFields) SetDeletedAt(t *time.Time) { f.DeletedAt = t }

// Delete 在内存中标记删除
func (f *SoftDeleteFields) Delete(now time.Time) { f.DeletedAt = &now }

// Restore 清除删除标记
func (f *SoftDeleteFields) Restore() { f.DeletedAt = nil }

// IsDeleted 删除时间不晚于当前时间
func (f *SoftDeleteFields) IsDeleted() bool {
	return f.DeletedAt != nil && !f.DeletedAt.After(time.Now())
}

// WillBeDeleted 在 at 时刻是否已被删除
func (f *SoftDeleteFields) WillBeDeleted(at time.Time) bool {
	return f.DeletedAt != nil && !f.DeletedAt.After(at)
}
