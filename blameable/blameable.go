package blameable

/* ========================================================================
 * Blameable - 操作人审计
 * ========================================================================
 * 职责: 在插入 / 更新 / 删除时记录当前操作人
 * 映射:
 *   - BlameFields: created_by / updated_by / deleted_by 字符串列
 *   - RefFields:   created_by_id / updated_by_id / deleted_by_id 外键列，
 *                  关联用户实体，用户删除时置空
 * ======================================================================== */

// Name 行为名
const Name = "blameable"

// Blameable 需要记录操作人的实体，U 为用户标识类型
// U 的零值表示"未设置"
type Blameable[U comparable] interface {
	GetCreatedBy() U
	SetCreatedBy(u U)
	GetUpdatedBy() U
	SetUpdatedBy(u U)
	GetDeletedBy() U
	SetDeletedBy(u U)
}

// Columns 三个审计列的列名
type Columns struct {
	CreatedBy string
	UpdatedBy string
	DeletedBy string
}

// StringColumns BlameFields 使用的列名
var StringColumns = Columns{CreatedBy: "created_by", UpdatedBy: "updated_by", DeletedBy: "deleted_by"}

// ReferenceColumns RefFields 使用的列名
var ReferenceColumns = Columns{CreatedBy: "created_by_id", UpdatedBy: "updated_by_id", DeletedBy: "deleted_by_id"}

func (c Columns) list() []string {
	return []string{c.CreatedBy, c.UpdatedBy, c.DeletedBy}
}

// BlameFields 以字符串保存操作人
type BlameFields struct {
	CreatedBy *string `gorm:"column:created_by;size:64" json:"created_by,omitempty"`
	UpdatedBy *string `gorm:"column:updated_by;size:64" json:"updated_by,omitempty"`
	DeletedBy *string `gorm:"column:deleted_by;size:64" json:"deleted_by,omitempty"`
}

func get(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (f *BlameFields) GetCreatedBy() string  { return get(f.CreatedBy) }
func (f *BlameFields) SetCreatedBy(u string) { f.CreatedBy = ptr(u) }
func (f *BlameFields) GetUpdatedBy() string  { return get(f.UpdatedBy) }
func (f *BlameFields) SetUpdatedBy(u string) { f.UpdatedBy = ptr(u) }
func (f *BlameFields) GetDeletedBy() string  { return get(f.DeletedBy) }
func (f *BlameFields) SetDeletedBy(u string) { f.DeletedBy = ptr(u) }

// RefFields 以外键关联用户实体 T，T 的主键为 int64
type RefFields[T any] struct {
	CreatedByID *int64 `gorm:"column:created_by_id;index" json:"created_by_id,omitempty"`
	UpdatedByID *int64 `gorm:"column:updated_by_id;index" json:"updated_by_id,omitempty"`
	DeletedByID *int64 `gorm:"column:deleted_by_id;index" json:"deleted_by_id,omitempty"`

	CreatedBy *T `gorm:"foreignKey:CreatedByID;constraint:OnDelete:SET NULL" json:"created_by,omitempty"`
	UpdatedBy *T `gorm:"foreignKey:UpdatedByID;constraint:OnDelete:SET NULL" json:"updated_by,omitempty"`
	DeletedBy *T `gorm:"foreignKey:DeletedByID;constraint:OnDelete:SET NULL" json:"deleted_by,omitempty"`
}

func getID(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

func idPtr(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func (f *RefFields[T]) GetCreatedBy() int64  { return getID(f.CreatedByID) }
func (f *RefFields[T]) SetCreatedBy(u int64) { f.CreatedByID = idPtr(u) }
func (f *RefFields[T]) GetUpdatedBy() int64  { return getID(f.UpdatedByID) }
func (f *RefFields[T]) SetUpdatedBy(u int64) { f.UpdatedByID = idPtr(u) }
func (f *RefFields[T]) GetDeletedBy() int64  { return getID(f.DeletedByID) }
func (f *RefFields[T]) SetDeletedBy(u int64) { f.DeletedByID = idPtr(u) }
