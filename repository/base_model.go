package repository

import (
	"time"

	"github.com/aisgo/gorm-behaviors/blameable"
	"github.com/aisgo/gorm-behaviors/softdelete"
	"github.com/aisgo/gorm-behaviors/utils/id-generator/snowflake"
	"github.com/aisgo/gorm-behaviors/uuidable"

	"gorm.io/gorm"
)

/* ========================================================================
 * Base Model - 基础模型
 * ========================================================================
 * 职责: 定义所有模型的公共字段和方法
 * 使用: GORM 模型嵌入 BaseModel；需要审计的模型嵌入 AuditModel
 * ======================================================================== */

// BaseModel 所有模型的基类
// 包含通用字段：雪花 ID、创建时间、更新时间
type BaseModel struct {
	ID        int64     `json:"id,string" gorm:"primaryKey;autoIncrement:false;comment:主键ID"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime;comment:创建时间"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime;comment:更新时间"`
}

// BeforeCreate GORM 钩子：在创建记录前自动生成雪花 ID
// 注意: 在多实例部署环境中，必须配置环境变量 SNOWFLAKE_NODE_ID
func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == 0 {
		m.ID = snowflake.Generate()
	}
	return nil
}

// AuditModel 带外部标识、操作人与软删除的模型基类
// 对应的行为: uuidable, blameable（字符串模式）, softdelete
type AuditModel struct {
	BaseModel
	uuidable.UUIDFields
	blameable.BlameFields
	softdelete.SoftDeleteFields
}
