package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

/* ========================================================================
 * Repository Interfaces - 仓储接口定义
 * ========================================================================
 * 职责: 定义通用仓储接口
 * 设计: 使用泛型提供类型安全的数据访问；删除语义由已注册的行为插件决定
 * ======================================================================== */

// QueryOption 查询选项
type QueryOption struct {
	// Preloads 预加载关联（如 "CreatedBy"）
	Preloads []string
	// Scopes 查询作用域（如 WithTrashed）
	Scopes []func(*gorm.DB) *gorm.DB
	// OrderBy 排序（如 "created_at DESC"）
	OrderBy string
	// Select 选择字段（如 "id, slug"）
	Select []string
}

// Option 应用查询选项
type Option func(*QueryOption)

// WithPreloads 设置预加载
func WithPreloads(preloads ...string) Option {
	return func(o *QueryOption) {
		o.Preloads = append(o.Preloads, preloads...)
	}
}

// WithScopes 设置查询作用域
func WithScopes(scopes ...func(*gorm.DB) *gorm.DB) Option {
	return func(o *QueryOption) {
		o.Scopes = append(o.Scopes, scopes...)
	}
}

// WithOrderBy 设置排序
func WithOrderBy(orderBy string) Option {
	return func(o *QueryOption) {
		o.OrderBy = orderBy
	}
}

// WithSelect 设置选择字段
func WithSelect(selects ...string) Option {
	return func(o *QueryOption) {
		o.Select = selects
	}
}

// ApplyOptions 应用查询选项
func ApplyOptions(opts []Option) *QueryOption {
	o := &QueryOption{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// PageResult 分页结果
type PageResult[T any] struct {
	List     []T   `json:"list"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Pages    int64 `json:"pages"`
}

// CRUDRepository CRUD 操作接口
type CRUDRepository[T any] interface {
	// Create 创建单条记录
	Create(ctx context.Context, model *T) error

	// CreateBatch 批量创建记录，同一批次内 slug 互不冲突
	CreateBatch(ctx context.Context, models []*T, batchSize int) error

	// Update 保存实体的全部字段
	Update(ctx context.Context, model *T) error

	// UpdateByID 根据 ID 更新指定字段
	UpdateByID(ctx context.Context, id int64, updates map[string]any, allowedFields ...string) error

	// Delete 删除记录；软删除模型写入 deleted_at
	Delete(ctx context.Context, id int64) error

	// HardDelete 从数据库移除记录
	HardDelete(ctx context.Context, id int64) error

	// Restore 恢复软删除的记录
	Restore(ctx context.Context, id int64) error
}

// QueryRepository 查询操作接口
type QueryRepository[T any] interface {
	FindByID(ctx context.Context, id int64, opts ...Option) (*T, error)
	FindBySlug(ctx context.Context, slug string, opts ...Option) (*T, error)
	FindByUUID(ctx context.Context, id uuid.UUID, opts ...Option) (*T, error)
	FindByQuery(ctx context.Context, query string, opts []Option, args ...any) ([]*T, error)
	FindPage(ctx context.Context, page, pageSize int, query string, opts []Option, args ...any) (*PageResult[T], error)
	Count(ctx context.Context, query string, args ...any) (int64, error)
	Exists(ctx context.Context, query string, args ...any) (bool, error)
}

// Repository 通用仓储接口
type Repository[T any] interface {
	CRUDRepository[T]
	QueryRepository[T]

	// Transaction 在事务中执行 fn，fn 内使用 txCtx 的仓储调用共享同一事务
	Transaction(ctx context.Context, fn func(txCtx context.Context) error) error

	// GetDB 获取底层 GORM DB 实例（用于复杂查询）
	GetDB() *gorm.DB
}
