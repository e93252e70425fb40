package repository

import (
	"context"
	"sync"

	"github.com/aisgo/gorm-behaviors/errors"
	"github.com/aisgo/gorm-behaviors/lifecycle"
	"github.com/aisgo/gorm-behaviors/softdelete"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

/* ========================================================================
 * CRUD Repository Implementation - CRUD 操作实现
 * ========================================================================
 * 职责: 实现 CRUDRepository 接口
 * 说明: 更新与删除先按主键加载实体，再对实体执行语句，
 *       使行为插件（操作人、slug、变更日志）拿到完整的实体状态
 *
 * 使用示例:
 *   type Article struct {
 *       repository.AuditModel
 *       sluggable.SlugFields
 *       Title string `gorm:"column:title;size:200"`
 *   }
 *
 *   repo := repository.NewRepository[Article](db)
 *   ctx = blameable.WithUser(ctx, "alice")
 *
 *   a := &Article{Title: "Hello"}
 *   err := repo.Create(ctx, a)             // uuid / slug / created_by
 *   err = repo.Delete(ctx, a.ID)           // deleted_at / deleted_by
 *   err = repo.Restore(ctx, a.ID)
 *   a, err = repo.FindBySlug(ctx, "hello")
 * ======================================================================== */

const (
	// DefaultBatchSize 默认批量操作大小
	DefaultBatchSize = 100
)

// RepositoryImpl 仓储实现
type RepositoryImpl[T any] struct {
	db *gorm.DB

	// Schema 缓存（线程安全）
	schemaOnce sync.Once
	schema     *schema.Schema
	schemaErr  error
}

// NewRepository 创建新的仓储实例
func NewRepository[T any](db *gorm.DB) Repository[T] {
	return &RepositoryImpl[T]{db: db}
}

// GetDB 获取底层 GORM DB 实例
func (r *RepositoryImpl[T]) GetDB() *gorm.DB {
	return r.db
}

func (r *RepositoryImpl[T]) newModelPtr() *T {
	var model T
	return &model
}

// withContext 返回带 context 的 DB (自动识别事务)
func (r *RepositoryImpl[T]) withContext(ctx context.Context) *gorm.DB {
	return getDBFromContext(ctx, r.db)
}

// getSchema 获取缓存的 Schema（线程安全）
func (r *RepositoryImpl[T]) getSchema() (*schema.Schema, error) {
	r.schemaOnce.Do(func() {
		stmt := &gorm.Statement{DB: r.db}
		r.schemaErr = stmt.Parse(r.newModelPtr())
		if r.schemaErr == nil {
			r.schema = stmt.Schema
		}
	})
	return r.schema, r.schemaErr
}

/* ========================================================================
 * Create 操作
 * ======================================================================== */

// Create 创建单条记录
func (r *RepositoryImpl[T]) Create(ctx context.Context, model *T) error {
	if model == nil {
		return errors.ErrInvalidArgument
	}
	return wrapDBError(r.withContext(ctx).Create(model).Error, "failed to create record")
}

// CreateBatch 批量创建记录
func (r *RepositoryImpl[T]) CreateBatch(ctx context.Context, models []*T, batchSize int) error {
	if len(models) == 0 {
		return errors.ErrInvalidArgument
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	validModels := make([]*T, 0, len(models))
	for _, m := range models {
		if m != nil {
			validModels = append(validModels, m)
		}
	}
	if len(validModels) == 0 {
		return nil
	}

	return wrapDBError(r.withContext(ctx).CreateInBatches(validModels, batchSize).Error, "failed to create records")
}

/* ========================================================================
 * Update 操作
 * ======================================================================== */

// Update 保存实体的全部字段（created_at 除外）
// 已软删除或不存在的记录返回 NotFound
func (r *RepositoryImpl[T]) Update(ctx context.Context, model *T) error {
	if model == nil {
		return errors.ErrInvalidArgument
	}

	result := r.withContext(ctx).Model(model).Select("*").Omit("created_at").Updates(model)
	if result.Error != nil {
		return wrapDBError(result.Error, "failed to update record")
	}
	if result.RowsAffected == 0 {
		return errors.New(errors.ErrCodeNotFound, "record not found")
	}
	return nil
}

// UpdateByID 根据 ID 更新指定字段
// allowedFields 非空时只保留白名单中的字段
func (r *RepositoryImpl[T]) UpdateByID(ctx context.Context, id int64, updates map[string]any, allowedFields ...string) error {
	if len(updates) == 0 {
		return errors.ErrInvalidArgument
	}

	filtered, err := r.filterUpdates(updates, allowedFields)
	if err != nil {
		return err
	}
	if len(filtered) == 0 {
		return errors.ErrInvalidArgument
	}

	return r.Transaction(ctx, func(txCtx context.Context) error {
		model, err := r.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		return wrapDBError(r.withContext(txCtx).Model(model).Updates(filtered).Error, "failed to update record")
	})
}

// filterUpdates 过滤非法列名、主键与不可更新列，防止批量赋值
func (r *RepositoryImpl[T]) filterUpdates(updates map[string]any, allowedFields []string) (map[string]any, error) {
	s, err := r.getSchema()
	if err != nil {
		return nil, err
	}

	allowed := make(map[string]struct{}, len(allowedFields))
	for _, f := range allowedFields {
		allowed[f] = struct{}{}
	}

	filtered := make(map[string]any, len(updates))
	for k, v := range updates {
		if len(allowed) > 0 {
			if _, ok := allowed[k]; !ok {
				continue
			}
		}
		// 列名或结构体字段名
		field := s.LookUpField(k)
		if field == nil || field.PrimaryKey || !field.Updatable || field.DBName == "" {
			continue
		}
		filtered[field.DBName] = v
	}
	return filtered, nil
}

/* ========================================================================
 * Delete 操作
 * ======================================================================== */

// Delete 删除记录；注册了 softdelete 时软删除模型只写入 deleted_at
func (r *RepositoryImpl[T]) Delete(ctx context.Context, id int64) error {
	return r.Transaction(ctx, func(txCtx context.Context) error {
		model, err := r.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		return wrapDBError(r.withContext(txCtx).Delete(model).Error, "failed to delete record")
	})
}

// HardDelete 硬删除记录（包括已软删除的记录）
func (r *RepositoryImpl[T]) HardDelete(ctx context.Context, id int64) error {
	return r.Transaction(ctx, func(txCtx context.Context) error {
		model, err := r.FindByID(txCtx, id, WithScopes(WithTrashed))
		if err != nil {
			return err
		}
		return wrapDBError(r.withContext(txCtx).Unscoped().Delete(model).Error, "failed to delete record")
	})
}

// Restore 清除 deleted_at；模型不支持软删除时返回 InvalidArgument
func (r *RepositoryImpl[T]) Restore(ctx context.Context, id int64) error {
	s, err := r.getSchema()
	if err != nil {
		return err
	}
	if !lifecycle.ModelImplements[softdelete.SoftDeletable](s) {
		return errors.Newf(errors.ErrCodeInvalidArgument, "%s is not soft deletable", s.Name)
	}

	return r.Transaction(ctx, func(txCtx context.Context) error {
		model, err := r.FindByID(txCtx, id, WithScopes(OnlyTrashed))
		if err != nil {
			return err
		}
		err = r.withContext(txCtx).Unscoped().Model(model).Update(softdelete.Column, nil).Error
		return wrapDBError(err, "failed to restore record")
	})
}

// wrapDBError BizError（行为插件产生的错误）原样返回
func wrapDBError(err error, message string) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.AsBizError(err); ok {
		return err
	}
	return errors.Wrap(errors.ErrCodeInternal, message, err)
}
