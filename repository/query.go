package repository

import (
	"context"

	"github.com/aisgo/gorm-behaviors/errors"
	"github.com/aisgo/gorm-behaviors/sluggable"
	"github.com/aisgo/gorm-behaviors/softdelete"
	"github.com/aisgo/gorm-behaviors/uuidable"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

/* ========================================================================
 * Query Repository Implementation - 查询操作实现
 * ========================================================================
 * 职责: 实现 QueryRepository 接口
 * ======================================================================== */

// WithTrashed 查询包含已软删除的记录
func WithTrashed(db *gorm.DB) *gorm.DB {
	return db.Unscoped()
}

// OnlyTrashed 只查询已软删除的记录
func OnlyTrashed(db *gorm.DB) *gorm.DB {
	return db.Unscoped().Where(clause.Neq{
		Column: clause.Column{Table: clause.CurrentTable, Name: softdelete.Column},
		Value:  nil,
	})
}

// buildQuery 构建查询，OrderBy / Select 先做安全校验
func (r *RepositoryImpl[T]) buildQuery(ctx context.Context, opts *QueryOption) *gorm.DB {
	db := r.withContext(ctx)
	if opts == nil {
		return db
	}

	if err := ValidateSelect(opts.Select); err != nil {
		_ = db.AddError(err)
		return db
	}
	if err := ValidateOrderBy(opts.OrderBy); err != nil {
		_ = db.AddError(err)
		return db
	}

	if len(opts.Select) > 0 {
		db = db.Select(opts.Select)
	}
	if opts.OrderBy != "" {
		db = db.Order(opts.OrderBy)
	}
	for _, scope := range opts.Scopes {
		db = scope(db)
	}
	for _, preload := range opts.Preloads {
		db = db.Preload(preload)
	}
	return db
}

func (r *RepositoryImpl[T]) first(db *gorm.DB) (*T, error) {
	model := r.newModelPtr()
	if err := db.First(model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.ErrCodeNotFound, "record not found")
		}
		return nil, wrapDBError(err, "failed to find record")
	}
	return model, nil
}

// FindByID 根据主键查找记录
func (r *RepositoryImpl[T]) FindByID(ctx context.Context, id int64, opts ...Option) (*T, error) {
	s, err := r.getSchema()
	if err != nil {
		return nil, err
	}
	if s.PrioritizedPrimaryField == nil {
		return nil, errors.Newf(errors.ErrCodeInvalidArgument, "%s has no primary key", s.Name)
	}
	return r.first(r.buildQuery(ctx, ApplyOptions(opts)).Where(clause.Eq{
		Column: clause.Column{Table: clause.CurrentTable, Name: s.PrioritizedPrimaryField.DBName},
		Value:  id,
	}))
}

// FindBySlug 根据 slug 查找记录
func (r *RepositoryImpl[T]) FindBySlug(ctx context.Context, slug string, opts ...Option) (*T, error) {
	return r.findByColumn(ctx, sluggable.Column, slug, opts)
}

// FindByUUID 根据 uuid 查找记录
func (r *RepositoryImpl[T]) FindByUUID(ctx context.Context, id uuid.UUID, opts ...Option) (*T, error) {
	return r.findByColumn(ctx, uuidable.Column, id, opts)
}

func (r *RepositoryImpl[T]) findByColumn(ctx context.Context, column string, value any, opts []Option) (*T, error) {
	s, err := r.getSchema()
	if err != nil {
		return nil, err
	}
	if s.LookUpField(column) == nil {
		return nil, errors.Newf(errors.ErrCodeInvalidArgument, "%s has no %s column", s.Name, column)
	}
	return r.first(r.buildQuery(ctx, ApplyOptions(opts)).Where(clause.Eq{
		Column: clause.Column{Table: clause.CurrentTable, Name: column},
		Value:  value,
	}))
}

// FindByQuery 查找多条记录
func (r *RepositoryImpl[T]) FindByQuery(ctx context.Context, query string, opts []Option, args ...any) ([]*T, error) {
	db := r.buildQuery(ctx, ApplyOptions(opts))
	if query != "" {
		db = db.Where(query, args...)
	}

	var models []*T
	if err := db.Find(&models).Error; err != nil {
		return nil, wrapDBError(err, "failed to find records")
	}
	return models, nil
}

// Count 统计记录数（不含已软删除的记录）
func (r *RepositoryImpl[T]) Count(ctx context.Context, query string, args ...any) (int64, error) {
	db := r.withContext(ctx).Model(r.newModelPtr())
	if query != "" {
		db = db.Where(query, args...)
	}

	var count int64
	if err := db.Count(&count).Error; err != nil {
		return 0, wrapDBError(err, "failed to count records")
	}
	return count, nil
}

// Exists 检查记录是否存在
func (r *RepositoryImpl[T]) Exists(ctx context.Context, query string, args ...any) (bool, error) {
	count, err := r.Count(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
