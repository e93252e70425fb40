package repository

import (
	"context"

	"gorm.io/gorm"
)

const (
	defaultPageSize = 10
	maxPageSize     = 1000
)

// FindPage 分页查询，总数与列表在同一事务内读取
func (r *RepositoryImpl[T]) FindPage(ctx context.Context, page, pageSize int, query string, opts []Option, args ...any) (*PageResult[T], error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	opt := ApplyOptions(opts)

	var result *PageResult[T]
	err := r.Transaction(ctx, func(txCtx context.Context) error {
		// 计数只带作用域和条件，排序与预加载只作用于列表
		countDB := r.withContext(txCtx).Model(r.newModelPtr())
		for _, scope := range opt.Scopes {
			countDB = scope(countDB)
		}
		countDB = where(countDB, query, args)

		var total int64
		if err := countDB.Count(&total).Error; err != nil {
			return wrapDBError(err, "failed to count records")
		}

		var list []T
		listDB := where(r.buildQuery(txCtx, opt), query, args)
		if err := listDB.Offset((page - 1) * pageSize).Limit(pageSize).Find(&list).Error; err != nil {
			return wrapDBError(err, "failed to find records")
		}

		result = &PageResult[T]{
			List:     list,
			Total:    total,
			Page:     page,
			PageSize: pageSize,
			Pages:    (total + int64(pageSize) - 1) / int64(pageSize),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func where(db *gorm.DB, query string, args []any) *gorm.DB {
	if query == "" {
		return db
	}
	return db.Where(query, args...)
}
