package repository

import (
	"context"

	"github.com/aisgo/gorm-behaviors/errors"

	"gorm.io/gorm"
)

// Transaction 在事务中执行操作
// fn 返回错误时回滚；嵌套调用复用外层事务（GORM 使用 SAVEPOINT）
// BizError 原样返回，其他错误包装为 ErrCodeInternal
func (r *RepositoryImpl[T]) Transaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	err := r.withContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, ctxTxKey{}, tx))
	})
	if err == nil {
		return nil
	}
	if _, ok := errors.AsBizError(err); ok {
		return err
	}
	return errors.Wrap(errors.ErrCodeInternal, "transaction failed", err)
}
