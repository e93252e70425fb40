package repository

import (
	"context"

	"gorm.io/gorm"
)

type ctxTxKey struct{}

// getDBFromContext 优先返回 context 中的事务 DB，并绑定 context
func getDBFromContext(ctx context.Context, originalDB *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(ctxTxKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return originalDB.WithContext(ctx)
}
