package blameable

import (
	"context"
)

// UserProvider 提供当前操作人
// 返回 false 表示没有已认证的用户，此时行为不做任何修改
type UserProvider[U comparable] interface {
	ProvideUser(ctx context.Context) (U, bool)
}

// ProviderFunc 函数适配器
type ProviderFunc[U comparable] func(ctx context.Context) (U, bool)

// ProvideUser 实现 UserProvider
func (f ProviderFunc[U]) ProvideUser(ctx context.Context) (U, bool) {
	return f(ctx)
}

type userKey[U comparable] struct{}

// WithUser 把操作人放入 context
func WithUser[U comparable](ctx context.Context, user U) context.Context {
	return context.WithValue(ctx, userKey[U]{}, user)
}

// UserFromContext 从 context 读取操作人，零值视为不存在
func UserFromContext[U comparable](ctx context.Context) (U, bool) {
	var zero U
	if ctx == nil {
		return zero, false
	}
	u, ok := ctx.Value(userKey[U]{}).(U)
	if !ok || u == zero {
		return zero, false
	}
	return u, true
}

// ContextProvider 从语句 context 中读取 WithUser 写入的操作人
type ContextProvider[U comparable] struct{}

// ProvideUser 实现 UserProvider
func (ContextProvider[U]) ProvideUser(ctx context.Context) (U, bool) {
	return UserFromContext[U](ctx)
}

// Chain 依次尝试多个提供者，返回第一个有效用户
func Chain[U comparable](providers ...UserProvider[U]) UserProvider[U] {
	return ProviderFunc[U](func(ctx context.Context) (U, bool) {
		for _, p := range providers {
			if p == nil {
				continue
			}
			if u, ok := p.ProvideUser(ctx); ok {
				return u, true
			}
		}
		var zero U
		return zero, false
	})
}
