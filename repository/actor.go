package repository

import (
	"context"

	"github.com/aisgo/gorm-behaviors/blameable"

	ulidv2 "github.com/oklog/ulid/v2"
)

// ActorContext 当前请求的认证主体
type ActorContext struct {
	TenantID ulidv2.ULID
	UserID   ulidv2.ULID
	Username string
	Roles    []string
}

type actorCtxKey struct{}

// WithActorContext 注入 ActorContext
func WithActorContext(ctx context.Context, ac ActorContext) context.Context {
	return context.WithValue(ctx, actorCtxKey{}, ac)
}

// ActorFromContext 读取 ActorContext
func ActorFromContext(ctx context.Context) (ActorContext, bool) {
	if ctx == nil {
		return ActorContext{}, false
	}
	ac, ok := ctx.Value(actorCtxKey{}).(ActorContext)
	return ac, ok
}

// ActorUserProvider 以 ActorContext 作为 blameable 的操作人来源
// 优先使用 Username，为空时使用 UserID 的字符串形式
type ActorUserProvider struct{}

var _ blameable.UserProvider[string] = ActorUserProvider{}

// ProvideUser 实现 blameable.UserProvider
func (ActorUserProvider) ProvideUser(ctx context.Context) (string, bool) {
	ac, ok := ActorFromContext(ctx)
	if !ok {
		return "", false
	}
	if ac.Username != "" {
		return ac.Username, true
	}
	if ac.UserID == (ulidv2.ULID{}) {
		return "", false
	}
	return ac.UserID.String(), true
}
