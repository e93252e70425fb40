package cache

import (
	"github.com/aisgo/gorm-behaviors/cache/redis"

	"go.uber.org/fx"
)

/* ========================================================================
 * Cache Module
 * ========================================================================
 * 职责: 提供 Redis 依赖注入模块
 * ======================================================================== */

// Module 缓存模块
// 提供: *redis.Client
var Module = fx.Module("cache",
	fx.Provide(redis.NewClient),
)
