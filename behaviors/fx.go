package behaviors

import (
	"github.com/aisgo/gorm-behaviors/blameable"
	"github.com/aisgo/gorm-behaviors/cache/redis"
	"github.com/aisgo/gorm-behaviors/logger"
	"github.com/aisgo/gorm-behaviors/mq"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Module 行为插件模块
// 需要: *gorm.DB, *logger.Logger, Config
// 可选: mq.Producer, *redis.Client, blameable.UserProvider[string], blameable.UserProvider[int64]
// 提供: *Behaviors
var Module = fx.Module("behaviors",
	fx.Provide(New),
)

// Params 模块依赖
type Params struct {
	fx.In

	DB       *gorm.DB
	Config   Config
	Logger   *logger.Logger
	Producer mq.Producer                    `optional:"true"`
	Redis    *redis.Client                  `optional:"true"`
	Users    blameable.UserProvider[string] `optional:"true"`
	UserIDs  blameable.UserProvider[int64]  `optional:"true"`
}

// New 注册行为插件
func New(p Params) (*Behaviors, error) {
	return Register(p.DB, p.Config, Deps{
		Logger:   p.Logger,
		Producer: p.Producer,
		Redis:    p.Redis,
		Users:    p.Users,
		UserIDs:  p.UserIDs,
	})
}
