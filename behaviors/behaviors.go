package behaviors

import (
	"github.com/aisgo/gorm-behaviors/blameable"
	"github.com/aisgo/gorm-behaviors/cache/redis"
	"github.com/aisgo/gorm-behaviors/errors"
	"github.com/aisgo/gorm-behaviors/lifecycle"
	"github.com/aisgo/gorm-behaviors/loggable"
	"github.com/aisgo/gorm-behaviors/logger"
	"github.com/aisgo/gorm-behaviors/mq"
	"github.com/aisgo/gorm-behaviors/sluggable"
	"github.com/aisgo/gorm-behaviors/softdelete"
	"github.com/aisgo/gorm-behaviors/uuidable"
	"github.com/aisgo/gorm-behaviors/validator"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

/* ========================================================================
 * Behaviors - 行为插件装配
 * ========================================================================
 * 职责: 按配置把启用的行为注册到 *gorm.DB，并在启动时检查模型映射
 * 顺序: uuidable -> sluggable -> blameable -> loggable -> softdelete
 *       同一事件内按注册顺序执行，softdelete 的 OnFlush 总在 PreRemove 之后
 * ======================================================================== */

// Deps 可选依赖
type Deps struct {
	Logger *logger.Logger
	// Producer loggable 的 kafka 输出端使用
	Producer mq.Producer
	// Redis sluggable 的跨实例占位使用
	Redis *redis.Client
	// Users 字符串模式下的操作人来源，默认从 Context 读取
	Users blameable.UserProvider[string]
	// UserIDs 引用模式下的操作人来源，默认从 Context 读取
	UserIDs blameable.UserProvider[int64]
}

// Behaviors 已注册的行为
type Behaviors struct {
	config       Config
	requirements []*lifecycle.Requirement
}

// Register 校验配置并注册启用的行为
func Register(db *gorm.DB, cfg Config, deps Deps) (*Behaviors, error) {
	if err := validator.New().Validate(&cfg); err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}

	plugins, requirements, err := build(cfg, deps)
	if err != nil {
		return nil, err
	}
	for _, p := range plugins {
		if err := db.Use(p); err != nil {
			// 重复注册时 GORM 返回 ErrRegistered，回调本身是幂等的
			if errors.Is(err, gorm.ErrRegistered) {
				continue
			}
			return nil, errors.Wrapf(errors.ErrCodeInternal, err, "register %s", p.Name())
		}
	}

	enabled := make([]string, 0, len(plugins))
	for _, p := range plugins {
		enabled = append(enabled, p.Name())
	}
	deps.Logger.Info("behaviors registered", zap.Strings("enabled", enabled))

	return &Behaviors{config: cfg, requirements: requirements}, nil
}

// Validate 检查模型是否映射了已启用行为需要的列
// 建议在 AutoMigrate 之前调用，映射错误在启动时暴露
func (b *Behaviors) Validate(db *gorm.DB, models ...any) error {
	for _, r := range b.requirements {
		if err := r.Validate(db, models...); err != nil {
			return err
		}
	}
	return nil
}

// Config 返回生效的配置
func (b *Behaviors) Config() Config { return b.config }

func build(cfg Config, deps Deps) ([]gorm.Plugin, []*lifecycle.Requirement, error) {
	var (
		plugins      []gorm.Plugin
		requirements []*lifecycle.Requirement
	)

	if cfg.Uuidable.Enabled {
		gen, err := uuidable.GeneratorFor(cfg.Uuidable.Version)
		if err != nil {
			return nil, nil, err
		}
		plugins = append(plugins, uuidable.New(uuidable.WithGenerator(gen), uuidable.WithLogger(deps.Logger)))
		requirements = append(requirements, uuidable.Requirement)
	}

	if cfg.Sluggable.Enabled {
		opts := []sluggable.Option{
			sluggable.WithDelimiter(cfg.Sluggable.Delimiter),
			sluggable.WithMaxAttempts(cfg.Sluggable.MaxAttempts),
			sluggable.WithLogger(deps.Logger),
		}
		if cfg.Sluggable.Reservation.Enabled {
			if deps.Redis == nil {
				return nil, nil, errors.New(errors.ErrCodeInvalidArgument, "sluggable reservation requires a redis client")
			}
			opts = append(opts, sluggable.WithReserver(
				sluggable.NewReserver(deps.Redis, cfg.Sluggable.Reservation.Prefix, cfg.Sluggable.Reservation.TTL)))
		}
		plugins = append(plugins, sluggable.New(opts...))
		requirements = append(requirements, sluggable.Requirement)
	}

	if cfg.Blameable.Enabled {
		switch cfg.Blameable.Mode {
		case BlameModeReference:
			p := blameable.New[int64](deps.UserIDs, blameable.WithColumns[int64](blameable.ReferenceColumns))
			plugins = append(plugins, p)
			requirements = append(requirements, p.Requirement)
		default:
			p := blameable.New[string](deps.Users)
			plugins = append(plugins, p)
			requirements = append(requirements, p.Requirement)
		}
	}

	if cfg.Loggable.Enabled {
		sinks, err := buildSinks(cfg.Loggable, deps)
		if err != nil {
			return nil, nil, err
		}
		opts := []loggable.Option{loggable.WithSink(sinks...), loggable.WithLogger(deps.Logger)}
		if cfg.Loggable.Strict {
			opts = append(opts, loggable.WithStrict())
		}
		plugins = append(plugins, loggable.New(opts...))
	}

	if cfg.SoftDelete.Enabled {
		plugins = append(plugins, softdelete.New())
		requirements = append(requirements, softdelete.Requirement)
	}

	return plugins, requirements, nil
}

func buildSinks(cfg LoggableConfig, deps Deps) ([]loggable.Sink, error) {
	names := cfg.Sinks
	if len(names) == 0 {
		names = []string{SinkLog}
	}

	sinks := make([]loggable.Sink, 0, len(names))
	for _, name := range names {
		switch name {
		case SinkKafka:
			if deps.Producer == nil {
				return nil, errors.New(errors.ErrCodeInvalidArgument, "loggable kafka sink requires an mq producer")
			}
			if cfg.Topic == "" {
				return nil, errors.New(errors.ErrCodeInvalidArgument, "loggable kafka sink requires a topic")
			}
			var opts []loggable.MQSinkOption
			if cfg.Async {
				opts = append(opts, loggable.Async(deps.Logger))
			}
			sinks = append(sinks, loggable.NewMQSink(deps.Producer, cfg.Topic, opts...))
		default:
			sinks = append(sinks, loggable.NewZapSink(deps.Logger))
		}
	}
	return sinks, nil
}
