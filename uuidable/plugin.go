package uuidable

import (
	"github.com/aisgo/gorm-behaviors/errors"
	"github.com/aisgo/gorm-behaviors/lifecycle"
	"github.com/aisgo/gorm-behaviors/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Requirement uuid 列映射检查
var Requirement = lifecycle.NewRequirement(Name, lifecycle.ModelImplements[Uuidable], Column)

// Option 插件选项
type Option func(*Plugin)

// WithGenerator 指定 UUID 生成器
func WithGenerator(gen Generator) Option {
	return func(p *Plugin) {
		if gen != nil {
			p.generate = gen
		}
	}
}

// WithLogger 指定日志
func WithLogger(log *logger.Logger) Option {
	return func(p *Plugin) {
		if log != nil {
			p.log = log
		}
	}
}

// Plugin GORM 插件
type Plugin struct {
	generate Generator
	log      *logger.Logger
}

// New 创建插件，默认使用 v4
func New(opts ...Option) *Plugin {
	p := &Plugin{generate: V4, log: logger.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name 实现 gorm.Plugin
func (p *Plugin) Name() string { return Name }

// Initialize 实现 gorm.Plugin
func (p *Plugin) Initialize(db *gorm.DB) error {
	return lifecycle.Register(db, Name, lifecycle.Hook{
		Event: lifecycle.PrePersist,
		Match: lifecycle.ModelImplements[Uuidable],
		Fn:    p.prePersist,
	})
}

func (p *Plugin) prePersist(db *gorm.DB) {
	if err := Requirement.Check(db.Statement.Schema); err != nil {
		_ = db.AddError(err)
		return
	}

	for _, e := range lifecycle.Collect[Uuidable](db) {
		generated, err := GenerateUUID(e, p.generate)
		if err != nil {
			p.log.WithContext(db.Statement.Context).Error("generate uuid failed",
				zap.String("table", db.Statement.Schema.Table), zap.Error(err))
			_ = db.AddError(errors.Wrap(errors.ErrCodeIdentifier, "generate uuid", err))
			return
		}
		if generated {
			lifecycle.PropertyChanged(db, e, Column, nil, e.GetUUID())
		}
	}
}
