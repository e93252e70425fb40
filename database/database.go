package database

import (
	"context"
	"time"

	"github.com/aisgo/gorm-behaviors/logger"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

/* ========================================================================
 * Database - GORM 连接公共逻辑
 * ========================================================================
 * 职责: 统一 GORM 初始化、连接池默认值与生命周期管理
 * 使用: mysql / postgres / sqlite 子包构造 Dialector 后调用 Open
 * ======================================================================== */

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`         // 最大空闲连接数
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`         // 最大打开连接数
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`   // 连接最大生命周期
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"` // 空闲连接最大时间
}

// withDefaults 应用连接池默认值
func (p PoolConfig) withDefaults() PoolConfig {
	if p.MaxIdleConns <= 0 {
		p.MaxIdleConns = 10
	}
	if p.MaxOpenConns <= 0 {
		p.MaxOpenConns = 25
	}
	if p.ConnMaxLifetime <= 0 {
		p.ConnMaxLifetime = time.Hour
	}
	if p.ConnMaxIdleTime <= 0 {
		p.ConnMaxIdleTime = 20 * time.Minute
	}
	return p
}

// Open 使用给定 Dialector 打开 GORM 连接
// 日志统一走 ZapGormLogger，时间统一使用本地时区
func Open(dialector gorm.Dialector, pool PoolConfig, log *logger.Logger) (*gorm.DB, error) {
	if log == nil {
		log = logger.NewNop()
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewZapGormLogger(log.Logger),
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	pool = pool.withDefaults()
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	return db, nil
}

// BindLifecycle 在 fx 生命周期结束时关闭连接池
func BindLifecycle(lc fx.Lifecycle, db *gorm.DB, log *logger.Logger, name string) {
	if lc == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			log.Info("Closing database connection", zap.String("driver", name))
			return sqlDB.Close()
		},
	})
}
