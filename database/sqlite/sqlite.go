package sqlite

import (
	"github.com/aisgo/gorm-behaviors/database"
	"github.com/aisgo/gorm-behaviors/logger"

	"go.uber.org/fx"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

/* ========================================================================
 * SQLite - 嵌入式数据库连接
 * ========================================================================
 * 职责: 提供 SQLite 连接，主要用于本地开发与测试
 * 技术: gorm.io/driver/sqlite
 * ======================================================================== */

// Config SQLite 配置
type Config struct {
	DSN string `yaml:"dsn" mapstructure:"dsn"` // 文件路径或 file: URI，默认内存库

	database.PoolConfig `yaml:",inline" mapstructure:",squash"`
}

// Params SQLite 依赖
type Params struct {
	fx.In

	Lc     fx.Lifecycle `optional:"true"`
	Config Config
	Logger *logger.Logger
}

// Module SQLite 模块
// 提供: *gorm.DB
var Module = fx.Module("sqlite",
	fx.Provide(NewDB),
)

// NewDB 初始化 SQLite 连接
func NewDB(p Params) (*gorm.DB, error) {
	dsn := p.Config.DSN
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}

	db, err := database.Open(sqlite.Open(dsn), p.Config.PoolConfig, p.Logger)
	if err != nil {
		return nil, err
	}
	database.BindLifecycle(p.Lc, db, p.Logger, "sqlite")
	return db, nil
}
