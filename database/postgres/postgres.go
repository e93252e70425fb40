package postgres

import (
	"fmt"
	"net/url"

	"github.com/aisgo/gorm-behaviors/database"
	"github.com/aisgo/gorm-behaviors/logger"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

/* ========================================================================
 * PostgreSQL - 关系型数据库连接
 * ========================================================================
 * 职责: 提供 PostgreSQL 连接池、GORM 集成
 * 技术: gorm.io/driver/postgres
 * ======================================================================== */

// Config PostgreSQL 配置
type Config struct {
	DSN      string `yaml:"dsn" mapstructure:"dsn"` // URL 形式连接串，非空时忽略下方连接字段
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	DBName   string `yaml:"dbname" mapstructure:"dbname"`
	SSLMode  string `yaml:"sslmode" mapstructure:"sslmode"`
	Schema   string `yaml:"schema" mapstructure:"schema"` // 数据库 schema，默认 public

	database.PoolConfig `yaml:",inline" mapstructure:",squash"`
}

// Params PostgreSQL 依赖
type Params struct {
	fx.In

	Lc     fx.Lifecycle `optional:"true"`
	Config Config
	Logger *logger.Logger
}

// Module PostgreSQL 模块
// 提供: *gorm.DB
var Module = fx.Module("postgres",
	fx.Provide(NewDB),
)

// BuildDSN 根据配置拼装连接串
func (c Config) BuildDSN() string {
	if c.DSN != "" {
		return c.DSN
	}

	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, sslMode)

	// 如果配置了 schema，添加到 DSN
	if c.Schema != "" {
		dsn = fmt.Sprintf("%s search_path=%s", dsn, c.Schema)
	}
	return dsn
}

// NewDB 初始化 Postgres 连接
func NewDB(p Params) (*gorm.DB, error) {
	dsn := p.Config.BuildDSN()

	db, err := database.Open(postgres.New(postgres.Config{DSN: dsn}), p.Config.PoolConfig, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("open postgres %s: %w", sanitizeDSN(dsn), err)
	}
	if p.Logger != nil {
		p.Logger.Info("Postgres connected", zap.String("dsn", sanitizeDSN(dsn)))
	}
	database.BindLifecycle(p.Lc, db, p.Logger, "postgres")
	return db, nil
}

// sanitizeDSN 隐藏 URL 形式连接串中的密码
// 解析失败时原样返回
func sanitizeDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
