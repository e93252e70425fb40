package mysql

import (
	"fmt"

	"github.com/aisgo/gorm-behaviors/database"
	"github.com/aisgo/gorm-behaviors/logger"

	"go.uber.org/fx"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

/* ========================================================================
 * MySQL - 关系型数据库连接
 * ========================================================================
 * 职责: 提供 MySQL 连接池、GORM 集成
 * 技术: gorm.io/driver/mysql
 * ======================================================================== */

// Config MySQL 配置
type Config struct {
	DSN       string `yaml:"dsn" mapstructure:"dsn"` // 非空时忽略下方连接字段
	Host      string `yaml:"host" mapstructure:"host"`
	Port      int    `yaml:"port" mapstructure:"port"`
	User      string `yaml:"user" mapstructure:"user"`
	Password  string `yaml:"password" mapstructure:"password"`
	DBName    string `yaml:"dbname" mapstructure:"dbname"`
	Charset   string `yaml:"charset" mapstructure:"charset"` // 字符集，默认 utf8mb4
	Loc       string `yaml:"loc" mapstructure:"loc"`         // 时区，默认 Local

	database.PoolConfig `yaml:",inline" mapstructure:",squash"`
}

// Params MySQL 依赖
type Params struct {
	fx.In

	Lc     fx.Lifecycle `optional:"true"`
	Config Config
	Logger *logger.Logger
}

// Module MySQL 模块
// 提供: *gorm.DB
var Module = fx.Module("mysql",
	fx.Provide(NewDB),
)

// BuildDSN 根据配置拼装连接串
// parseTime 始终开启，时间列需要扫描为 time.Time
func (c Config) BuildDSN() string {
	if c.DSN != "" {
		return c.DSN
	}

	charset := c.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	loc := c.Loc
	if loc == "" {
		loc = "Local"
	}

	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=true&loc=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, charset, loc)
}

// NewDB 初始化 MySQL 连接
func NewDB(p Params) (*gorm.DB, error) {
	db, err := database.Open(mysql.Open(p.Config.BuildDSN()), p.Config.PoolConfig, p.Logger)
	if err != nil {
		return nil, err
	}
	database.BindLifecycle(p.Lc, db, p.Logger, "mysql")
	return db, nil
}
