package behaviors

import (
	"time"

	"github.com/aisgo/gorm-behaviors/sluggable"
	"github.com/aisgo/gorm-behaviors/uuidable"
)

// Config 行为插件配置
//
//	behaviors:
//	  uuidable:   { enabled: true, version: v7 }
//	  sluggable:  { enabled: true, max_attempts: 100, reservation: { enabled: true, ttl: 30s } }
//	  blameable:  { enabled: true, mode: string }
//	  loggable:   { enabled: true, sinks: [log, kafka], topic: entity-log }
//	  softdelete: { enabled: true }
type Config struct {
	Uuidable   UuidableConfig   `yaml:"uuidable" mapstructure:"uuidable"`
	Sluggable  SluggableConfig  `yaml:"sluggable" mapstructure:"sluggable"`
	Blameable  BlameableConfig  `yaml:"blameable" mapstructure:"blameable"`
	Loggable   LoggableConfig   `yaml:"loggable" mapstructure:"loggable"`
	SoftDelete SoftDeleteConfig `yaml:"softdelete" mapstructure:"softdelete"`
}

// UuidableConfig uuidable 配置
type UuidableConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Version string `yaml:"version" mapstructure:"version" validate:"omitempty,oneof=v4 v7 ulid"`
}

// SluggableConfig sluggable 配置
type SluggableConfig struct {
	Enabled     bool              `yaml:"enabled" mapstructure:"enabled"`
	Delimiter   string            `yaml:"delimiter" mapstructure:"delimiter" validate:"omitempty,oneof=- _ ." error_msg:"oneof:delimiter must be one of - _ ."`
	MaxAttempts int               `yaml:"max_attempts" mapstructure:"max_attempts" validate:"gte=0"`
	Reservation ReservationConfig `yaml:"reservation" mapstructure:"reservation"`
}

// ReservationConfig 跨实例 slug 占位（Redis）
type ReservationConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Prefix  string        `yaml:"prefix" mapstructure:"prefix"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl" validate:"gte=0"`
}

// 审计列模式
const (
	BlameModeString    = "string"
	BlameModeReference = "reference"
)

// BlameableConfig blameable 配置
type BlameableConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Mode    string `yaml:"mode" mapstructure:"mode" validate:"omitempty,oneof=string reference"`
}

// 变更日志输出端
const (
	SinkLog   = "log"
	SinkKafka = "kafka"
)

// LoggableConfig loggable 配置
type LoggableConfig struct {
	Enabled bool     `yaml:"enabled" mapstructure:"enabled"`
	Sinks   []string `yaml:"sinks" mapstructure:"sinks" validate:"dive,oneof=log kafka"`
	Topic   string   `yaml:"topic" mapstructure:"topic"`
	Async   bool     `yaml:"async" mapstructure:"async"`
	Strict  bool     `yaml:"strict" mapstructure:"strict"`
}

// SoftDeleteConfig softdelete 配置
type SoftDeleteConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// DefaultConfig 全部启用，变更日志只写日志
func DefaultConfig() Config {
	return Config{
		Uuidable:  UuidableConfig{Enabled: true, Version: uuidable.VersionV4},
		Sluggable: SluggableConfig{Enabled: true, Delimiter: sluggable.DefaultDelimiter, MaxAttempts: sluggable.DefaultMaxAttempts},
		Blameable: BlameableConfig{Enabled: true, Mode: BlameModeString},
		Loggable: LoggableConfig{
			Enabled: true,
			Sinks:   []string{SinkLog},
			Topic:   "entity-log",
		},
		SoftDelete: SoftDeleteConfig{Enabled: true},
	}
}
