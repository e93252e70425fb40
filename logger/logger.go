package logger

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

/* ========================================================================
 * Logger - 统一日志组件
 * ========================================================================
 * 职责: 提供结构化日志能力，支持 JSON / Console 格式
 * 技术: Uber Zap + lumberjack 文件滚动
 * ======================================================================== */

// Config Logger 配置
type Config struct {
	Level      string `yaml:"level" mapstructure:"level"`             // debug, info, warn, error
	Format     string `yaml:"format" mapstructure:"format"`           // json, console
	Output     string `yaml:"output" mapstructure:"output"`           // stdout, stderr, 或文件路径
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"` // 单文件最大尺寸
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"` // 保留的旧文件数
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

// Logger 封装 Zap Logger
type Logger struct {
	*zap.Logger
}

type actorKey struct{}

// ValidateConfig 校验日志配置
func ValidateConfig(cfg Config) error {
	if cfg.Level != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}
	switch strings.ToLower(cfg.Format) {
	case "", "json", "console":
	default:
		return fmt.Errorf("invalid log format %q", cfg.Format)
	}
	return nil
}

// NewLogger 初始化 Logger
func NewLogger(cfg Config) *Logger {
	// 解析日志级别，非法值回退到 info
	level := zap.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			level = zap.InfoLevel
		}
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, newWriter(cfg), level)

	logger := zap.New(core, zap.AddCaller())
	return &Logger{Logger: logger}
}

// NewNop 返回不输出任何内容的 Logger（测试 / 默认值）
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

func newWriter(cfg Config) zapcore.WriteSyncer {
	switch cfg.Output {
	case "", "stdout":
		return zapcore.AddSync(os.Stdout)
	case "stderr":
		return zapcore.AddSync(os.Stderr)
	}

	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 100
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.Output,
		MaxSize:    maxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	})
}

// ContextWithActor 将当前操作人写入 Context，WithContext 会将其附加到日志字段
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// WithContext 从 Context 提取操作人并注入 Logger
func (l *Logger) WithContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return l.Logger
	}
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return l.Logger.With(zap.String("actor", actor))
	}
	return l.Logger
}
