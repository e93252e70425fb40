package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aisgo/gorm-behaviors/errors"
	"github.com/aisgo/gorm-behaviors/metrics"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

/* ========================================================================
 * ZapGormLogger - GORM 日志适配
 * ========================================================================
 * 职责: 将 GORM 日志输出到 Zap，并记录 SQL 耗时指标
 * ======================================================================== */

// DefaultSlowThreshold 慢查询阈值
const DefaultSlowThreshold = 200 * time.Millisecond

// ZapGormLogger 实现 gorm/logger.Interface
type ZapGormLogger struct {
	log                       *zap.Logger
	level                     gormlogger.LogLevel
	slowThreshold             time.Duration
	ignoreRecordNotFoundError bool
}

// NewZapGormLogger 创建 GORM 日志适配器
func NewZapGormLogger(log *zap.Logger) *ZapGormLogger {
	if log == nil {
		log = zap.NewNop()
	}
	return &ZapGormLogger{
		log:                       log.WithOptions(zap.AddCallerSkip(3)),
		level:                     gormlogger.Warn,
		slowThreshold:             DefaultSlowThreshold,
		ignoreRecordNotFoundError: true,
	}
}

// WithSlowThreshold 设置慢查询阈值
func (l *ZapGormLogger) WithSlowThreshold(d time.Duration) *ZapGormLogger {
	n := *l
	n.slowThreshold = d
	return &n
}

// LogMode 实现 gormlogger.Interface
func (l *ZapGormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	n := *l
	n.level = level
	return &n
}

// Info 实现 gormlogger.Interface
func (l *ZapGormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Info {
		l.log.Info(fmt.Sprintf(msg, data...))
	}
}

// Warn 实现 gormlogger.Interface
func (l *ZapGormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.log.Warn(fmt.Sprintf(msg, data...))
	}
}

// Error 实现 gormlogger.Interface
func (l *ZapGormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Error {
		l.log.Error(fmt.Sprintf(msg, data...))
	}
}

// Trace 实现 gormlogger.Interface
func (l *ZapGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()
	metrics.DBQueryDuration.WithLabelValues(operationOf(sql)).Observe(elapsed.Seconds())

	if l.level <= gormlogger.Silent {
		return
	}

	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}

	switch {
	case err != nil && l.level >= gormlogger.Error && !(l.ignoreRecordNotFoundError && errors.Is(err, gorm.ErrRecordNotFound)):
		l.log.Error("gorm query failed", append(fields, zap.Error(err))...)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		l.log.Warn("gorm slow query", append(fields, zap.Duration("threshold", l.slowThreshold))...)
	case l.level >= gormlogger.Info:
		l.log.Debug("gorm query", fields...)
	}
}

// operationOf 提取 SQL 的首个关键字作为指标标签
func operationOf(sql string) string {
	sql = strings.TrimSpace(sql)
	if idx := strings.IndexAny(sql, " \n\t"); idx > 0 {
		sql = sql[:idx]
	}
	if sql == "" {
		return "unknown"
	}
	return strings.ToLower(sql)
}
