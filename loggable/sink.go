package loggable

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aisgo/gorm-behaviors/logger"
	"github.com/aisgo/gorm-behaviors/mq"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Sink 变更日志输出端
type Sink interface {
	Write(ctx context.Context, rec Record) error
}

// ZapSink 写入结构化日志，Context 中的操作人会附加为 actor 字段
type ZapSink struct {
	log   *logger.Logger
	level zapcore.Level
}

// NewZapSink 创建日志输出端，默认 INFO 级别
func NewZapSink(log *logger.Logger) *ZapSink {
	if log == nil {
		log = logger.NewNop()
	}
	return &ZapSink{log: log, level: zapcore.InfoLevel}
}

// WithLevel 设置日志级别
func (s *ZapSink) WithLevel(level zapcore.Level) *ZapSink {
	s.level = level
	return s
}

// Write 实现 Sink
func (s *ZapSink) Write(ctx context.Context, rec Record) error {
	fields := []zap.Field{
		zap.String("action", string(rec.Action)),
		zap.String("table", rec.Table),
	}
	if len(rec.PrimaryKey) > 0 {
		fields = append(fields, zap.Any("primary_key", rec.PrimaryKey))
	}
	if len(rec.Changes) > 0 {
		fields = append(fields, zap.Any("changes", rec.Changes))
	}
	if ce := s.log.WithContext(ctx).Check(s.level, rec.Message); ce != nil {
		ce.Write(fields...)
	}
	return nil
}

// MQSink 将记录编码为 JSON 发送到消息队列
// 消息键为表名，同一张表的记录落在同一分区
type MQSink struct {
	producer mq.Producer
	topic    string
	async    bool
	log      *logger.Logger
}

// MQSinkOption MQSink 选项
type MQSinkOption func(*MQSink)

// Async 异步发送，发送失败只记录日志
func Async(log *logger.Logger) MQSinkOption {
	return func(s *MQSink) {
		s.async = true
		if log != nil {
			s.log = log
		}
	}
}

// NewMQSink 创建消息队列输出端
func NewMQSink(producer mq.Producer, topic string, opts ...MQSinkOption) *MQSink {
	s := &MQSink{producer: producer, topic: topic, log: logger.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Write 实现 Sink
func (s *MQSink) Write(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode log record: %w", err)
	}
	msg := mq.NewMessage(s.topic, body).
		WithKey(rec.Table).
		WithHeader("action", string(rec.Action))

	if !s.async {
		_, err = s.producer.SendSync(ctx, msg)
		return err
	}
	return s.producer.SendAsync(ctx, msg, func(_ *mq.SendResult, err error) {
		if err != nil {
			s.log.Error("send log record failed",
				zap.String("topic", s.topic),
				zap.String("table", rec.Table),
				zap.Error(err))
		}
	})
}

// MultiSink 依次写入多个输出端，返回第一个错误
type MultiSink []Sink

// Write 实现 Sink
func (m MultiSink) Write(ctx context.Context, rec Record) error {
	var first error
	for _, s := range m {
		if err := s.Write(ctx, rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}
