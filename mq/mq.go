package mq

import (
	"context"
)

/* ========================================================================
 * MQ 抽象接口
 * ========================================================================
 * 职责: 定义与具体消息队列无关的生产者接口
 * 实现: mq/kafka
 * ======================================================================== */

// Producer 消息生产者接口
type Producer interface {
	// SendSync 同步发送消息
	SendSync(ctx context.Context, msg *Message) (*SendResult, error)

	// SendAsync 异步发送消息，结果通过 callback 返回
	SendAsync(ctx context.Context, msg *Message, callback SendCallback) error

	// Close 关闭生产者
	Close() error
}

// Message 消息结构（MQ 无关）
type Message struct {
	Topic   string            // 主题
	Body    []byte            // 消息体
	Key     string            // 消息键（用于分区/顺序）
	Headers map[string]string // 自定义头
}

// NewMessage 创建消息
func NewMessage(topic string, body []byte) *Message {
	return &Message{
		Topic:   topic,
		Body:    body,
		Headers: make(map[string]string),
	}
}

// WithKey 设置消息键
func (m *Message) WithKey(key string) *Message {
	m.Key = key
	return m
}

// WithHeader 设置消息头
func (m *Message) WithHeader(key, value string) *Message {
	if m.Headers == nil {
		m.Headers = make(map[string]string)
	}
	m.Headers[key] = value
	return m
}

// SendResult 发送结果
type SendResult struct {
	MsgID     string // 消息 ID
	Topic     string // 主题
	Partition int32  // 分区
	Offset    int64  // 偏移量
}

// SendCallback 异步发送回调
type SendCallback func(result *SendResult, err error)
