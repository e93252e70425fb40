package kafka

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aisgo/gorm-behaviors/mq"

	"github.com/IBM/sarama"
	"github.com/xdg-go/scram"
	"go.uber.org/zap"
)

/* ========================================================================
 * Kafka Producer - Kafka 消息生产者
 * ========================================================================
 * 职责: 实现 mq.Producer 接口
 * 技术: IBM/sarama
 * ======================================================================== */

// Producer Kafka 生产者
type Producer struct {
	syncProducer  sarama.SyncProducer
	asyncProducer sarama.AsyncProducer
	logger        *zap.Logger
	wg            sync.WaitGroup
	closed        bool
	mu            sync.RWMutex
}

// NewProducer 根据配置连接 Kafka
func NewProducer(cfg *mq.Config, logger *zap.Logger) (*Producer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("kafka config is required")
	}

	saramaCfg, err := buildSaramaConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build sarama config: %w", err)
	}

	syncProducer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka sync producer: %w", err)
	}

	asyncProducer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		_ = syncProducer.Close()
		return nil, fmt.Errorf("failed to create kafka async producer: %w", err)
	}

	p := NewProducerFromClients(syncProducer, asyncProducer, logger)
	p.logger.Info("Kafka producer started", zap.Strings("brokers", cfg.Brokers))
	return p, nil
}

// NewProducerFromClients 使用已创建的 sarama 生产者
// asyncProducer 可以为 nil，此时 SendAsync 退化为同步发送
func NewProducerFromClients(syncProducer sarama.SyncProducer, asyncProducer sarama.AsyncProducer, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Producer{
		syncProducer:  syncProducer,
		asyncProducer: asyncProducer,
		logger:        logger,
	}
	if asyncProducer != nil {
		p.wg.Add(2)
		go p.handleErrors()
		go p.handleSuccesses()
	}
	return p
}

// handleErrors 处理异步发送错误，channel 在 asyncProducer.Close 后关闭
func (p *Producer) handleErrors() {
	defer p.wg.Done()
	for err := range p.asyncProducer.Errors() {
		if cb, ok := err.Msg.Metadata.(mq.SendCallback); ok && cb != nil {
			cb(nil, err.Err)
			continue
		}
		p.logger.Error("async producer error",
			zap.String("topic", err.Msg.Topic),
			zap.Error(err.Err),
		)
	}
}

// handleSuccesses 处理异步发送结果
func (p *Producer) handleSuccesses() {
	defer p.wg.Done()
	for msg := range p.asyncProducer.Successes() {
		if cb, ok := msg.Metadata.(mq.SendCallback); ok && cb != nil {
			cb(resultOf(msg.Topic, msg.Partition, msg.Offset), nil)
		}
	}
}

func resultOf(topic string, partition int32, offset int64) *mq.SendResult {
	return &mq.SendResult{
		MsgID:     fmt.Sprintf("%s-%d-%d", topic, partition, offset),
		Topic:     topic,
		Partition: partition,
		Offset:    offset,
	}
}

func (p *Producer) isClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// SendSync 同步发送消息
func (p *Producer) SendSync(ctx context.Context, msg *mq.Message) (*mq.SendResult, error) {
	if p.isClosed() {
		return nil, fmt.Errorf("producer is closed")
	}

	partition, offset, err := p.syncProducer.SendMessage(toProducerMessage(msg))
	if err != nil {
		p.logger.Error("failed to send message",
			zap.String("topic", msg.Topic),
			zap.Error(err),
		)
		return nil, err
	}

	p.logger.Debug("message sent",
		zap.String("topic", msg.Topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return resultOf(msg.Topic, partition, offset), nil
}

// SendAsync 异步发送消息
// 回调通过 Successes() / Errors() channel 上的 ProducerMessage.Metadata 关联
func (p *Producer) SendAsync(ctx context.Context, msg *mq.Message, callback mq.SendCallback) error {
	if p.isClosed() {
		return fmt.Errorf("producer is closed")
	}

	if p.asyncProducer == nil {
		result, err := p.SendSync(ctx, msg)
		if callback != nil {
			callback(result, err)
		}
		return nil
	}

	kafkaMsg := toProducerMessage(msg)
	kafkaMsg.Metadata = callback

	select {
	case p.asyncProducer.Input() <- kafkaMsg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 关闭生产者
func (p *Producer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	var errs []error
	if p.asyncProducer != nil {
		if err := p.asyncProducer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("async producer close error: %w", err))
		}
	}
	if err := p.syncProducer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("sync producer close error: %w", err))
	}
	p.wg.Wait()

	if len(errs) > 0 {
		p.logger.Error("failed to close producer", zap.Errors("errors", errs))
		return errs[0]
	}
	p.logger.Info("Kafka producer closed")
	return nil
}

// =============================================================================
// 辅助函数
// =============================================================================

func buildSaramaConfig(cfg *mq.Config) (*sarama.Config, error) {
	saramaCfg := sarama.NewConfig()

	if cfg.Version != "" {
		version, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			return nil, fmt.Errorf("invalid kafka version: %w", err)
		}
		saramaCfg.Version = version
	}

	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.Return.Errors = true
	saramaCfg.Producer.Retry.Max = cfg.Producer.RetryMax
	if cfg.Producer.Timeout > 0 {
		saramaCfg.Producer.Timeout = cfg.Producer.Timeout
	}

	switch cfg.Producer.RequiredAcks {
	case "none":
		saramaCfg.Producer.RequiredAcks = sarama.NoResponse
	case "all":
		saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	default:
		saramaCfg.Producer.RequiredAcks = sarama.WaitForLocal
	}

	switch cfg.Producer.Compression {
	case "gzip":
		saramaCfg.Producer.Compression = sarama.CompressionGZIP
	case "snappy":
		saramaCfg.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		saramaCfg.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		saramaCfg.Producer.Compression = sarama.CompressionZSTD
	default:
		saramaCfg.Producer.Compression = sarama.CompressionNone
	}

	// 幂等生产要求 acks=all 且单连接单请求
	saramaCfg.Producer.Idempotent = cfg.Producer.Idempotent
	if cfg.Producer.Idempotent {
		saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
		saramaCfg.Net.MaxOpenRequests = 1
	}

	if cfg.Producer.MaxMessageBytes > 0 {
		saramaCfg.Producer.MaxMessageBytes = cfg.Producer.MaxMessageBytes
	}

	if cfg.SASL.Enable {
		saramaCfg.Net.SASL.Enable = true
		saramaCfg.Net.SASL.User = cfg.SASL.Username
		saramaCfg.Net.SASL.Password = cfg.SASL.Password

		switch cfg.SASL.Mechanism {
		case sarama.SASLTypeSCRAMSHA256:
			saramaCfg.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &XDGSCRAMClient{HashGeneratorFcn: scram.SHA256}
			}
			saramaCfg.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
		case sarama.SASLTypeSCRAMSHA512:
			saramaCfg.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &XDGSCRAMClient{HashGeneratorFcn: scram.SHA512}
			}
			saramaCfg.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
		default:
			saramaCfg.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		}
	}

	if cfg.TLS.Enable {
		tlsConfig, err := buildTLSConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to build TLS config: %w", err)
		}
		saramaCfg.Net.TLS.Enable = true
		saramaCfg.Net.TLS.Config = tlsConfig
	}

	return saramaCfg, nil
}

func buildTLSConfig(cfg mq.TLSConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.Insecure,
	}

	if cfg.CAFile != "" {
		caCert, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		caCertPool := x509.NewCertPool()
		caCertPool.AppendCertsFromPEM(caCert)
		tlsConfig.RootCAs = caCertPool
	}

	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load cert/key pair: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

func toProducerMessage(msg *mq.Message) *sarama.ProducerMessage {
	kafkaMsg := &sarama.ProducerMessage{
		Topic:     msg.Topic,
		Value:     sarama.ByteEncoder(msg.Body),
		Timestamp: time.Now(),
	}
	if msg.Key != "" {
		kafkaMsg.Key = sarama.StringEncoder(msg.Key)
	}
	for k, v := range msg.Headers {
		kafkaMsg.Headers = append(kafkaMsg.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}
	return kafkaMsg
}
