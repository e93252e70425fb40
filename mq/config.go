package mq

import "time"

/* ========================================================================
 * MQ 配置
 * ========================================================================
 * 职责: Kafka 连接、认证与生产者参数
 * ======================================================================== */

// Config Kafka 配置
type Config struct {
	Brokers []string `yaml:"brokers" mapstructure:"brokers" validate:"required,min=1"`
	Version string   `yaml:"version" mapstructure:"version"` // Kafka 版本

	// SASL 认证
	SASL SASLConfig `yaml:"sasl" mapstructure:"sasl"`

	// TLS 配置
	TLS TLSConfig `yaml:"tls" mapstructure:"tls"`

	Producer ProducerConfig `yaml:"producer" mapstructure:"producer"`
}

// SASLConfig SASL 认证配置
type SASLConfig struct {
	Enable    bool   `yaml:"enable" mapstructure:"enable"`
	Mechanism string `yaml:"mechanism" mapstructure:"mechanism"` // PLAIN / SCRAM-SHA-256 / SCRAM-SHA-512
	Username  string `yaml:"username" mapstructure:"username"`
	Password  string `yaml:"password" mapstructure:"password"`
}

// TLSConfig TLS 配置
type TLSConfig struct {
	Enable   bool   `yaml:"enable" mapstructure:"enable"`
	CertFile string `yaml:"cert_file" mapstructure:"cert_file"`
	KeyFile  string `yaml:"key_file" mapstructure:"key_file"`
	CAFile   string `yaml:"ca_file" mapstructure:"ca_file"`
	Insecure bool   `yaml:"insecure" mapstructure:"insecure"` // 跳过证书验证
}

// ProducerConfig 生产者配置
type ProducerConfig struct {
	RequiredAcks    string        `yaml:"required_acks" mapstructure:"required_acks"` // none / leader / all
	Timeout         time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxMessageBytes int           `yaml:"max_message_bytes" mapstructure:"max_message_bytes"`
	Compression     string        `yaml:"compression" mapstructure:"compression"` // none / gzip / snappy / lz4 / zstd
	Idempotent      bool          `yaml:"idempotent" mapstructure:"idempotent"`
	RetryMax        int           `yaml:"retry_max" mapstructure:"retry_max"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Brokers: []string{"127.0.0.1:9092"},
		Version: "2.8.0",
		Producer: ProducerConfig{
			RequiredAcks:    "leader",
			Timeout:         10 * time.Second,
			MaxMessageBytes: 1024 * 1024,
			Compression:     "none",
			RetryMax:        3,
		},
	}
}
