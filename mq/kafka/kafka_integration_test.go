//go:build integration

package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aisgo/gorm-behaviors/mq"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"go.uber.org/zap"
)

func TestKafkaProducerIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skip integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()

	container, err := kafka.Run(ctx, "confluentinc/cp-kafka:7.5.0", kafka.WithClusterID("behaviors-test"))
	if err != nil {
		t.Fatalf("start kafka container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	brokers, err := container.Brokers(ctx)
	if err != nil {
		t.Fatalf("brokers: %v", err)
	}

	cfg := mq.DefaultConfig()
	cfg.Brokers = brokers

	saramaCfg, err := buildSaramaConfig(cfg)
	if err != nil {
		t.Fatalf("sarama config: %v", err)
	}
	admin, err := sarama.NewClusterAdmin(brokers, saramaCfg)
	if err != nil {
		t.Fatalf("new cluster admin: %v", err)
	}
	defer admin.Close()

	topic := "topic-" + uuid.NewString()
	err = admin.CreateTopic(topic, &sarama.TopicDetail{NumPartitions: 1, ReplicationFactor: 1}, false)
	if err != nil && !errors.Is(err, sarama.ErrTopicAlreadyExists) {
		t.Fatalf("create topic: %v", err)
	}

	producer, err := NewProducer(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("new producer: %v", err)
	}
	t.Cleanup(func() {
		_ = producer.Close()
	})

	result, err := producer.SendSync(ctx, mq.NewMessage(topic, []byte("hello")).WithHeader("action", "create"))
	if err != nil {
		t.Fatalf("send sync: %v", err)
	}

	consumer, err := sarama.NewConsumer(brokers, saramaCfg)
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	defer consumer.Close()

	pc, err := consumer.ConsumePartition(topic, result.Partition, result.Offset)
	if err != nil {
		t.Fatalf("consume partition: %v", err)
	}
	defer pc.Close()

	select {
	case msg := <-pc.Messages():
		if string(msg.Value) != "hello" {
			t.Fatalf("unexpected payload: %s", msg.Value)
		}
		if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != "create" {
			t.Fatalf("unexpected headers: %v", msg.Headers)
		}
	case <-time.After(15 * time.Second):
		t.Fatalf("timeout waiting for message")
	}
}
