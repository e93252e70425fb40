package kafka

import (
	"context"

	"github.com/aisgo/gorm-behaviors/logger"
	"github.com/aisgo/gorm-behaviors/mq"

	"go.uber.org/fx"
)

// Module Kafka 生产者模块
// 需要: *mq.Config, *logger.Logger
// 提供: mq.Producer
var Module = fx.Module("kafka",
	fx.Provide(ProvideProducer),
)

// ProducerParams Producer 依赖参数
type ProducerParams struct {
	fx.In

	Lc     fx.Lifecycle
	Config *mq.Config
	Logger *logger.Logger
}

// ProvideProducer 提供 mq.Producer，应用停止时关闭
func ProvideProducer(p ProducerParams) (mq.Producer, error) {
	producer, err := NewProducer(p.Config, p.Logger.Logger)
	if err != nil {
		return nil, err
	}
	p.Lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return producer.Close()
		},
	})
	return producer, nil
}
