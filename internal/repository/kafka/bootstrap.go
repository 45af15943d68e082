package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"
)

func BootstrapConsumer(ctx context.Context, cfg *ConsumerConfig, logger *zap.Logger) *Consumer {
	if err := EnsureTopic(ctx, cfg.Brokers, TopicSpec{
		Name:              cfg.Topic,
		NumPartitions:     cfg.Partitions,
		ReplicationFactor: 1,
		MaxWait:           5 * time.Second,
	}, logger); err != nil {
		logger.Warn("ensure topic", zap.String("topic", cfg.Topic), zap.Error(err))
	}

	return NewConsumer(cfg)
}

func BootstrapProducer(ctx context.Context, brokers []string, topic string, partitions int, logger *zap.Logger) *Producer {
	if err := EnsureTopic(ctx, brokers, TopicSpec{
		Name:              topic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
		MaxWait:           5 * time.Second,
	}, logger); err != nil {
		logger.Warn("ensure topic", zap.String("topic", topic), zap.Error(err))
	}

	return NewProducer(brokers, topic).WithLogger(logger)
}

// Ping dials the first broker; used by health checks.
func Ping(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return errNoBrokers
	}
	conn, err := kafkaDial(ctx, brokers[0])
	if err != nil {
		return err
	}
	return conn.Close()
}
