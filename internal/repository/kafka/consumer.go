package kafka

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

type Handler func(ctx context.Context, key, value []byte) error

type Consumer struct {
	reader *kafka.Reader
	log    *zap.Logger
	cfg    *ConsumerConfig
}

type ConsumerConfig struct {
	Brokers       []string
	GroupID       string
	Topic         string
	Partitions    int
	FromBeginning bool
	Logger        *zap.Logger
}

func NewConsumer(cfg *ConsumerConfig) *Consumer {
	if cfg.Logger == nil {
		cfg.Logger = zap.L()
	}

	start := kafka.LastOffset
	if cfg.FromBeginning {
		start = kafka.FirstOffset
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:               cfg.Brokers,
		GroupID:               cfg.GroupID,
		Topic:                 cfg.Topic,
		StartOffset:           start,
		WatchPartitionChanges: true,

		MinBytes:          1e3,
		MaxBytes:          10e6,
		SessionTimeout:    10 * time.Second,
		RebalanceTimeout:  15 * time.Second,
		HeartbeatInterval: 3 * time.Second,
	})

	log := cfg.Logger.With(
		zap.String("component", "kafka.consumer"),
		zap.String("topic", cfg.Topic),
		zap.String("group", cfg.GroupID),
	)

	return &Consumer{reader: r, log: log, cfg: cfg}
}

func (c *Consumer) WithLogger(l *zap.Logger) *Consumer {
	if l == nil {
		return c
	}
	cp := *c
	cp.log = l.With(
		zap.String("component", "kafka.consumer"),
		zap.String("topic", c.cfg.Topic),
		zap.String("group", c.cfg.GroupID),
	)
	return &cp
}

// Consume handles messages one at a time and commits each after its handler succeeds.
func (c *Consumer) Consume(ctx context.Context, h Handler) error {
	return c.loop(ctx, func(ctx context.Context, msg kafka.Message) error {
		c.handle(ctx, h, msg)
		return nil
	})
}

// ConsumeParallel runs up to workers handlers at once. Offsets are committed
// as handlers finish, so a crash can skip messages still in flight.
func (c *Consumer) ConsumeParallel(ctx context.Context, h Handler, workers int) error {
	if workers <= 1 {
		return c.Consume(ctx, h)
	}
	sem := semaphore.NewWeighted(int64(workers))
	defer func() {
		// drain in-flight handlers before returning
		_ = sem.Acquire(context.Background(), int64(workers))
	}()

	return c.loop(ctx, func(ctx context.Context, msg kafka.Message) error {
		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
		go func() {
			defer sem.Release(1)
			c.handle(ctx, h, msg)
		}()
		return nil
	})
}

func (c *Consumer) loop(ctx context.Context, dispatch func(context.Context, kafka.Message) error) error {
	log := c.log
	log.Info("consumer started")

	backoff := 200 * time.Millisecond
	const maxBackoff = 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			log.Info("consumer stopped (ctx canceled)")
			return ctx.Err()
		default:
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("consumer stopped (ctx canceled)")
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				log.Debug("fetch EOF; retry", zap.Duration("backoff", backoff))
			} else {
				log.Warn("fetch failed; retry", zap.Error(err), zap.Duration("backoff", backoff))
			}
			time.Sleep(backoff)
			if backoff < maxBackoff {
				backoff *= 2
			}
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		backoff = 200 * time.Millisecond

		if err := dispatch(ctx, msg); err != nil {
			if ctx.Err() != nil {
				log.Info("consumer stopped (ctx canceled)")
				return ctx.Err()
			}
			return err
		}
	}
}

func (c *Consumer) handle(ctx context.Context, h Handler, msg kafka.Message) {
	log := c.log

	parent := extractTrace(ctx, msg)
	msgCtx, span := otel.Tracer("kafka.consumer").Start(parent, "kafka.consume "+c.cfg.Topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(c.cfg.Topic),
		),
	)
	defer span.End()

	if err := h(msgCtx, msg.Key, msg.Value); err != nil {
		span.RecordError(err)
		log.Error("handler error", zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset), zap.Error(err))
		return
	}

	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		if ctx.Err() != nil {
			log.Info("commit interrupted by context cancel")
			return
		}
		log.Warn("commit failed; will retry later", zap.Error(err))
	}
}

func (c *Consumer) Close() error { return c.reader.Close() }
