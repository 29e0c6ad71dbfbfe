// internal/pkg/mq/consumer.go
package mq

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/pkg/logger"
)

// MessageReader 是 kafka.Reader 的最小抽象。
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MessageHandler 处理一条已恢复追踪上下文的消息。
type MessageHandler func(ctx context.Context, msg kafka.Message) error

// Consumer 拉取消息、恢复追踪上下文、调用处理器、提交 offset。
// 处理失败只记录日志，offset 依旧提交，避免毒消息阻塞分区。
type Consumer struct {
	reader  MessageReader
	topic   string
	handler MessageHandler
	wg      sync.WaitGroup
}

// NewConsumer 创建消费者。
func NewConsumer(reader MessageReader, topic string, handler MessageHandler) *Consumer {
	return &Consumer{reader: reader, topic: topic, handler: handler}
}

// Start 在后台 goroutine 中消费，直到 ctx 被取消。
func (c *Consumer) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		logger.Ctx(ctx).Info().Str("topic", c.topic).Msg("Kafka consumer started")

		for {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					logger.Ctx(ctx).Info().Str("topic", c.topic).Msg("Kafka consumer shutting down")
					return
				}
				logger.Ctx(ctx).Error().Err(err).Str("topic", c.topic).Msg("Could not fetch message, retrying")
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}

			c.process(ctx, msg)

			if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				logger.Ctx(ctx).Error().Err(err).Msg("Failed to commit message")
			}
		}
	}()
}

// Stop 关闭 reader 并等待后台 goroutine 退出。调用方应先取消 Start 的 ctx。
func (c *Consumer) Stop() error {
	err := c.reader.Close()
	c.wg.Wait()
	return err
}

func (c *Consumer) process(parent context.Context, msg kafka.Message) {
	ctx := ExtractTraceContext(parent, msg)
	ctx, span := otel.Tracer(tracerName).Start(ctx, "kafka.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
			attribute.String("messaging.kafka.message.key", string(msg.Key)),
		),
	)
	defer span.End()

	if err := c.handler(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "message handler failed")
		logger.Ctx(ctx).Error().Err(err).
			Str("topic", msg.Topic).
			Int64("offset", msg.Offset).
			Msg("Failed to handle message")
	}
}
