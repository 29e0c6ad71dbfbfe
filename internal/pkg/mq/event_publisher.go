// internal/pkg/mq/event_publisher.go
package mq

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"storefront/internal/pkg/domainevent"
	"storefront/internal/pkg/logger"
)

const (
	// HeaderEventType 存放事件类型，消费者不必反序列化消息体就能路由。
	HeaderEventType = "event-type"
	topicPrefix     = "storefront."
	topicSuffix     = ".events"
)

// TopicFor 按事件类型的前缀（bounded context）路由到主题，
// 例如 "inventory.stock_reserved" -> "storefront.inventory.events"。
func TopicFor(eventType string) string {
	bounded := eventType
	if i := strings.IndexByte(eventType, '.'); i > 0 {
		bounded = eventType[:i]
	}
	return topicPrefix + bounded + topicSuffix
}

// KafkaEventPublisher 把领域事件以 JSON 写入 Kafka，key 为聚合 id，保证同一聚合内有序。
type KafkaEventPublisher struct {
	writer MessageWriter
}

// NewKafkaEventPublisher 创建事件发布器；writer 不应设置固定 Topic。
func NewKafkaEventPublisher(writer MessageWriter) *KafkaEventPublisher {
	return &KafkaEventPublisher{writer: writer}
}

// Publish 实现 domainevent.Publisher。
func (p *KafkaEventPublisher) Publish(ctx context.Context, events ...domainevent.Event) error {
	for _, evt := range events {
		payload, err := json.Marshal(evt)
		if err != nil {
			return errors.Wrapf(err, "marshal event %s", evt.EventType())
		}

		header := kafka.Header{Key: HeaderEventType, Value: []byte(evt.EventType())}
		if err := ProduceMessage(ctx, p.writer, TopicFor(evt.EventType()), []byte(evt.AggregateID()), payload, header); err != nil {
			return errors.Wrapf(err, "produce event %s", evt.EventType())
		}

		logger.Ctx(ctx).Debug().
			Str("event_type", evt.EventType()).
			Str("aggregate_id", evt.AggregateID()).
			Msg("Domain event published to Kafka")
	}
	return nil
}

// Handle 让发布器可以直接作为 eventbus 订阅者使用。
func (p *KafkaEventPublisher) Handle(ctx context.Context, evt domainevent.Event) error {
	return p.Publish(ctx, evt)
}
