// Package domainevent holds the event contract shared by every bounded context.
// Aggregates return []Event from mutating calls; the application layer drains
// them to a Publisher after the aggregate has been persisted.
package domainevent

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event 是所有领域事件的公共接口。
type Event interface {
	EventID() string
	EventType() string
	AggregateID() string
	OccurredAt() time.Time
}

// Publisher 是事件出口（sink）。实现方负责投递方式。
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// PublisherFunc 让普通函数满足 Publisher。
type PublisherFunc func(ctx context.Context, events ...Event) error

func (f PublisherFunc) Publish(ctx context.Context, events ...Event) error {
	return f(ctx, events...)
}

// Base 被具体事件嵌入，提供 Event 接口的公共字段。
type Base struct {
	ID        string    `json:"eventId"`
	Type      string    `json:"type"`
	Aggregate string    `json:"aggregateId"`
	At        time.Time `json:"occurredAt"`
}

// NewBase 创建带新 id 的事件头。
func NewBase(eventType, aggregateID string, at time.Time) Base {
	return Base{
		ID:        uuid.NewString(),
		Type:      eventType,
		Aggregate: aggregateID,
		At:        at.UTC(),
	}
}

func (b Base) EventID() string       { return b.ID }
func (b Base) EventType() string     { return b.Type }
func (b Base) AggregateID() string   { return b.Aggregate }
func (b Base) OccurredAt() time.Time { return b.At }

// Types 返回事件类型列表，主要用于日志和测试断言。
func Types(events []Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.EventType()
	}
	return out
}
