package mq

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/pkg/domainevent"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

type sampleEvent struct {
	domainevent.Base
	CustomerID string `json:"customerId"`
}

func TestTopicFor(t *testing.T) {
	assert.Equal(t, "storefront.inventory.events", TopicFor("inventory.stock_reserved"))
	assert.Equal(t, "storefront.cart.events", TopicFor("cart.cleared"))
	assert.Equal(t, "storefront.misc.events", TopicFor("misc"))
}

func TestKafkaEventPublisher_WritesOneMessagePerEvent(t *testing.T) {
	w := &fakeWriter{}
	pub := NewKafkaEventPublisher(w)

	now := time.Now()
	e1 := sampleEvent{Base: domainevent.NewBase("cart.cleared", "cart-1", now), CustomerID: "c-1"}
	e2 := sampleEvent{Base: domainevent.NewBase("order.created", "order-1", now), CustomerID: "c-1"}

	require.NoError(t, pub.Publish(context.Background(), e1, e2))
	require.Len(t, w.msgs, 2)

	assert.Equal(t, "storefront.cart.events", w.msgs[0].Topic)
	assert.Equal(t, []byte("cart-1"), w.msgs[0].Key)
	assert.Equal(t, "storefront.order.events", w.msgs[1].Topic)

	carrier := KafkaHeaderCarrier(w.msgs[0].Headers)
	assert.Equal(t, "cart.cleared", carrier.Get(HeaderEventType))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, "cart.cleared", decoded["type"])
	assert.Equal(t, "cart-1", decoded["aggregateId"])
	assert.Equal(t, "c-1", decoded["customerId"])
}

func TestKafkaEventPublisher_PropagatesWriteError(t *testing.T) {
	boom := errors.New("broker down")
	pub := NewKafkaEventPublisher(&fakeWriter{err: boom})

	err := pub.Publish(context.Background(), sampleEvent{Base: domainevent.NewBase("cart.cleared", "cart-1", time.Now())})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestKafkaHeaderCarrier_SetOverwrites(t *testing.T) {
	var c KafkaHeaderCarrier
	c.Set("k", "v1")
	c.Set("k", "v2")
	c.Set("other", "x")

	assert.Equal(t, "v2", c.Get("k"))
	assert.ElementsMatch(t, []string{"k", "other"}, c.Keys())
	assert.Equal(t, "", c.Get("missing"))
}
