package interfaces

import (
	"context"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/pkg/mq"
)

type fakeFinalizer struct {
	mu        sync.Mutex
	confirmed []string
	released  []string
	reasons   []string
}

func (f *fakeFinalizer) ConfirmBatch(_ context.Context, batchID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmed = append(f.confirmed, batchID)
	return 1, nil
}

func (f *fakeFinalizer) ReleaseBatch(_ context.Context, batchID, reason string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, batchID)
	f.reasons = append(f.reasons, reason)
	return 1, nil
}

func orderMessage(eventType, body string) kafka.Message {
	return kafka.Message{
		Topic:   OrderEventsTopic,
		Value:   []byte(body),
		Headers: []kafka.Header{{Key: mq.HeaderEventType, Value: []byte(eventType)}},
	}
}

func TestOrderEventHandler(t *testing.T) {
	f := &fakeFinalizer{}
	h := NewOrderEventHandler(f)
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, orderMessage("order.status_changed",
		`{"aggregateId":"O1","newStatus":"Confirmed","reservationId":"R1"}`)))
	require.NoError(t, h.Handle(ctx, orderMessage("order.status_changed",
		`{"aggregateId":"O1","newStatus":"Processing","reservationId":"R1"}`)))
	require.NoError(t, h.Handle(ctx, orderMessage("order.cancelled",
		`{"aggregateId":"O2","reason":"x","reservationId":"R2"}`)))
	require.NoError(t, h.Handle(ctx, orderMessage("order.created",
		`{"aggregateId":"O3","reservationId":"R3"}`)))
	require.NoError(t, h.Handle(ctx, orderMessage("order.cancelled",
		`{"aggregateId":"O4","reason":"x"}`)))

	assert.Equal(t, []string{"R1"}, f.confirmed)
	assert.Equal(t, []string{"R2"}, f.released)
	assert.Equal(t, []string{ReasonOrderCancelled}, f.reasons)
	assert.Equal(t, "storefront.order.events", OrderEventsTopic)
}

func TestOrderEventHandler_BadPayload(t *testing.T) {
	h := NewOrderEventHandler(&fakeFinalizer{})
	assert.Error(t, h.Handle(context.Background(), orderMessage("order.cancelled", "{")))
}
