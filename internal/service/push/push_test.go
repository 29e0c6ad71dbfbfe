package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/pkg/mq"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.Run(ctx) }()
	t.Cleanup(cancel)
	return hub
}

func dial(t *testing.T, srv *httptest.Server, customerID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?customerId=" + customerID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestServeWs_DeliversToCustomer(t *testing.T) {
	hub := startHub(t)
	srv := httptest.NewServer(ServeWs(hub))
	defer srv.Close()

	c1 := dial(t, srv, "C1")
	c2 := dial(t, srv, "C1")
	dial(t, srv, "C2")

	require.Eventually(t, func() bool {
		return hub.Connections("C1") == 2 && hub.Connections("C2") == 1
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, 2, hub.Deliver("C1", []byte(`{"type":"x"}`)))
	assert.Equal(t, 0, hub.Deliver("nobody", []byte(`{}`)))

	for _, conn := range []*websocket.Conn{c1, c2} {
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"x"}`, string(msg))
	}
}

func TestServeWs_UnregistersOnClose(t *testing.T) {
	hub := startHub(t)
	srv := httptest.NewServer(ServeWs(hub))
	defer srv.Close()

	conn := dial(t, srv, "C1")
	require.Eventually(t, func() bool { return hub.Connections("C1") == 1 }, time.Second, 10*time.Millisecond)

	_ = conn.Close()
	assert.Eventually(t, func() bool { return hub.Connections("C1") == 0 }, time.Second, 10*time.Millisecond)
}

func TestServeWs_RequiresCustomer(t *testing.T) {
	rec := httptest.NewRecorder()
	ServeWs(NewHub())(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventHandler(t *testing.T) {
	hub := startHub(t)
	srv := httptest.NewServer(ServeWs(hub))
	defer srv.Close()

	conn := dial(t, srv, "C1")
	require.Eventually(t, func() bool { return hub.Connections("C1") == 1 }, time.Second, 10*time.Millisecond)

	h := NewEventHandler(hub)
	body := `{"aggregateId":"O1","customerId":"C1","totalAmount":"40"}`
	require.NoError(t, h.Handle(context.Background(), kafka.Message{
		Value:   []byte(body),
		Headers: []kafka.Header{{Key: mq.HeaderEventType, Value: []byte("order.created")}},
	}))

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var n Notification
	require.NoError(t, json.Unmarshal(msg, &n))
	assert.Equal(t, "order.created", n.Type)
	assert.JSONEq(t, body, string(n.Payload))

	// 没有 customerId 的事件直接忽略，坏消息返回错误
	assert.NoError(t, h.Handle(context.Background(), kafka.Message{Value: []byte(`{"aggregateId":"X"}`)}))
	assert.Error(t, h.Handle(context.Background(), kafka.Message{Value: []byte("{")}))
}

func TestTopics(t *testing.T) {
	assert.Equal(t, []string{"storefront.cart.events", "storefront.order.events"}, Topics)
}
