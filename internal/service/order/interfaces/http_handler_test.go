package interfaces

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"storefront/internal/pkg/domainevent"
	"storefront/internal/service/order/application"
	"storefront/internal/service/order/domain"
	"storefront/internal/service/order/infrastructure"
)

func newTestMux() *http.ServeMux {
	svc := application.NewOrderService(
		infrastructure.NewMemoryOrderRepository(),
		domainevent.PublisherFunc(func(_ context.Context, _ ...domainevent.Event) error { return nil }),
		noop.NewTracerProvider().Tracer("test"),
	)
	mux := http.NewServeMux()
	NewOrderHandler(svc).RegisterRoutes(mux)
	return mux
}

func do(t *testing.T, mux *http.ServeMux, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, &buf))
	return rec
}

func createOrder(t *testing.T, mux *http.ServeMux) application.OrderDTO {
	t.Helper()
	rec := do(t, mux, http.MethodPost, "/orders", application.CreateOrderRequest{
		CustomerID:  "C1",
		Currency:    "USD",
		TotalAmount: decimal.RequireFromString("38.00"),
		Items: []application.CreateOrderItem{
			{ProductID: "P1", ProductName: "Mug", Quantity: 2, UnitPrice: decimal.RequireFromString("19.00")},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var order application.OrderDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	return order
}

func TestOrderHandler_Lifecycle(t *testing.T) {
	mux := newTestMux()
	order := createOrder(t, mux)

	rec := do(t, mux, http.MethodPost, "/orders/confirm", application.TransitionRequest{OrderID: order.ID})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, mux, http.MethodPost, "/orders/ship", application.TransitionRequest{OrderID: order.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, mux, http.MethodPost, "/orders/cancel", application.TransitionRequest{OrderID: order.ID, Reason: "out of budget"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, mux, http.MethodGet, "/orders?id="+order.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got application.OrderDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.Equal(t, "out of budget", got.CancellationReason)

	rec = do(t, mux, http.MethodGet, "/orders?customerId=C1", nil)
	var list []application.OrderDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestOrderHandler_ErrorMapping(t *testing.T) {
	mux := newTestMux()

	rec := do(t, mux, http.MethodGet, "/orders?id=missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, mux, http.MethodPost, "/orders", application.CreateOrderRequest{CustomerID: "C1", Currency: "USD", TotalAmount: decimal.NewFromInt(1)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "at least one item")

	order := createOrder(t, mux)
	rec = do(t, mux, http.MethodPost, "/orders/cancel", application.TransitionRequest{OrderID: order.ID, Reason: " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
