package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"storefront/internal/pkg/httpclient"
	cartapp "storefront/internal/service/cart/application"
	"storefront/internal/service/checkout/domain/port"
)

func newClient(t *testing.T, handler http.Handler) *httpclient.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return httpclient.NewClient(noop.NewTracerProvider().Tracer("test"), httpclient.StaticResolver{
		InventoryService: srv.URL,
		PricingService:   srv.URL,
		OrderService:     srv.URL,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestInventoryHTTPAdapter(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /inventory/availability", func(w http.ResponseWriter, r *http.Request) {
		var req availabilityRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		out := map[string]bool{}
		for _, l := range req.Items {
			out[l.ProductID] = l.Quantity <= 5
		}
		writeJSON(w, availabilityResponse{Availability: out})
	})
	mux.HandleFunc("POST /inventory/reservations", func(w http.ResponseWriter, r *http.Request) {
		var req reserveRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 900, req.TTLSeconds)
		if req.CustomerID == "poor" {
			writeJSON(w, reserveResponse{Success: false, UnavailableProducts: []string{"P1"}, Error: "insufficient stock for P1"})
			return
		}
		writeJSON(w, reserveResponse{Success: true, ReservationID: "R1", ReservedQuantities: map[string]int{"P1": 2}})
	})
	mux.HandleFunc("POST /inventory/reservations/release", func(w http.ResponseWriter, r *http.Request) {
		var req releaseRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, ReasonCheckoutCompensation, req.Reason)
		writeJSON(w, releaseResponse{Success: req.ReservationID == "R1", Count: 1})
	})

	a := NewInventoryHTTPAdapter(newClient(t, mux), 15*time.Minute)
	ctx := context.Background()

	ok, err := a.IsAvailable(ctx, "P1", 2)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = a.IsAvailable(ctx, "P1", 9)
	require.NoError(t, err)
	assert.False(t, ok)

	res, err := a.Reserve(ctx, "C1", []port.StockLine{{ProductID: "P1", Quantity: 2}})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "R1", res.ReservationID)
	assert.Equal(t, 2, res.ReservedQuantities["P1"])

	res, err = a.Reserve(ctx, "poor", []port.StockLine{{ProductID: "P1", Quantity: 2}})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, []string{"P1"}, res.UnavailableProducts)

	released, err := a.ReleaseReservation(ctx, "R1")
	require.NoError(t, err)
	assert.True(t, released)
	released, err = a.ReleaseReservation(ctx, "R2")
	require.NoError(t, err)
	assert.False(t, released)
}

func TestPricingHTTPAdapter(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /pricing/cart", func(w http.ResponseWriter, r *http.Request) {
		var req cartPricingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Items, 1)
		writeJSON(w, map[string]interface{}{
			"itemPrices":        map[string]string{"P1": "19.00"},
			"subtotal":          "38.00",
			"discount":          "0",
			"tax":               "3.23",
			"total":             "41.23",
			"appliedPromotions": []string{},
		})
	})
	mux.HandleFunc("GET /pricing/price", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("productId") != "P1" {
			http.Error(w, "product not found", http.StatusNotFound)
			return
		}
		assert.Equal(t, "3", r.URL.Query().Get("quantity"))
		writeJSON(w, map[string]string{"productId": "P1", "name": "Mug", "currency": "USD", "finalPrice": "11.25"})
	})

	a := NewPricingHTTPAdapter(newClient(t, mux))
	ctx := context.Background()

	pricing, err := a.CalculateCartPricing(ctx, "C1", []port.PricingLine{
		{ProductID: "P1", Quantity: 2, UnitPrice: decimal.RequireFromString("20.00")},
	})
	require.NoError(t, err)
	assert.True(t, pricing.Total.Equal(decimal.RequireFromString("41.23")))
	assert.True(t, pricing.ItemPrices["P1"].Equal(decimal.RequireFromString("19")))

	quote, err := a.QuotePrice(ctx, "C1", "P1", 3)
	require.NoError(t, err)
	assert.Equal(t, "Mug", quote.ProductName)
	assert.True(t, quote.UnitPrice.Equal(decimal.RequireFromString("11.25")))

	_, err = a.QuotePrice(ctx, "C1", "nope", 1)
	assert.ErrorIs(t, err, cartapp.ErrPriceUnavailable)
}

func TestOrderHTTPAdapter(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /orders", func(w http.ResponseWriter, r *http.Request) {
		var req createOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		switch req.CustomerID {
		case "bad":
			http.Error(w, "order must contain at least one item", http.StatusBadRequest)
		case "down":
			http.Error(w, "downstream unavailable", http.StatusServiceUnavailable)
		default:
			assert.Equal(t, "R1", req.Metadata["reservationId"])
			w.WriteHeader(http.StatusCreated)
			writeJSON(w, map[string]interface{}{"id": "O1", "createdAt": created})
		}
	})

	a := NewOrderHTTPAdapter(newClient(t, mux))
	ctx := context.Background()
	req := &port.CreateOrderRequest{
		CustomerID:  "C1",
		Currency:    "USD",
		TotalAmount: decimal.RequireFromString("38"),
		Items:       []port.OrderLine{{ProductID: "P1", ProductName: "Mug", Quantity: 2, UnitPrice: decimal.RequireFromString("19"), Currency: "USD"}},
		Metadata:    map[string]string{"reservationId": "R1"},
	}

	res, err := a.CreateOrder(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "O1", res.OrderID)
	assert.True(t, created.Equal(res.CreatedAt))

	req.CustomerID = "bad"
	res, err = a.CreateOrder(ctx, req)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "at least one item")

	req.CustomerID = "down"
	_, err = a.CreateOrder(ctx, req)
	assert.ErrorContains(t, err, "downstream unavailable")
}
