package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/pkg/domainevent"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func mustItem(t *testing.T, productID string, qty int, price string) OrderItem {
	t.Helper()
	item, err := NewOrderItem(productID, "Product "+productID, "", qty, decimal.RequireFromString(price), "usd")
	require.NoError(t, err)
	return item
}

func newPendingOrder(t *testing.T) *Order {
	t.Helper()
	o, _, err := NewOrder(t0, "C1", []OrderItem{mustItem(t, "P1", 2, "19.00")}, "USD", Details{})
	require.NoError(t, err)
	return o
}

func TestNewOrderItem_DefaultsSKUToProductID(t *testing.T) {
	item := mustItem(t, "P1", 1, "1.00")
	assert.Equal(t, "P1", item.ProductSKU)
	assert.Equal(t, "USD", item.Currency)

	_, err := NewOrderItem("P1", "x", "", 0, decimal.NewFromInt(1), "USD")
	assert.ErrorIs(t, err, ErrInvalidOrderOperation)
	_, err = NewOrderItem("P1", "x", "", 1, decimal.NewFromInt(-1), "USD")
	assert.ErrorIs(t, err, ErrInvalidOrderOperation)
}

func TestNewOrder(t *testing.T) {
	items := []OrderItem{mustItem(t, "P1", 2, "19.00"), mustItem(t, "P2", 1, "2.50")}
	o, events, err := NewOrder(t0, "C1", items, "usd", Details{ShippingAddress: "1 Main St"})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, o.Status)
	assert.True(t, o.TotalAmount.Equal(decimal.RequireFromString("40.50")))
	assert.Equal(t, "USD", o.Currency)
	require.Len(t, events, 1)
	created := events[0].(*OrderCreated)
	assert.Equal(t, o.ID, created.AggregateID())
	assert.True(t, created.TotalAmount.Equal(o.TotalAmount))
}

func TestNewOrder_Validation(t *testing.T) {
	eur, err := NewOrderItem("P3", "x", "", 1, decimal.NewFromInt(1), "EUR")
	require.NoError(t, err)

	cases := []struct {
		name       string
		customerID string
		items      []OrderItem
	}{
		{"empty customer", "", []OrderItem{mustItem(t, "P1", 1, "1")}},
		{"no items", "C1", nil},
		{"mixed currency", "C1", []OrderItem{mustItem(t, "P1", 1, "1"), eur}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := NewOrder(t0, tc.customerID, tc.items, "USD", Details{})
			assert.ErrorIs(t, err, ErrInvalidOrderOperation)
		})
	}
}

func TestOrder_TransitionTable(t *testing.T) {
	all := []Status{StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}
	legal := map[Status][]Status{
		StatusPending:    {StatusConfirmed, StatusCancelled},
		StatusConfirmed:  {StatusProcessing, StatusCancelled},
		StatusProcessing: {StatusShipped, StatusCancelled},
		StatusShipped:    {StatusDelivered},
	}
	for _, from := range all {
		for _, to := range all {
			want := false
			for _, l := range legal[from] {
				if l == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestOrder_HappyPathToDelivered(t *testing.T) {
	o := newPendingOrder(t)
	total := o.TotalAmount
	steps := []func(time.Time) ([]domainevent.Event, error){o.Confirm, o.StartProcessing, o.MarkAsShipped, o.MarkAsDelivered}
	for i, step := range steps {
		events, err := step(t0.Add(time.Duration(i+1) * time.Minute))
		require.NoError(t, err)
		require.Equal(t, []string{EventOrderStatusChanged}, domainevent.Types(events))
	}
	assert.Equal(t, StatusDelivered, o.Status)
	assert.True(t, o.IsTerminal())
	assert.False(t, o.CanBeCancelled())
	assert.True(t, total.Equal(o.TotalAmount))
}

func TestOrder_ShipFromConfirmedFails(t *testing.T) {
	o := newPendingOrder(t)
	_, err := o.Confirm(t0)
	require.NoError(t, err)

	_, err = o.MarkAsShipped(t0)
	require.ErrorIs(t, err, ErrInvalidOrderStateTransition)
	var transition *InvalidStateTransitionError
	require.True(t, errors.As(err, &transition))
	assert.Equal(t, StatusConfirmed, transition.From)
	assert.Equal(t, StatusShipped, transition.To)
	assert.Equal(t, StatusConfirmed, o.Status)
}

func TestOrder_Cancel(t *testing.T) {
	o := newPendingOrder(t)

	_, err := o.Cancel(t0, "   ")
	require.ErrorIs(t, err, ErrInvalidOrderOperation)
	assert.Equal(t, StatusPending, o.Status)

	events, err := o.Cancel(t0, "  changed my mind ")
	require.NoError(t, err)
	assert.Equal(t, []string{EventOrderCancelled, EventOrderStatusChanged}, domainevent.Types(events))
	assert.Equal(t, "changed my mind", o.CancellationReason)
	assert.Equal(t, StatusCancelled, o.Status)

	_, err = o.Cancel(t0, "again")
	assert.ErrorIs(t, err, ErrInvalidOrderStateTransition)
}

func TestOrder_CancelAfterShipFails(t *testing.T) {
	o := newPendingOrder(t)
	for _, step := range []func(time.Time) ([]domainevent.Event, error){o.Confirm, o.StartProcessing, o.MarkAsShipped} {
		_, err := step(t0)
		require.NoError(t, err)
	}
	_, err := o.Cancel(t0, "too late")
	assert.ErrorIs(t, err, ErrInvalidOrderStateTransition)
	assert.Empty(t, o.CancellationReason)
}
