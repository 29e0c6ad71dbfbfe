package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"storefront/internal/pkg/domainevent"
	"storefront/internal/pkg/metrics"
	cartdomain "storefront/internal/service/cart/domain"
	cartinfra "storefront/internal/service/cart/infrastructure"
	"storefront/internal/service/checkout/application/saga"
	"storefront/internal/service/checkout/domain/port"
	"storefront/internal/service/checkout/infrastructure"
)

type fakeInventory struct {
	mu          sync.Mutex
	unavailable map[string]bool
	reserveFail string
	checks      int
	reserves    int
	released    []string
	releaseCtx  []error
}

func (f *fakeInventory) IsAvailable(_ context.Context, productID string, _ int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.unavailable[productID], nil
}

func (f *fakeInventory) CheckAvailability(_ context.Context, items []port.StockLine) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	out := make(map[string]bool, len(items))
	for _, item := range items {
		out[item.ProductID] = !f.unavailable[item.ProductID]
	}
	return out, nil
}

func (f *fakeInventory) Reserve(_ context.Context, _ string, items []port.StockLine) (*port.ReservationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reserves++
	if f.reserveFail != "" {
		return &port.ReservationResult{Success: false, Error: f.reserveFail}, nil
	}
	reserved := make(map[string]int, len(items))
	for _, item := range items {
		reserved[item.ProductID] = item.Quantity
	}
	return &port.ReservationResult{Success: true, ReservationID: "R1", ReservedQuantities: reserved}, nil
}

func (f *fakeInventory) ReleaseReservation(ctx context.Context, reservationID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, reservationID)
	f.releaseCtx = append(f.releaseCtx, ctx.Err())
	return true, nil
}

func (f *fakeInventory) calls() (checks, reserves int, released []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checks, f.reserves, append([]string(nil), f.released...)
}

type fakePricing struct {
	mu    sync.Mutex
	calls int
	fn    func() (*port.CartPricing, error)
}

func (f *fakePricing) CalculateCartPricing(_ context.Context, _ string, items []port.PricingLine) (*port.CartPricing, error) {
	f.mu.Lock()
	f.calls++
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		return fn()
	}
	// 5% 促销
	prices := make(map[string]decimal.Decimal, len(items))
	total := decimal.Zero
	for _, item := range items {
		p := item.UnitPrice.Mul(decimal.RequireFromString("0.95"))
		prices[item.ProductID] = p
		total = total.Add(p.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return &port.CartPricing{ItemPrices: prices, Subtotal: total, Total: total, AppliedPromotions: []string{"PROMO_5"}}, nil
}

type fakeOrders struct {
	mu       sync.Mutex
	requests []*port.CreateOrderRequest
	fn       func(ctx context.Context) (*port.OrderCreationResult, error)
}

func (f *fakeOrders) CreateOrder(ctx context.Context, req *port.CreateOrderRequest) (*port.OrderCreationResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return &port.OrderCreationResult{Success: true, OrderID: "O1", CreatedAt: time.Now()}, nil
}

func (f *fakeOrders) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domainevent.Event
}

func (p *recordingPublisher) Publish(_ context.Context, events ...domainevent.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return domainevent.Types(p.events)
}

type fixture struct {
	carts     *cartinfra.MemoryCartRepository
	inventory *fakeInventory
	pricing   *fakePricing
	orders    *fakeOrders
	pub       *recordingPublisher
	svc       *CheckoutOrchestrator
}

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newFixture(opts ...Option) *fixture {
	f := &fixture{
		carts:     cartinfra.NewMemoryCartRepository(),
		inventory: &fakeInventory{unavailable: map[string]bool{}},
		pricing:   &fakePricing{},
		orders:    &fakeOrders{},
		pub:       &recordingPublisher{},
	}
	opts = append([]Option{WithClock(func() time.Time { return t0 })}, opts...)
	f.svc = NewCheckoutOrchestrator(f.carts, f.inventory, f.pricing, f.orders, f.pub,
		noop.NewTracerProvider().Tracer("test"), metrics.New("checkout-test"), opts...)
	return f
}

// seedCart 放入一行 P1 x2 @ 20.00
func (f *fixture) seedCart(t *testing.T, customerID string) {
	t.Helper()
	cart, err := f.carts.FindByCustomerID(context.Background(), customerID)
	if errors.Is(err, cartdomain.ErrCartNotFound) {
		cart, err = cartdomain.NewCart(t0, customerID, "USD")
	}
	require.NoError(t, err)
	_, err = cart.AddProduct(t0, "P1", "Mug", 2, decimal.RequireFromString("20.00"))
	require.NoError(t, err)
	require.NoError(t, f.carts.Save(context.Background(), cart))
}

func TestCheckout_Success(t *testing.T) {
	f := newFixture()
	f.seedCart(t, "C1")

	result := f.svc.Checkout(context.Background(), &CheckoutRequest{
		CustomerID:      "C1",
		ShippingAddress: "1 Main St",
		Metadata:        map[string]string{"channel": "web"},
	})
	require.True(t, result.Success, result.ErrorMessage)
	assert.Equal(t, "O1", result.OrderID)
	assert.Equal(t, "C1", result.CustomerID)
	assert.Equal(t, "USD", result.Currency)
	assert.True(t, result.TotalAmount.Equal(decimal.RequireFromString("38.00")))
	require.NotNil(t, result.CheckoutCompletedAt)
	assert.True(t, t0.Equal(*result.CheckoutCompletedAt))

	require.Equal(t, 1, f.orders.count())
	req := f.orders.requests[0]
	assert.True(t, req.Items[0].UnitPrice.Equal(decimal.RequireFromString("19.00")), "order uses the authoritative price")
	assert.True(t, req.TotalAmount.Equal(decimal.RequireFromString("38.00")))
	assert.Equal(t, "R1", req.Metadata[saga.MetadataReservationID])
	assert.Equal(t, "web", req.Metadata["channel"])
	assert.Equal(t, "1 Main St", req.ShippingAddress)

	cart, err := f.carts.FindByCustomerID(context.Background(), "C1")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())

	_, _, released := f.inventory.calls()
	assert.Empty(t, released)
	assert.Equal(t, []string{cartdomain.EventCheckoutInitiated, cartdomain.EventCheckoutCompleted}, f.pub.types())
}

func TestCheckout_RecordsPricedTotalOnOrder(t *testing.T) {
	f := newFixture()
	f.seedCart(t, "C1")
	f.pricing.fn = func() (*port.CartPricing, error) {
		return &port.CartPricing{
			ItemPrices: map[string]decimal.Decimal{"P1": decimal.RequireFromString("20.00")},
			Subtotal:   decimal.RequireFromString("40.00"),
			Discount:   decimal.RequireFromString("4.00"),
			Tax:        decimal.RequireFromString("2.00"),
			Total:      decimal.RequireFromString("38.00"),
		}, nil
	}

	result := f.svc.Checkout(context.Background(), &CheckoutRequest{CustomerID: "C1"})
	require.True(t, result.Success, result.ErrorMessage)
	assert.True(t, result.TotalAmount.Equal(decimal.RequireFromString("38.00")))

	require.Equal(t, 1, f.orders.count())
	meta := f.orders.requests[0].Metadata
	assert.Equal(t, "38.00", meta[saga.MetadataPricedTotal])
	assert.Equal(t, "4.00", meta[saga.MetadataDiscount])
	assert.Equal(t, "2.00", meta[saga.MetadataTax])
}

func TestCheckout_OrderFailureReleasesReservationOnce(t *testing.T) {
	f := newFixture()
	f.seedCart(t, "C1")
	f.orders.fn = func(context.Context) (*port.OrderCreationResult, error) {
		return nil, errors.New("downstream unavailable")
	}

	result := f.svc.Checkout(context.Background(), &CheckoutRequest{CustomerID: "C1"})
	assert.False(t, result.Success)
	assert.Equal(t, "C1", result.CustomerID)
	assert.Contains(t, result.ErrorMessage, "downstream unavailable")
	assert.Empty(t, result.OrderID)

	_, _, released := f.inventory.calls()
	assert.Equal(t, []string{"R1"}, released)

	cart, err := f.carts.FindByCustomerID(context.Background(), "C1")
	require.NoError(t, err)
	assert.Equal(t, 1, cart.ItemCount(), "cart keeps its items")
	assert.Equal(t, 2, cart.TotalQuantity())
	assert.Empty(t, f.pub.types())
}

func TestCheckout_OrderRejectedOrWithoutID(t *testing.T) {
	cases := map[string]func(context.Context) (*port.OrderCreationResult, error){
		"rejected": func(context.Context) (*port.OrderCreationResult, error) {
			return &port.OrderCreationResult{Success: false, Error: "invalid order"}, nil
		},
		"no id": func(context.Context) (*port.OrderCreationResult, error) {
			return &port.OrderCreationResult{Success: true}, nil
		},
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			f.seedCart(t, "C1")
			f.orders.fn = fn

			result := f.svc.Checkout(context.Background(), &CheckoutRequest{CustomerID: "C1"})
			assert.False(t, result.Success)
			_, _, released := f.inventory.calls()
			assert.Equal(t, []string{"R1"}, released)
		})
	}
}

func TestCheckout_PricingFailureReleasesReservation(t *testing.T) {
	f := newFixture()
	f.seedCart(t, "C1")
	f.pricing.fn = func() (*port.CartPricing, error) { return nil, errors.New("pricing down") }

	result := f.svc.Checkout(context.Background(), &CheckoutRequest{CustomerID: "C1"})
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "pricing down")
	_, _, released := f.inventory.calls()
	assert.Equal(t, []string{"R1"}, released)
	assert.Zero(t, f.orders.count())
}

func TestCheckout_PanicIsConvertedAndCompensated(t *testing.T) {
	f := newFixture()
	f.seedCart(t, "C1")
	f.pricing.fn = func() (*port.CartPricing, error) { panic("boom") }

	result := f.svc.Checkout(context.Background(), &CheckoutRequest{CustomerID: "C1"})
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "boom")
	_, _, released := f.inventory.calls()
	assert.Equal(t, []string{"R1"}, released)
}

func TestCheckout_EmptyOrMissingCartCallsNoPorts(t *testing.T) {
	f := newFixture()
	empty, err := cartdomain.NewCart(t0, "EMPTY", "USD")
	require.NoError(t, err)
	require.NoError(t, f.carts.Save(context.Background(), empty))

	result := f.svc.Checkout(context.Background(), &CheckoutRequest{CustomerID: "EMPTY"})
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "empty cart")

	result = f.svc.Checkout(context.Background(), &CheckoutRequest{CustomerID: "NOBODY"})
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "cart not found")

	result = f.svc.Checkout(context.Background(), &CheckoutRequest{})
	assert.False(t, result.Success)

	checks, reserves, released := f.inventory.calls()
	assert.Zero(t, checks)
	assert.Zero(t, reserves)
	assert.Empty(t, released)
	assert.Zero(t, f.pricing.calls)
	assert.Zero(t, f.orders.count())
}

func TestCheckout_UnavailableProductSkipsReservation(t *testing.T) {
	f := newFixture()
	f.seedCart(t, "C1")
	f.inventory.unavailable["P1"] = true

	result := f.svc.Checkout(context.Background(), &CheckoutRequest{CustomerID: "C1"})
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "P1")

	checks, reserves, released := f.inventory.calls()
	assert.Equal(t, 1, checks)
	assert.Zero(t, reserves)
	assert.Empty(t, released)
}

func TestCheckout_ReservationFailureHasNothingToCompensate(t *testing.T) {
	f := newFixture()
	f.seedCart(t, "C1")
	f.inventory.reserveFail = "insufficient stock for P1"

	result := f.svc.Checkout(context.Background(), &CheckoutRequest{CustomerID: "C1"})
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "insufficient stock for P1")
	_, _, released := f.inventory.calls()
	assert.Empty(t, released)
	assert.Zero(t, f.pricing.calls)
}

func TestCheckout_CompensationSurvivesCallerCancellation(t *testing.T) {
	f := newFixture(WithTimeouts(time.Minute, saga.Timeouts{Compensation: time.Second}))
	f.seedCart(t, "C1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.orders.fn = func(ctx context.Context) (*port.OrderCreationResult, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	}

	result := f.svc.Checkout(ctx, &CheckoutRequest{CustomerID: "C1"})
	assert.False(t, result.Success)

	f.inventory.mu.Lock()
	defer f.inventory.mu.Unlock()
	require.Equal(t, []string{"R1"}, f.inventory.released)
	assert.NoError(t, f.inventory.releaseCtx[0])
}

func TestCheckout_PortTimeout(t *testing.T) {
	f := newFixture(WithTimeouts(time.Minute, saga.Timeouts{Order: 20 * time.Millisecond}))
	f.seedCart(t, "C1")
	f.orders.fn = func(ctx context.Context) (*port.OrderCreationResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	result := f.svc.Checkout(context.Background(), &CheckoutRequest{CustomerID: "C1"})
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, context.DeadlineExceeded.Error())
	_, _, released := f.inventory.calls()
	assert.Equal(t, []string{"R1"}, released)
}

func TestCheckout_Guard(t *testing.T) {
	guard := infrastructure.NewMemoryCheckoutGuard()
	f := newFixture(WithGuard(guard, time.Minute))
	f.seedCart(t, "C1")

	// 同一客户的另一次结账正在进行
	token, err := guard.Acquire(context.Background(), "checkout:{C1}", time.Minute)
	require.NoError(t, err)
	result := f.svc.Checkout(context.Background(), &CheckoutRequest{CustomerID: "C1"})
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, port.ErrCheckoutInProgress.Error())
	assert.Zero(t, f.orders.count())
	require.NoError(t, guard.Release(context.Background(), "checkout:{C1}", token))

	result = f.svc.Checkout(context.Background(), &CheckoutRequest{CustomerID: "C1", IdempotencyKey: "k1"})
	require.True(t, result.Success, result.ErrorMessage)

	f.seedCart(t, "C2")
	f.seedCart(t, "C1")
	result = f.svc.Checkout(context.Background(), &CheckoutRequest{CustomerID: "C1", IdempotencyKey: "k1"})
	assert.False(t, result.Success, "same idempotency key is rejected")
	assert.Equal(t, 1, f.orders.count())

	// 没有幂等键时锁在结束后释放
	result = f.svc.Checkout(context.Background(), &CheckoutRequest{CustomerID: "C2"})
	require.True(t, result.Success, result.ErrorMessage)
	f.seedCart(t, "C2")
	result = f.svc.Checkout(context.Background(), &CheckoutRequest{CustomerID: "C2"})
	assert.True(t, result.Success, result.ErrorMessage)
}

func TestValidateCartForCheckout(t *testing.T) {
	f := newFixture()
	f.seedCart(t, "C1")
	ctx := context.Background()

	assert.True(t, f.svc.ValidateCartForCheckout(ctx, "C1"))
	assert.False(t, f.svc.ValidateCartForCheckout(ctx, "NOBODY"))
	assert.False(t, f.svc.ValidateCartForCheckout(ctx, ""))

	f.inventory.unavailable["P1"] = true
	assert.False(t, f.svc.ValidateCartForCheckout(ctx, "C1"))

	_, reserves, _ := f.inventory.calls()
	assert.Zero(t, reserves)
	assert.Zero(t, f.orders.count())
	assert.Empty(t, f.pub.types())
}
