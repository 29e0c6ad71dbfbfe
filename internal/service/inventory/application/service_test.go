package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	clientmodel "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"storefront/internal/pkg/domainevent"
	"storefront/internal/pkg/metrics"
	"storefront/internal/service/inventory/domain"
	"storefront/internal/service/inventory/infrastructure"
)

// conflictingRepo 在接下来 conflicts 次 Save 时模拟并发写入
type conflictingRepo struct {
	*infrastructure.MemoryInventoryRepository
	mu        sync.Mutex
	conflicts int
}

func (r *conflictingRepo) Save(ctx context.Context, item *domain.InventoryItem) error {
	r.mu.Lock()
	if r.conflicts > 0 {
		r.conflicts--
		r.mu.Unlock()
		return domain.ErrConcurrentModification
	}
	r.mu.Unlock()
	return r.MemoryInventoryRepository.Save(ctx, item)
}

func (r *conflictingRepo) setConflicts(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflicts = n
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

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc   *InventoryService
	repo  *conflictingRepo
	pub   *recordingPublisher
	clock *fakeClock
	m     *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:  &conflictingRepo{MemoryInventoryRepository: infrastructure.NewMemoryInventoryRepository()},
		pub:   &recordingPublisher{},
		clock: &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
		m:     metrics.New("inventory-test"),
	}
	f.svc = NewInventoryService(f.repo, f.pub, noop.NewTracerProvider().Tracer("test"), f.m,
		WithClock(f.clock.Now), WithDefaultTTL(15*time.Minute))
	return f
}

func (f *fixture) create(t *testing.T, productID string, qty int) {
	t.Helper()
	_, err := f.svc.CreateItem(context.Background(), &CreateItemRequest{
		ProductID: productID, InitialQuantity: qty, ReorderLevel: 1, MaxStockLevel: 1000,
	})
	require.NoError(t, err)
}

func (f *fixture) available(t *testing.T, productID string) int {
	t.Helper()
	dto, err := f.svc.GetByProductID(context.Background(), productID)
	require.NoError(t, err)
	return dto.AvailableQuantity
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m clientmodel.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestCreateItem_RejectsDuplicate(t *testing.T) {
	f := newFixture(t)
	f.create(t, "P1", 10)

	_, err := f.svc.CreateItem(context.Background(), &CreateItemRequest{ProductID: "P1", InitialQuantity: 1, ReorderLevel: 0, MaxStockLevel: 10})
	assert.ErrorIs(t, err, domain.ErrInventoryExists)
}

func TestReserveThenRelease(t *testing.T) {
	f := newFixture(t)
	f.create(t, "P1", 10)
	ctx := context.Background()

	r, err := f.svc.Reserve(ctx, "P1", 4, 30*time.Minute, "")
	require.NoError(t, err)
	assert.Equal(t, 6, f.available(t, "P1"))

	require.NoError(t, f.svc.Release(ctx, "P1", r.ID, ""))
	dto, err := f.svc.GetByProductID(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 10, dto.AvailableQuantity)
	assert.Empty(t, dto.Reservations)

	assert.Equal(t, []string{domain.EventStockReserved, domain.EventReservationReleased}, f.pub.types())
	assert.Equal(t, 1.0, counterValue(t, f.m.ReservationsTotal.WithLabelValues("reserve", "ok")))
}

func TestReserve_InsufficientPublishesNothing(t *testing.T) {
	f := newFixture(t)
	f.create(t, "P1", 2)

	_, err := f.svc.Reserve(context.Background(), "P1", 3, time.Minute, "")
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Empty(t, f.pub.types())
	assert.Equal(t, 2, f.available(t, "P1"))
}

func TestMutate_RetriesOnVersionConflict(t *testing.T) {
	f := newFixture(t)
	f.create(t, "P1", 10)
	f.repo.setConflicts(2)

	_, err := f.svc.Reserve(context.Background(), "P1", 1, time.Minute, "")
	require.NoError(t, err)
	assert.Equal(t, 9, f.available(t, "P1"))
}

func TestMutate_GivesUpAfterRetries(t *testing.T) {
	f := newFixture(t)
	f.create(t, "P1", 10)
	f.repo.setConflicts(10)

	_, err := f.svc.Reserve(context.Background(), "P1", 1, time.Minute, "")
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)
	assert.Empty(t, f.pub.types())
}

func TestCheckAvailability(t *testing.T) {
	f := newFixture(t)
	f.create(t, "P1", 5)
	f.create(t, "P2", 1)

	got, err := f.svc.CheckAvailability(context.Background(), []StockLine{
		{ProductID: "P1", Quantity: 3},
		{ProductID: "P1", Quantity: 2},
		{ProductID: "P2", Quantity: 2},
		{ProductID: "ghost", Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"P1": true, "P2": false, "ghost": false}, got)
}

func TestIsAvailable_CountsExpiredHolds(t *testing.T) {
	f := newFixture(t)
	f.create(t, "P1", 5)
	_, err := f.svc.Reserve(context.Background(), "P1", 5, time.Minute, "")
	require.NoError(t, err)

	ok, err := f.svc.IsAvailable(context.Background(), "P1", 1)
	require.NoError(t, err)
	assert.False(t, ok)

	f.clock.Advance(2 * time.Minute)
	ok, err = f.svc.IsAvailable(context.Background(), "P1", 5)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReserveBatch_AllOrNothing(t *testing.T) {
	f := newFixture(t)
	f.create(t, "P1", 10)
	f.create(t, "P2", 1)

	res, err := f.svc.ReserveBatch(context.Background(), &ReserveBatchRequest{
		CustomerID: "C1",
		Items:      []StockLine{{ProductID: "P1", Quantity: 2}, {ProductID: "P2", Quantity: 5}},
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Empty(t, res.ReservationID)
	assert.Equal(t, []string{"P2"}, res.UnavailableProducts)
	assert.Contains(t, res.Error, "insufficient stock")

	assert.Equal(t, 10, f.available(t, "P1"))
	dto, err := f.svc.GetByProductID(context.Background(), "P1")
	require.NoError(t, err)
	assert.Empty(t, dto.Reservations)
}

func TestReserveBatch_ReleaseBatch(t *testing.T) {
	f := newFixture(t)
	f.create(t, "P1", 10)
	f.create(t, "P2", 10)
	ctx := context.Background()

	res, err := f.svc.ReserveBatch(ctx, &ReserveBatchRequest{
		CustomerID: "C1",
		Items:      []StockLine{{ProductID: "P1", Quantity: 2}, {ProductID: "P2", Quantity: 3}},
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, map[string]int{"P1": 2, "P2": 3}, res.ReservedQuantities)
	assert.Equal(t, 8, f.available(t, "P1"))

	dto, err := f.svc.GetByProductID(ctx, "P2")
	require.NoError(t, err)
	require.Len(t, dto.Reservations, 1)
	assert.Equal(t, res.ReservationID, dto.Reservations[0].Reference)
	assert.Equal(t, f.clock.Now().Add(15*time.Minute), dto.Reservations[0].ExpiresAt)

	released, err := f.svc.ReleaseBatch(ctx, res.ReservationID, "Checkout compensation")
	require.NoError(t, err)
	assert.Equal(t, 2, released)
	assert.Equal(t, 10, f.available(t, "P1"))
	assert.Equal(t, 10, f.available(t, "P2"))

	released, err = f.svc.ReleaseBatch(ctx, res.ReservationID, "again")
	require.NoError(t, err)
	assert.Zero(t, released)
}

func TestConfirmBatch(t *testing.T) {
	f := newFixture(t)
	f.create(t, "P1", 10)
	ctx := context.Background()

	res, err := f.svc.ReserveBatch(ctx, &ReserveBatchRequest{CustomerID: "C1", Items: []StockLine{{ProductID: "P1", Quantity: 4}}})
	require.NoError(t, err)
	require.True(t, res.Success)

	confirmed, err := f.svc.ConfirmBatch(ctx, res.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, 1, confirmed)

	dto, err := f.svc.GetByProductID(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 6, dto.TotalQuantity)
	assert.Empty(t, dto.Reservations)
}

func TestConfirmBatch_ExpiredHoldConfirmsNothing(t *testing.T) {
	f := newFixture(t)
	f.create(t, "P1", 10)
	f.create(t, "P2", 10)
	ctx := context.Background()

	_, err := f.svc.Reserve(ctx, "P1", 2, time.Hour, "B1")
	require.NoError(t, err)
	_, err = f.svc.Reserve(ctx, "P2", 3, time.Minute, "B1")
	require.NoError(t, err)

	f.clock.Advance(5 * time.Minute)
	confirmed, err := f.svc.ConfirmBatch(ctx, "B1")
	assert.ErrorIs(t, err, domain.ErrInvalidReservation)
	assert.Contains(t, err.Error(), "P2")
	assert.Zero(t, confirmed)

	dto, err := f.svc.GetByProductID(ctx, "P1")
	require.NoError(t, err)
	assert.Len(t, dto.Reservations, 1)
	assert.Equal(t, 10, dto.TotalQuantity)
}

func TestConfirm_PublishesLowStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateItem(ctx, &CreateItemRequest{ProductID: "P1", InitialQuantity: 10, ReorderLevel: 5, MaxStockLevel: 100})
	require.NoError(t, err)

	r, err := f.svc.Reserve(ctx, "P1", 6, time.Minute, "")
	require.NoError(t, err)
	require.NoError(t, f.svc.Confirm(ctx, "P1", r.ID))

	assert.Equal(t, []string{domain.EventStockReserved, domain.EventInventoryUpdated, domain.EventLowStockAlert}, f.pub.types())
}

func TestSweepExpired_CountsOnlyReleasedHolds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateItem(ctx, &CreateItemRequest{ProductID: "P1", InitialQuantity: 3, ReorderLevel: 5, MaxStockLevel: 100})
	require.NoError(t, err)
	_, err = f.svc.Reserve(ctx, "P1", 1, time.Minute, "")
	require.NoError(t, err)

	f.clock.Advance(5 * time.Minute)
	swept, err := f.svc.SweepExpired(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
	assert.Equal(t, 1.0, counterValue(t, f.m.ExpiredSweptTotal))
}

func TestSweepExpired(t *testing.T) {
	f := newFixture(t)
	f.create(t, "P1", 10)
	f.create(t, "P2", 10)
	ctx := context.Background()

	_, err := f.svc.Reserve(ctx, "P1", 3, time.Minute, "")
	require.NoError(t, err)
	_, err = f.svc.Reserve(ctx, "P2", 3, time.Hour, "")
	require.NoError(t, err)

	f.clock.Advance(5 * time.Minute)
	swept, err := f.svc.SweepExpired(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
	assert.Equal(t, 10, f.available(t, "P1"))
	assert.Equal(t, 7, f.available(t, "P2"))
	assert.Equal(t, 1.0, counterValue(t, f.m.ExpiredSweptTotal))
}

func TestLowStockItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateItem(ctx, &CreateItemRequest{ProductID: "P1", InitialQuantity: 3, ReorderLevel: 5, MaxStockLevel: 100})
	require.NoError(t, err)
	f.create(t, "P2", 50)

	low, err := f.svc.LowStockItems(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "P1", low[0].ProductID)
	assert.Contains(t, f.pub.types(), domain.EventLowStockAlert)
}

type fakeLocker struct {
	mu      sync.Mutex
	err     error
	locks   int
	unlocks int
}

func (l *fakeLocker) Lock(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.locks++
	return nil
}

func (l *fakeLocker) Unlock() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unlocks++
	return nil
}

func TestSweeper_SkipsWithoutLock(t *testing.T) {
	f := newFixture(t)
	f.create(t, "P1", 10)
	_, err := f.svc.Reserve(context.Background(), "P1", 3, time.Minute, "")
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	busy := &fakeLocker{err: errors.New("held elsewhere")}
	NewSweeper(f.svc, busy, time.Second).sweepOnce(context.Background())
	assert.Equal(t, 7, f.available(t, "P1"))

	free := &fakeLocker{}
	NewSweeper(f.svc, free, time.Second).sweepOnce(context.Background())
	assert.Equal(t, 10, f.available(t, "P1"))
	assert.Equal(t, 1, free.locks)
	assert.Equal(t, 1, free.unlocks)
}
