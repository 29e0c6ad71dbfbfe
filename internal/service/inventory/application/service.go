package application

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"storefront/internal/pkg/domainevent"
	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/metrics"
	"storefront/internal/service/inventory/domain"
)

const reasonBatchRollback = "Batch reservation failed"

// errNoChange 由变更函数返回，表示无需持久化。
var errNoChange = errors.New("no change")

// InventoryService 定义了库存服务提供的所有业务用例
type InventoryService struct {
	repo       domain.InventoryRepository
	publisher  domainevent.Publisher
	tracer     trace.Tracer
	metrics    *metrics.Metrics
	now        func() time.Time
	casRetries int
	defaultTTL time.Duration
}

type Option func(*InventoryService)

// WithClock 替换时间源，测试使用。
func WithClock(now func() time.Time) Option {
	return func(s *InventoryService) { s.now = now }
}

// WithCASRetries 设置乐观锁冲突时的最大重试次数。
func WithCASRetries(n int) Option {
	return func(s *InventoryService) {
		if n > 0 {
			s.casRetries = n
		}
	}
}

// WithDefaultTTL 设置批量预留未指定时长时的默认值。
func WithDefaultTTL(ttl time.Duration) Option {
	return func(s *InventoryService) {
		if ttl > 0 {
			s.defaultTTL = ttl
		}
	}
}

// NewInventoryService 创建一个新的库存服务实例
func NewInventoryService(repo domain.InventoryRepository, publisher domainevent.Publisher, tracer trace.Tracer, m *metrics.Metrics, opts ...Option) *InventoryService {
	s := &InventoryService{
		repo:       repo,
		publisher:  publisher,
		tracer:     tracer,
		metrics:    m,
		now:        func() time.Time { return time.Now().UTC() },
		casRetries: 3,
		defaultTTL: 15 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// mutate 执行 加载-变更-保存 循环，遇到版本冲突时重新加载重试。
func (s *InventoryService) mutate(ctx context.Context, productID string, fn func(item *domain.InventoryItem, at time.Time) ([]domainevent.Event, error)) (*domain.InventoryItem, time.Time, error) {
	var lastErr error
	for attempt := 0; attempt <= s.casRetries; attempt++ {
		item, err := s.repo.FindByProductID(ctx, productID)
		if err != nil {
			return nil, time.Time{}, err
		}
		at := s.now()
		events, err := fn(item, at)
		if errors.Is(err, errNoChange) {
			return item, at, nil
		}
		if err != nil {
			return nil, at, err
		}

		err = s.repo.Save(ctx, item)
		if errors.Is(err, domain.ErrConcurrentModification) {
			lastErr = err
			logger.Ctx(ctx).Warn().Str("product_id", productID).Int("attempt", attempt+1).Msg("Inventory version conflict, retrying")
			continue
		}
		if err != nil {
			return nil, at, errors.Wrap(err, "failed to save inventory item")
		}
		s.publish(ctx, events)
		return item, at, nil
	}
	return nil, time.Time{}, lastErr
}

// publish 在持久化成功后发布事件；发布失败不回滚已提交的状态。
func (s *InventoryService) publish(ctx context.Context, events []domainevent.Event) {
	if len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		logger.Ctx(ctx).Error().Err(err).Strs("events", domainevent.Types(events)).Msg("Failed to publish inventory events")
	}
}

func (s *InventoryService) countReservation(op string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInsufficientStock):
		result = "insufficient"
	default:
		result = "error"
	}
	s.metrics.ReservationsTotal.WithLabelValues(op, result).Inc()
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// CreateItem 为商品建立库存条目
func (s *InventoryService) CreateItem(ctx context.Context, req *CreateItemRequest) (*ItemDTO, error) {
	ctx, span := s.tracer.Start(ctx, "service.CreateItem")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", req.ProductID))

	at := s.now()
	item, events, err := domain.NewInventoryItem(at, req.ProductID, req.InitialQuantity, req.ReorderLevel, req.MaxStockLevel)
	if err != nil {
		return nil, fail(span, err)
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, fail(span, err)
	}
	s.publish(ctx, events)

	logger.Ctx(ctx).Info().Str("product_id", item.ProductID).Int("quantity", item.AvailableQuantity).Msg("Inventory item created")
	return toItemDTO(item, at), nil
}

func (s *InventoryService) GetByProductID(ctx context.Context, productID string) (*ItemDTO, error) {
	item, err := s.repo.FindByProductID(ctx, productID)
	if err != nil {
		return nil, err
	}
	return toItemDTO(item, s.now()), nil
}

// Reserve 为单个商品预留库存
func (s *InventoryService) Reserve(ctx context.Context, productID string, quantity int, duration time.Duration, reference string) (*ReservationDTO, error) {
	ctx, span := s.tracer.Start(ctx, "service.Reserve")
	defer span.End()
	span.SetAttributes(
		attribute.String("product.id", productID),
		attribute.Int("quantity", quantity),
	)

	var reservation domain.StockReservation
	_, at, err := s.mutate(ctx, productID, func(item *domain.InventoryItem, at time.Time) ([]domainevent.Event, error) {
		r, events, err := item.Reserve(at, quantity, duration, reference)
		reservation = r
		return events, err
	})
	s.countReservation("reserve", err)
	if err != nil {
		return nil, fail(span, err)
	}

	span.AddEvent("Stock reserved", trace.WithAttributes(attribute.String("reservation.id", reservation.ID)))
	dto := toReservationDTO(reservation, at)
	return &dto, nil
}

// Release 释放单个预留
func (s *InventoryService) Release(ctx context.Context, productID, reservationID, reason string) error {
	ctx, span := s.tracer.Start(ctx, "service.Release")
	defer span.End()

	_, _, err := s.mutate(ctx, productID, func(item *domain.InventoryItem, at time.Time) ([]domainevent.Event, error) {
		return item.Release(at, reservationID, reason)
	})
	s.countReservation("release", err)
	if err != nil {
		return fail(span, err)
	}
	return nil
}

// Confirm 确认单个预留
func (s *InventoryService) Confirm(ctx context.Context, productID, reservationID string) error {
	ctx, span := s.tracer.Start(ctx, "service.Confirm")
	defer span.End()

	_, _, err := s.mutate(ctx, productID, func(item *domain.InventoryItem, at time.Time) ([]domainevent.Event, error) {
		return item.Confirm(at, reservationID)
	})
	s.countReservation("confirm", err)
	if err != nil {
		return fail(span, err)
	}
	return nil
}

func (s *InventoryService) AdjustStock(ctx context.Context, req *AdjustStockRequest) (*ItemDTO, error) {
	ctx, span := s.tracer.Start(ctx, "service.AdjustStock")
	defer span.End()

	item, at, err := s.mutate(ctx, req.ProductID, func(item *domain.InventoryItem, at time.Time) ([]domainevent.Event, error) {
		return item.AdjustStock(at, req.Delta, req.Reason)
	})
	if err != nil {
		return nil, fail(span, err)
	}
	return toItemDTO(item, at), nil
}

func (s *InventoryService) UpdateStockLevels(ctx context.Context, req *UpdateLevelsRequest) (*ItemDTO, error) {
	ctx, span := s.tracer.Start(ctx, "service.UpdateStockLevels")
	defer span.End()

	item, at, err := s.mutate(ctx, req.ProductID, func(item *domain.InventoryItem, at time.Time) ([]domainevent.Event, error) {
		return item.UpdateStockLevels(at, req.ReorderLevel, req.MaxStockLevel)
	})
	if err != nil {
		return nil, fail(span, err)
	}
	return toItemDTO(item, at), nil
}

// LowStockItems 返回总库存不高于补货线的条目
func (s *InventoryService) LowStockItems(ctx context.Context) ([]*ItemDTO, error) {
	candidates, err := s.repo.FindLowStock(ctx)
	if err != nil {
		return nil, err
	}
	at := s.now()
	result := make([]*ItemDTO, 0, len(candidates))
	for _, item := range candidates {
		if item.IsLowStock(at) {
			result = append(result, toItemDTO(item, at))
		}
	}
	return result, nil
}

// IsAvailable 商品不存在视为不可用
func (s *InventoryService) IsAvailable(ctx context.Context, productID string, quantity int) (bool, error) {
	item, err := s.repo.FindByProductID(ctx, productID)
	if errors.Is(err, domain.ErrInventoryNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	// 已过期但未清理的预留在下一次 Reserve 时会先归还
	at := s.now()
	free := item.AvailableQuantity
	for _, r := range item.Reservations {
		if r.IsExpired(at) {
			free += r.Quantity
		}
	}
	return free >= quantity, nil
}

// CheckAvailability 并发查询每个商品，同一商品的多行数量合并后判断
func (s *InventoryService) CheckAvailability(ctx context.Context, lines []StockLine) (map[string]bool, error) {
	ctx, span := s.tracer.Start(ctx, "service.CheckAvailability")
	defer span.End()

	merged := mergeLines(lines)
	result := make(map[string]bool, len(merged))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, line := range merged {
		line := line
		g.Go(func() error {
			ok, err := s.IsAvailable(gctx, line.ProductID, line.Quantity)
			if err != nil {
				return errors.Wrapf(err, "check availability of %s", line.ProductID)
			}
			mu.Lock()
			result[line.ProductID] = ok
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fail(span, err)
	}
	return result, nil
}

// ReserveBatch 全有或全无：任一商品失败时释放本批已做的预留。
// 业务失败通过结果返回，基础设施错误通过 error 返回。
func (s *InventoryService) ReserveBatch(ctx context.Context, req *ReserveBatchRequest) (*ReserveBatchResult, error) {
	ctx, span := s.tracer.Start(ctx, "service.ReserveBatch")
	defer span.End()

	batchID := uuid.NewString()
	span.SetAttributes(
		attribute.String("customer.id", req.CustomerID),
		attribute.String("batch.id", batchID),
	)

	if len(req.Items) == 0 {
		return &ReserveBatchResult{Error: "no items to reserve"}, nil
	}
	ttl := s.defaultTTL
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}

	reserved := make(map[string]int)
	for _, line := range mergeLines(req.Items) {
		_, err := s.Reserve(ctx, line.ProductID, line.Quantity, ttl, batchID)
		if err == nil {
			reserved[line.ProductID] = line.Quantity
			continue
		}

		s.rollbackBatch(ctx, batchID, reserved)
		span.RecordError(err)
		switch {
		case errors.Is(err, domain.ErrInsufficientStock), errors.Is(err, domain.ErrInventoryNotFound):
			return &ReserveBatchResult{UnavailableProducts: []string{line.ProductID}, Error: err.Error()}, nil
		case errors.Is(err, domain.ErrInvalidInventory):
			return &ReserveBatchResult{Error: err.Error()}, nil
		default:
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	logger.Ctx(ctx).Info().Str("batch_id", batchID).Str("customer_id", req.CustomerID).Int("products", len(reserved)).Msg("Batch reservation succeeded")
	return &ReserveBatchResult{Success: true, ReservationID: batchID, ReservedQuantities: reserved}, nil
}

func (s *InventoryService) rollbackBatch(ctx context.Context, batchID string, reserved map[string]int) {
	for productID := range reserved {
		if _, err := s.releaseReference(ctx, productID, batchID, reasonBatchRollback); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("batch_id", batchID).Str("product_id", productID).Msg("Failed to roll back partial batch reservation")
		}
	}
}

// ReleaseBatch 释放批次下的所有预留，返回释放的预留数。
// 预留已过期并被清理时返回 0。
func (s *InventoryService) ReleaseBatch(ctx context.Context, batchID, reason string) (int, error) {
	ctx, span := s.tracer.Start(ctx, "service.ReleaseBatch")
	defer span.End()
	span.SetAttributes(attribute.String("batch.id", batchID))

	items, err := s.repo.FindByReference(ctx, batchID)
	if err != nil {
		return 0, fail(span, err)
	}
	released := 0
	for _, item := range items {
		n, err := s.releaseReference(ctx, item.ProductID, batchID, reason)
		if err != nil {
			return released, fail(span, err)
		}
		released += n
	}
	s.countReservation("release_batch", nil)
	return released, nil
}

func (s *InventoryService) releaseReference(ctx context.Context, productID, reference, reason string) (int, error) {
	count := 0
	_, _, err := s.mutate(ctx, productID, func(item *domain.InventoryItem, at time.Time) ([]domainevent.Event, error) {
		count = 0
		var events []domainevent.Event
		for _, id := range reservationsWithReference(item, reference) {
			evts, err := item.Release(at, id, reason)
			if err != nil {
				return nil, err
			}
			events = append(events, evts...)
			count++
		}
		if count == 0 {
			return nil, errNoChange
		}
		return events, nil
	})
	return count, err
}

// ConfirmBatch 确认批次下的所有预留，返回确认的预留数。
func (s *InventoryService) ConfirmBatch(ctx context.Context, batchID string) (int, error) {
	ctx, span := s.tracer.Start(ctx, "service.ConfirmBatch")
	defer span.End()

	items, err := s.repo.FindByReference(ctx, batchID)
	if err != nil {
		return 0, fail(span, err)
	}
	// 任一商品的预留已过期则整批不确认，由清理任务归还
	if expired := expiredInBatch(items, batchID, s.now()); len(expired) > 0 {
		err := &domain.InvalidReservationError{
			ReservationID: batchID,
			Reason:        "reservation has expired for " + strings.Join(expired, ", "),
		}
		return 0, fail(span, err)
	}
	confirmed := 0
	for _, item := range items {
		n := 0
		_, _, err := s.mutate(ctx, item.ProductID, func(item *domain.InventoryItem, at time.Time) ([]domainevent.Event, error) {
			var events []domainevent.Event
			ids := reservationsWithReference(item, batchID)
			if len(ids) == 0 {
				return nil, errNoChange
			}
			for _, id := range ids {
				evts, err := item.Confirm(at, id)
				if err != nil {
					return nil, err
				}
				events = append(events, evts...)
			}
			n = len(ids)
			return events, nil
		})
		if err != nil {
			return confirmed, fail(span, err)
		}
		confirmed += n
	}
	return confirmed, nil
}

// SweepExpired 清理最多 limit 个条目中的过期预留，返回归还的预留数。
func (s *InventoryService) SweepExpired(ctx context.Context, limit int) (int, error) {
	ctx, span := s.tracer.Start(ctx, "service.SweepExpired")
	defer span.End()

	items, err := s.repo.FindWithExpiredReservations(ctx, s.now(), limit)
	if err != nil {
		return 0, fail(span, err)
	}
	swept := 0
	for _, candidate := range items {
		n := 0
		_, _, err := s.mutate(ctx, candidate.ProductID, func(item *domain.InventoryItem, at time.Time) ([]domainevent.Event, error) {
			events := item.SweepExpired(at)
			n = countReleased(events)
			if n == 0 {
				return nil, errNoChange
			}
			return events, nil
		})
		if err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("product_id", candidate.ProductID).Msg("Failed to sweep expired reservations")
			continue
		}
		swept += n
	}
	if swept > 0 {
		s.metrics.ExpiredSweptTotal.Add(float64(swept))
	}
	span.SetAttributes(attribute.Int("swept", swept))
	return swept, nil
}

func reservationsWithReference(item *domain.InventoryItem, reference string) []string {
	var ids []string
	for _, r := range item.Reservations {
		if r.Reference == reference {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

func expiredInBatch(items []*domain.InventoryItem, reference string, at time.Time) []string {
	var products []string
	for _, item := range items {
		for _, r := range item.Reservations {
			if r.Reference == reference && r.IsExpired(at) {
				products = append(products, item.ProductID)
				break
			}
		}
	}
	sort.Strings(products)
	return products
}

func countReleased(events []domainevent.Event) int {
	n := 0
	for _, evt := range events {
		if _, ok := evt.(domain.StockReservationReleased); ok {
			n++
		}
	}
	return n
}

// mergeLines 按商品合并数量，并按商品 id 排序。
func mergeLines(lines []StockLine) []StockLine {
	totals := make(map[string]int)
	for _, l := range lines {
		totals[l.ProductID] += l.Quantity
	}
	merged := make([]StockLine, 0, len(totals))
	for id, qty := range totals {
		merged = append(merged, StockLine{ProductID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ProductID < merged[j].ProductID })
	return merged
}
