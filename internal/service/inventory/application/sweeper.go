package application

import (
	"context"
	"time"

	"storefront/internal/pkg/logger"
)

// Locker 是跨实例互斥锁，由 zookeeper.DistributedLock 实现。
type Locker interface {
	Lock(ctx context.Context) error
	Unlock() error
}

// Sweeper 定时把过期预留归还到可用库存。
// 多个实例同时运行时只有持有锁的实例执行清理。
type Sweeper struct {
	service   *InventoryService
	lock      Locker
	interval  time.Duration
	batchSize int
}

// NewSweeper lock 为 nil 时不做跨实例互斥。
func NewSweeper(service *InventoryService, lock Locker, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Sweeper{service: service, lock: lock, interval: interval, batchSize: 200}
}

// Run 阻塞直到 ctx 取消。
func (s *Sweeper) Run(ctx context.Context) error {
	logger.Ctx(ctx).Info().Dur("interval", s.interval).Msg("Reservation sweeper started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepOnce(ctx)
		case <-ctx.Done():
			logger.Ctx(ctx).Info().Msg("Reservation sweeper stopped")
			return nil
		}
	}
}

func (s *Sweeper) sweepOnce(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, s.interval)
	defer cancel()

	if s.lock != nil {
		if err := s.lock.Lock(ctx); err != nil {
			// 其他实例正在清理
			logger.Ctx(ctx).Debug().Err(err).Msg("Sweeper lock not acquired, skipping this round")
			return
		}
		defer func() {
			if err := s.lock.Unlock(); err != nil {
				logger.Ctx(ctx).Warn().Err(err).Msg("Failed to release sweeper lock")
			}
		}()
	}

	for {
		swept, err := s.service.SweepExpired(ctx, s.batchSize)
		if err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("Reservation sweep failed")
			return
		}
		if swept > 0 {
			logger.Ctx(ctx).Info().Int("swept", swept).Msg("Expired reservations returned to stock")
		}
		if swept < s.batchSize || ctx.Err() != nil {
			return
		}
	}
}
