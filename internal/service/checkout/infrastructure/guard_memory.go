package infrastructure

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"storefront/internal/service/checkout/domain/port"
)

type guardEntry struct {
	token     string
	expiresAt time.Time
}

// MemoryCheckoutGuard 是单实例部署和测试使用的进程内实现
type MemoryCheckoutGuard struct {
	mu      sync.Mutex
	entries map[string]guardEntry
	now     func() time.Time
}

func NewMemoryCheckoutGuard() *MemoryCheckoutGuard {
	return &MemoryCheckoutGuard{entries: make(map[string]guardEntry), now: time.Now}
}

func (g *MemoryCheckoutGuard) Acquire(_ context.Context, key string, ttl time.Duration) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if e, ok := g.entries[key]; ok && now.Before(e.expiresAt) {
		return "", port.ErrCheckoutInProgress
	}
	token := uuid.NewString()
	g.entries[key] = guardEntry{token: token, expiresAt: now.Add(ttl)}
	return token, nil
}

func (g *MemoryCheckoutGuard) Release(_ context.Context, key, token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if e, ok := g.entries[key]; ok && e.token == token {
		delete(g.entries, key)
	}
	return nil
}
