package infrastructure

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/pkg/redis"
	"storefront/internal/service/checkout/domain/port"
)

func guards(t *testing.T) map[string]port.CheckoutGuard {
	all := map[string]port.CheckoutGuard{"memory": NewMemoryCheckoutGuard()}
	if testing.Short() {
		return all
	}
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		_ = rdb.Close()
		t.Logf("Redis not available, testing memory guard only: %v", err)
		return all
	}
	t.Cleanup(func() { _ = rdb.Close() })
	g, err := NewRedisCheckoutGuard(redis.Wrap(rdb))
	require.NoError(t, err)
	all["redis"] = g
	return all
}

func TestCheckoutGuard(t *testing.T) {
	for name, g := range guards(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := "checkout:{test-" + uuid.NewString() + "}"

			token, err := g.Acquire(ctx, key, time.Minute)
			require.NoError(t, err)
			require.NotEmpty(t, token)

			_, err = g.Acquire(ctx, key, time.Minute)
			assert.ErrorIs(t, err, port.ErrCheckoutInProgress)

			// 其他持有者的凭证不能释放
			require.NoError(t, g.Release(ctx, key, "someone-else"))
			_, err = g.Acquire(ctx, key, time.Minute)
			assert.ErrorIs(t, err, port.ErrCheckoutInProgress)

			require.NoError(t, g.Release(ctx, key, token))
			again, err := g.Acquire(ctx, key, time.Minute)
			require.NoError(t, err)
			require.NoError(t, g.Release(ctx, key, again))
		})
	}
}

func TestMemoryCheckoutGuard_Expiry(t *testing.T) {
	g := NewMemoryCheckoutGuard()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	_, err := g.Acquire(context.Background(), "k", time.Second)
	require.NoError(t, err)
	now = now.Add(2 * time.Second)
	_, err = g.Acquire(context.Background(), "k", time.Second)
	assert.NoError(t, err)
}
