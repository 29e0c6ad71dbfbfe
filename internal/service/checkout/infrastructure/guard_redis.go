package infrastructure

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"storefront/internal/pkg/redis"
	"storefront/internal/service/checkout/domain/port"
)

const releaseGuardScriptName = "release_checkout_guard"

// releaseGuardScript 只删除自己持有的 key，避免误删过期后被他人重新获取的锁。
// KEYS[1] 保护 key；ARGV[1] 持有凭证
var releaseGuardScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// RedisCheckoutGuard 用 SET NX PX 实现结账重复提交保护
type RedisCheckoutGuard struct {
	client *redis.Client
}

func NewRedisCheckoutGuard(client *redis.Client) (*RedisCheckoutGuard, error) {
	if err := client.LoadScriptFromContent(releaseGuardScriptName, releaseGuardScript); err != nil {
		return nil, errors.Wrap(err, "failed to load checkout guard script")
	}
	return &RedisCheckoutGuard{client: client}, nil
}

func (g *RedisCheckoutGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := g.client.GetClient().SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", errors.Wrap(err, "acquire checkout guard")
	}
	if !ok {
		return "", port.ErrCheckoutInProgress
	}
	return token, nil
}

func (g *RedisCheckoutGuard) Release(ctx context.Context, key, token string) error {
	if _, err := g.client.RunScript(ctx, releaseGuardScriptName, []string{key}, token); err != nil {
		return errors.Wrap(err, "release checkout guard")
	}
	return nil
}
