package infrastructure

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"storefront/internal/pkg/redis"
	"storefront/internal/service/cart/domain"
)

const (
	saveCartScriptName = "save_cart"
	defaultExpiry      = 7 * 24 * time.Hour
)

// saveCartScript 只有存储中的版本与期望版本一致时才写入，并刷新过期时间。
// KEYS[1] 购物车 key；ARGV: 期望版本、新版本、JSON、过期毫秒数
var saveCartScript = `
local current = redis.call('HGET', KEYS[1], 'version')
if (current or '0') ~= ARGV[1] then
    return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[2], 'data', ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1
`

// RedisCartRepository 是 domain.CartRepository 的 Redis 实现。
// 每个客户一个 hash，过期时间即购物车的遗弃期限，每次保存都会续期。
type RedisCartRepository struct {
	client *redis.Client
	expiry time.Duration
}

func NewRedisCartRepository(client *redis.Client, expiry time.Duration) (*RedisCartRepository, error) {
	if expiry <= 0 {
		expiry = defaultExpiry
	}
	if err := client.LoadScriptFromContent(saveCartScriptName, saveCartScript); err != nil {
		return nil, errors.Wrap(err, "failed to load cart script")
	}
	return &RedisCartRepository{client: client, expiry: expiry}, nil
}

func cartKey(customerID string) string {
	return "cart:{" + customerID + "}"
}

func (r *RedisCartRepository) FindByCustomerID(ctx context.Context, customerID string) (*domain.Cart, error) {
	data, err := r.client.GetClient().HGet(ctx, cartKey(customerID), "data").Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, errors.Wrapf(domain.ErrCartNotFound, "customer %s", customerID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, errors.Wrap(err, "decode cart")
	}
	return &cart, nil
}

func (r *RedisCartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	expected := cart.Version
	cart.Version++
	data, err := json.Marshal(cart)
	if err != nil {
		cart.Version = expected
		return errors.Wrap(err, "encode cart")
	}

	result, err := r.client.RunScript(ctx, saveCartScriptName, []string{cartKey(cart.CustomerID)},
		strconv.FormatInt(expected, 10), strconv.FormatInt(cart.Version, 10), data, r.expiry.Milliseconds())
	if err != nil {
		cart.Version = expected
		return errors.Wrap(err, "save cart")
	}
	if code, _ := result.(int64); code != 1 {
		cart.Version = expected
		return errors.Wrapf(domain.ErrConcurrentModification, "customer %s at version %d", cart.CustomerID, expected)
	}
	return nil
}

func (r *RedisCartRepository) Delete(ctx context.Context, customerID string) error {
	return errors.Wrap(r.client.GetClient().Del(ctx, cartKey(customerID)).Err(), "delete cart")
}
