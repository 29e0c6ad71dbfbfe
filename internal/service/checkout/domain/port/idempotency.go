package port

import (
	"context"
	"errors"
	"time"
)

// ErrCheckoutInProgress 表示同一客户（或同一幂等键）的结账正在进行或刚刚完成。
var ErrCheckoutInProgress = errors.New("checkout already in progress")

// CheckoutGuard 防止同一客户重复提交结账。
type CheckoutGuard interface {
	// Acquire 成功时返回持有凭证；key 已被占用时返回 ErrCheckoutInProgress。
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	// Release 只在凭证匹配时删除 key。
	Release(ctx context.Context, key, token string) error
}
