package saga

import (
	"context"
	"sync"
	"time"

	"storefront/internal/pkg/domainevent"
	cartdomain "storefront/internal/service/cart/domain"
	"storefront/internal/service/checkout/domain/port"
)

// Request 是一次结账的输入
type Request struct {
	CustomerID      string
	ShippingAddress string
	PaymentMethod   string
	Metadata        map[string]string
}

// CompensationFunc 定义了补偿操作的函数签名
type CompensationFunc func(ctx context.Context) error

type compensation struct {
	action string
	fn     CompensationFunc
}

// CheckoutContext 用于在链中传递一次结账所需的所有数据
type CheckoutContext struct {
	Ctx     context.Context
	Request Request

	Cart          *cartdomain.Cart
	Unavailable   []string
	ReservationID string
	Pricing       *port.CartPricing
	OrderID       string
	CompletedAt   time.Time

	events []domainevent.Event

	// 补偿函数栈
	compensations []compensation
	compLock      sync.Mutex
}

func NewCheckoutContext(ctx context.Context, req Request) *CheckoutContext {
	return &CheckoutContext{Ctx: ctx, Request: req}
}

// AddCompensation 将一个补偿函数推入栈中，后注册的先执行
func (c *CheckoutContext) AddCompensation(action string, fn CompensationFunc) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	c.compensations = append([]compensation{{action: action, fn: fn}}, c.compensations...)
}

// Commit 丢弃已注册的补偿：此后的失败不再回滚之前的步骤
func (c *CheckoutContext) Commit() {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	c.compensations = nil
}

// takeCompensations 取出并清空补偿栈，保证每个补偿最多执行一次
func (c *CheckoutContext) takeCompensations() []compensation {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	comps := c.compensations
	c.compensations = nil
	return comps
}

func (c *CheckoutContext) addEvents(events ...domainevent.Event) {
	c.events = append(c.events, events...)
}

func (c *CheckoutContext) drainEvents() []domainevent.Event {
	events := c.events
	c.events = nil
	return events
}
