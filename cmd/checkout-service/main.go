// cmd/checkout-service/main.go
package main

import (
	"context"

	"storefront/internal/pkg/bootstrap"
	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/redis"
	cartapp "storefront/internal/service/cart/application"
	cartdomain "storefront/internal/service/cart/domain"
	cartinfra "storefront/internal/service/cart/infrastructure"
	cartapi "storefront/internal/service/cart/interfaces"
	"storefront/internal/service/checkout/application"
	"storefront/internal/service/checkout/application/saga"
	"storefront/internal/service/checkout/domain/port"
	"storefront/internal/service/checkout/infrastructure"
	"storefront/internal/service/checkout/infrastructure/adapter"
	"storefront/internal/service/checkout/interfaces"
)

const (
	serviceName = "checkout-service"
	defaultPort = 8084
)

// 购物车和结账在同一个进程：结账直接读写购物车存储
func main() {
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      serviceName,
		Port:             defaultPort,
		RegisterHandlers: registerHandlers,
	})
}

func registerHandlers(app *bootstrap.AppCtx) error {
	cfg := app.Config

	var (
		carts cartdomain.CartRepository
		guard port.CheckoutGuard
	)
	if cfg.Infra.Redis.Addrs == "" {
		logger.Ctx(context.Background()).Warn().Msg("Redis not configured, using in-memory cart store")
		carts = cartinfra.NewMemoryCartRepository()
		guard = infrastructure.NewMemoryCheckoutGuard()
	} else {
		client, err := redis.NewClient(cfg.Infra.Redis.Addrs)
		if err != nil {
			return err
		}
		app.OnShutdown(func(context.Context) error { return client.Close() })

		redisCarts, err := cartinfra.NewRedisCartRepository(client, cfg.Cart.Expiry)
		if err != nil {
			return err
		}
		redisGuard, err := infrastructure.NewRedisCheckoutGuard(client)
		if err != nil {
			return err
		}
		carts, guard = redisCarts, redisGuard
	}

	// 下游适配器
	inventory := adapter.NewInventoryHTTPAdapter(app.HTTP, cfg.Checkout.ReservationTTL)
	pricing := adapter.NewPricingHTTPAdapter(app.HTTP)
	orders := adapter.NewOrderHTTPAdapter(app.HTTP)

	bus := app.NewEventBus()

	cartService := cartapp.NewCartService(carts, bus, inventory, pricing, app.Tracer)
	cartapi.NewCartHandler(cartService).RegisterRoutes(app.Mux)

	orchestrator := application.NewCheckoutOrchestrator(carts, inventory, pricing, orders, bus, app.Tracer, app.Metrics,
		application.WithTimeouts(cfg.Checkout.Timeout, saga.Timeouts{
			Inventory:    cfg.Checkout.InventoryTimeout,
			Pricing:      cfg.Checkout.PricingTimeout,
			Order:        cfg.Checkout.OrderTimeout,
			Compensation: cfg.Checkout.CompensationTimeout,
		}),
		application.WithGuard(guard, cfg.Checkout.IdempotencyTTL),
	)
	interfaces.NewCheckoutHandler(orchestrator).RegisterRoutes(app.Mux)
	return nil
}
