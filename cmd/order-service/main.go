// cmd/order-service/main.go
package main

import (
	"context"

	"storefront/internal/pkg/bootstrap"
	"storefront/internal/pkg/logger"
	"storefront/internal/service/order/application"
	"storefront/internal/service/order/domain"
	"storefront/internal/service/order/infrastructure"
	"storefront/internal/service/order/interfaces"
)

const (
	serviceName = "order-service"
	defaultPort = 8083
)

// main 函数是应用的"组装根" (Composition Root)
func main() {
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      serviceName,
		Port:             defaultPort,
		RegisterHandlers: registerHandlers,
	})
}

func registerHandlers(app *bootstrap.AppCtx) error {
	cfg := app.Config

	var repo domain.OrderRepository
	if cfg.Infra.MySQL.Addr == "" {
		logger.Ctx(context.Background()).Warn().Msg("MySQL not configured, using in-memory order store")
		repo = infrastructure.NewMemoryOrderRepository()
	} else {
		db, err := bootstrap.OpenMySQL(cfg.Infra.MySQL)
		if err != nil {
			return err
		}
		if err := infrastructure.AutoMigrate(db); err != nil {
			return err
		}
		repo = infrastructure.NewGormOrderRepository(db)
	}

	svc := application.NewOrderService(repo, app.NewEventBus(), app.Tracer)
	interfaces.NewOrderHandler(svc).RegisterRoutes(app.Mux)
	return nil
}
