// cmd/inventory-service/main.go
package main

import (
	"context"

	"storefront/internal/pkg/bootstrap"
	"storefront/internal/pkg/logger"
	"storefront/internal/service/inventory/application"
	"storefront/internal/service/inventory/domain"
	"storefront/internal/service/inventory/infrastructure"
	"storefront/internal/service/inventory/interfaces"
	"storefront/internal/zookeeper"
)

const (
	serviceName = "inventory-service"
	sweeperLock = "inventory-sweeper"
	defaultPort = 8081
)

func main() {
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      serviceName,
		Port:             defaultPort,
		RegisterHandlers: registerHandlers,
	})
}

func registerHandlers(app *bootstrap.AppCtx) error {
	cfg := app.Config

	var repo domain.InventoryRepository
	if cfg.Infra.MySQL.Addr == "" {
		logger.Ctx(context.Background()).Warn().Msg("MySQL not configured, using in-memory inventory store")
		repo = infrastructure.NewMemoryInventoryRepository()
	} else {
		db, err := bootstrap.OpenMySQL(cfg.Infra.MySQL)
		if err != nil {
			return err
		}
		if err := infrastructure.AutoMigrate(db); err != nil {
			return err
		}
		repo = infrastructure.NewGormInventoryRepository(db)
	}

	svc := application.NewInventoryService(repo, app.NewEventBus(), app.Tracer, app.Metrics,
		application.WithCASRetries(cfg.Inventory.CASRetries),
		application.WithDefaultTTL(cfg.Checkout.ReservationTTL),
	)
	interfaces.NewInventoryHandler(svc).RegisterRoutes(app.Mux)

	// 订单确认/取消时收尾对应的预留
	app.Consume(interfaces.OrderEventsTopic, interfaces.NewOrderEventHandler(svc).Handle)

	// 过期预留清理：配置了 ZooKeeper 时多实例互斥执行
	var lock application.Locker
	if cfg.Infra.Zookeeper.Servers != "" {
		conn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers, cfg.Infra.Zookeeper.SessionTimeout)
		if err != nil {
			return err
		}
		app.OnShutdown(func(context.Context) error { conn.Close(); return nil })

		zkLock, err := zookeeper.NewDistributedLock(conn, sweeperLock)
		if err != nil {
			return err
		}
		lock = zkLock
	}
	sweeper := application.NewSweeper(svc, lock, cfg.Inventory.SweepInterval)
	app.Go(sweeper.Run)
	return nil
}
