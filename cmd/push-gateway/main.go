// cmd/push-gateway/main.go
package main

import (
	"storefront/internal/pkg/bootstrap"
	"storefront/internal/service/push"
)

const (
	serviceName = "push-gateway"
	defaultPort = 8085
)

func main() {
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      serviceName,
		Port:             defaultPort,
		RegisterHandlers: registerHandlers,
	})
}

func registerHandlers(app *bootstrap.AppCtx) error {
	hub := push.NewHub()
	app.Go(hub.Run)
	app.Mux.HandleFunc("GET /ws", push.ServeWs(hub))

	// 客户可能连在任意节点上，每个节点都要收到全部事件，再按 customerId 推给本节点的连接
	handler := push.NewEventHandler(hub)
	for _, topic := range push.Topics {
		app.Broadcast(topic, handler.Handle)
	}
	return nil
}
