// cmd/api-gateway/main.go
package main

import (
	"storefront/internal/pkg/bootstrap"
	"storefront/internal/service/gateway"
)

const (
	serviceName = "api-gateway"
	defaultPort = 8080
)

func main() {
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      serviceName,
		Port:             defaultPort,
		RegisterHandlers: registerHandlers,
	})
}

func registerHandlers(app *bootstrap.AppCtx) error {
	gateway.New(gateway.DefaultRoutes, app.Resolver, app.Tracer).RegisterRoutes(app.Mux)
	return nil
}
