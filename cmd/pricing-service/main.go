// cmd/pricing-service/main.go
package main

import (
	"context"

	"storefront/internal/pkg/bootstrap"
	"storefront/internal/pkg/logger"
	"storefront/internal/service/pricing/application"
	"storefront/internal/service/pricing/domain"
	"storefront/internal/service/pricing/infrastructure"
	"storefront/internal/service/pricing/infrastructure/rule"
	"storefront/internal/service/pricing/interfaces"
)

const (
	serviceName = "pricing-service"
	defaultPort = 8082
)

func main() {
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      serviceName,
		Port:             defaultPort,
		RegisterHandlers: registerHandlers,
	})
}

func registerHandlers(app *bootstrap.AppCtx) error {
	cfg := app.Config.Pricing

	conditions, err := rule.NewCELConditionEvaluator()
	if err != nil {
		return err
	}
	store := infrastructure.NewYAMLPricingStore(conditions)
	if err := store.LoadFile(cfg.RulesFile); err != nil {
		return err
	}
	if cfg.RulesFile == "" {
		logger.Ctx(context.Background()).Warn().Msg("pricing.rulesFile not configured, using built-in catalog")
	}

	policy, err := application.ParseCartPolicy(cfg.TaxRate, cfg.BulkThreshold, cfg.BulkDiscountRate, cfg.BulkPromotionCode)
	if err != nil {
		return err
	}
	svc := application.NewPricingService(store, store, domain.NewEngine(conditions), app.Tracer, app.Metrics,
		application.WithCartPolicy(policy),
	)
	interfaces.NewPricingHandler(svc).RegisterRoutes(app.Mux)
	return nil
}
