package saga

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"storefront/internal/pkg/logger"
)

// TransactionHandler 位于链首，负责整条链的回滚：
// 链中任何位置返回错误（或 panic）时执行所有尚未提交的补偿。
type TransactionHandler struct {
	NextHandler
	deps *Deps
}

func (h *TransactionHandler) Handle(cc *CheckoutContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic recovered: %v", r)
		}
		if err != nil {
			h.deps.compensate(cc)
		}
	}()
	return h.executeNext(cc)
}

// compensate 在脱离调用方取消信号的 context 上执行补偿，调用方放弃请求后预留仍会被释放
func (d *Deps) compensate(cc *CheckoutContext) {
	comps := cc.takeCompensations()
	if len(comps) == 0 {
		return
	}

	ctx, cancel := withTimeout(context.WithoutCancel(cc.Ctx), d.Timeouts.Compensation)
	defer cancel()
	ctx, span := d.Tracer.Start(ctx, "saga.Compensate")
	defer span.End()
	span.SetAttributes(attribute.Int("compensation.count", len(comps)))

	log := logger.Ctx(ctx)
	log.Warn().Str("customer_id", cc.Request.CustomerID).Int("count", len(comps)).Msg("Executing checkout compensations")
	for _, c := range comps {
		result := "success"
		if err := c.fn(ctx); err != nil {
			result = "failed"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			// 补偿失败时预留靠 TTL 过期后由清理任务回收
			log.Error().Err(err).Str("action", c.action).Msg("Compensation failed")
		}
		if d.Metrics != nil {
			d.Metrics.CompensationsTotal.WithLabelValues(c.action, result).Inc()
		}
	}
}
