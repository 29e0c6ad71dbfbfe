package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace/noop"
)

type funcHandler struct {
	NextHandler
	fn func(cc *CheckoutContext) error
}

func (h *funcHandler) Handle(cc *CheckoutContext) error {
	if err := h.fn(cc); err != nil {
		return err
	}
	return h.executeNext(cc)
}

func newTransaction(steps ...func(cc *CheckoutContext) error) Handler {
	head := &TransactionHandler{deps: &Deps{Tracer: noop.NewTracerProvider().Tracer("test")}}
	var tail Handler = head
	for _, fn := range steps {
		tail = tail.SetNext(&funcHandler{fn: fn})
	}
	return head
}

func TestTransactionHandler_CompensatesInReverseOrder(t *testing.T) {
	var order []string
	register := func(name string) func(cc *CheckoutContext) error {
		return func(cc *CheckoutContext) error {
			cc.AddCompensation(name, func(context.Context) error {
				order = append(order, name)
				return nil
			})
			return nil
		}
	}
	chain := newTransaction(register("first"), register("second"), func(*CheckoutContext) error {
		return errors.New("boom")
	})

	cc := NewCheckoutContext(context.Background(), Request{CustomerID: "C1"})
	assert.EqualError(t, chain.Handle(cc), "boom")
	assert.Equal(t, []string{"second", "first"}, order)

	// 补偿栈已清空，重复触发不会再执行
	newTransaction().(*TransactionHandler).deps.compensate(cc)
	assert.Len(t, order, 2)
}

func TestTransactionHandler_CommitDropsCompensations(t *testing.T) {
	calls := 0
	chain := newTransaction(
		func(cc *CheckoutContext) error {
			cc.AddCompensation("release", func(context.Context) error { calls++; return nil })
			return nil
		},
		func(cc *CheckoutContext) error { cc.Commit(); return nil },
		func(*CheckoutContext) error { return errors.New("after commit") },
	)
	assert.Error(t, chain.Handle(NewCheckoutContext(context.Background(), Request{})))
	assert.Zero(t, calls)
}

func TestTransactionHandler_RecoversPanic(t *testing.T) {
	calls := 0
	chain := newTransaction(
		func(cc *CheckoutContext) error {
			cc.AddCompensation("release", func(context.Context) error { calls++; return errors.New("still failing") })
			return nil
		},
		func(*CheckoutContext) error { panic("unexpected") },
	)
	err := chain.Handle(NewCheckoutContext(context.Background(), Request{}))
	assert.ErrorContains(t, err, "panic recovered: unexpected")
	assert.Equal(t, 1, calls)
}
