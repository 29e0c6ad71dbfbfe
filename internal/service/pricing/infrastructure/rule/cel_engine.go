package rule

import (
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"

	"storefront/internal/service/pricing/domain"
)

// CELConditionEvaluator 是 domain.ConditionEvaluator 基于 cel-go 的实现。
// 表达式可以引用 productId、category、customerId、customerType、quantity、orderAmount、basePrice。
// 编译结果按表达式缓存。
type CELConditionEvaluator struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

func NewCELConditionEvaluator() (*CELConditionEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("productId", cel.StringType),
		cel.Variable("category", cel.StringType),
		cel.Variable("customerId", cel.StringType),
		cel.Variable("customerType", cel.StringType),
		cel.Variable("quantity", cel.IntType),
		cel.Variable("orderAmount", cel.DoubleType),
		cel.Variable("basePrice", cel.DoubleType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cel env")
	}
	return &CELConditionEvaluator{env: env, programs: make(map[string]cel.Program)}, nil
}

// Compile 校验表达式并缓存，加载规则时调用以尽早暴露语法错误
func (e *CELConditionEvaluator) Compile(condition string) error {
	_, err := e.program(condition)
	return err
}

// Evaluate 实现了 domain.ConditionEvaluator 接口。
func (e *CELConditionEvaluator) Evaluate(condition string, facts domain.Facts) (bool, error) {
	prg, err := e.program(condition)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(map[string]any{
		"productId":    facts.ProductID,
		"category":     facts.Category,
		"customerId":   facts.CustomerID,
		"customerType": facts.CustomerType,
		"quantity":     int64(facts.Quantity),
		"orderAmount":  facts.OrderAmount.InexactFloat64(),
		"basePrice":    facts.BasePrice.InexactFloat64(),
	})
	if err != nil {
		return false, errors.Wrapf(err, "evaluate %q", condition)
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, errors.Errorf("condition %q did not evaluate to bool", condition)
	}
	return ok, nil
}

func (e *CELConditionEvaluator) program(condition string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.programs[condition]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, iss := e.env.Compile(condition)
	if iss != nil && iss.Err() != nil {
		return nil, errors.Wrapf(domain.ErrInvalidPricingRule, "compile %q: %v", condition, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, errors.Wrapf(domain.ErrInvalidPricingRule, "condition %q must return bool", condition)
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrInvalidPricingRule, "program %q: %v", condition, err)
	}

	e.mu.Lock()
	e.programs[condition] = prg
	e.mu.Unlock()
	return prg, nil
}
