package infrastructure

import (
	"context"
	_ "embed"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"storefront/internal/service/pricing/domain"
)

//go:embed default_pricing.yaml
var defaultPricing []byte

// ConditionCompiler 在加载时校验规则条件，可为 nil
type ConditionCompiler interface {
	Compile(condition string) error
}

type pricingFile struct {
	Products []domain.Product `yaml:"products"`
	Rules    []domain.Rule    `yaml:"rules"`
}

// YAMLPricingStore 从 YAML 文件加载商品目录和定价规则，常驻内存。
// 同时实现 domain.RuleRepository 和 domain.ProductCatalog。
type YAMLPricingStore struct {
	compiler ConditionCompiler

	mu       sync.RWMutex
	products map[string]domain.Product
	rules    []domain.Rule
}

func NewYAMLPricingStore(compiler ConditionCompiler) *YAMLPricingStore {
	return &YAMLPricingStore{compiler: compiler, products: make(map[string]domain.Product)}
}

// LoadFile 读取 path；path 为空时加载内置的默认目录
func (s *YAMLPricingStore) LoadFile(path string) error {
	if path == "" {
		return s.Load(defaultPricing)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read pricing file %s", path)
	}
	return errors.WithMessagef(s.Load(data), "pricing file %s", path)
}

// Load 解析并整体替换当前数据；任何一条规则不合法都不会生效
func (s *YAMLPricingStore) Load(data []byte) error {
	var f pricingFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return errors.Wrap(err, "parse pricing yaml")
	}

	products := make(map[string]domain.Product, len(f.Products))
	for _, p := range f.Products {
		if strings.TrimSpace(p.ID) == "" {
			return errors.Wrap(domain.ErrInvalidPricingRule, "product id is required")
		}
		if p.BasePrice.IsNegative() {
			return errors.Wrapf(domain.ErrInvalidPricingRule, "product %s: negative base price", p.ID)
		}
		p.Currency = strings.ToUpper(p.Currency)
		products[p.ID] = p
	}

	seen := make(map[string]bool, len(f.Rules))
	for i := range f.Rules {
		r := &f.Rules[i]
		if err := r.Validate(); err != nil {
			return err
		}
		if seen[r.ID] {
			return errors.Wrapf(domain.ErrInvalidPricingRule, "duplicate rule id %s", r.ID)
		}
		seen[r.ID] = true
		if r.Condition != "" && s.compiler != nil {
			if err := s.compiler.Compile(r.Condition); err != nil {
				return errors.WithMessagef(err, "rule %s", r.ID)
			}
		}
	}
	sort.SliceStable(f.Rules, func(i, j int) bool { return f.Rules[i].Priority > f.Rules[j].Priority })

	s.mu.Lock()
	s.products = products
	s.rules = f.Rules
	s.mu.Unlock()
	return nil
}

func (s *YAMLPricingStore) ActiveRules(_ context.Context, at time.Time) ([]domain.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	active := make([]domain.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		if r.IsValidAt(at) {
			active = append(active, r)
		}
	}
	return active, nil
}

func (s *YAMLPricingStore) FindProduct(_ context.Context, productID string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[productID]
	if !ok {
		return nil, errors.Wrapf(domain.ErrProductNotFound, "product %s", productID)
	}
	return &p, nil
}
