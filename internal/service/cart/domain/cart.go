package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/internal/pkg/domainevent"
)

const (
	MaxItemsPerCart    = 100
	MaxQuantityPerItem = 999
	DefaultCurrency    = "USD"
)

// Cart 是购物车聚合根，订单行按 ProductID 唯一。
// 所有变更方法都会刷新 LastActivityAt，用于判断购物车是否被遗弃。
type Cart struct {
	ID             string     `json:"id"`
	CustomerID     string     `json:"customerId"`
	Currency       string     `json:"currency"`
	Items          []CartItem `json:"items"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	LastActivityAt time.Time  `json:"lastActivityAt"`
	Version        int64      `json:"version"`
}

func NewCart(at time.Time, customerID, currency string) (*Cart, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if customerID == "" {
		return nil, invalid("customer id is required")
	}
	if currency == "" {
		return nil, invalid("currency is required")
	}
	return &Cart{
		ID:             uuid.NewString(),
		CustomerID:     customerID,
		Currency:       currency,
		Items:          []CartItem{},
		CreatedAt:      at,
		UpdatedAt:      at,
		LastActivityAt: at,
	}, nil
}

func (c *Cart) ItemCount() int { return len(c.Items) }
func (c *Cart) IsEmpty() bool  { return len(c.Items) == 0 }

func (c *Cart) TotalQuantity() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

func (c *Cart) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.TotalPrice())
	}
	return total
}

func (c *Cart) Item(productID string) (CartItem, bool) {
	if i := c.indexOf(productID); i >= 0 {
		return c.Items[i], true
	}
	return CartItem{}, false
}

func (c *Cart) HasProduct(productID string) bool { return c.indexOf(productID) >= 0 }

func (c *Cart) CanAddMoreItems() bool { return len(c.Items) < MaxItemsPerCart }

// IsExpired 最后一次活动距 at 超过 period 即视为遗弃
func (c *Cart) IsExpired(at time.Time, period time.Duration) bool {
	return !c.LastActivityAt.IsZero() && at.Sub(c.LastActivityAt) > period
}

// AddProduct 已有该商品时合并数量，价格不同则以新价格为准；否则新增一行。
func (c *Cart) AddProduct(at time.Time, productID, productName string, quantity int, unitPrice decimal.Decimal) ([]domainevent.Event, error) {
	if quantity <= 0 {
		return nil, invalid("quantity must be greater than zero")
	}
	if quantity > MaxQuantityPerItem {
		return nil, invalid("item quantity cannot exceed %d", MaxQuantityPerItem)
	}
	if unitPrice.IsNegative() {
		return nil, invalid("price cannot be negative")
	}

	if i := c.indexOf(productID); i >= 0 {
		existing := c.Items[i]
		newQuantity := existing.Quantity + quantity
		if newQuantity > MaxQuantityPerItem {
			return nil, invalid("item quantity cannot exceed %d", MaxQuantityPerItem)
		}
		updated, _ := existing.WithQuantity(newQuantity)
		if !existing.UnitPrice.Equal(unitPrice) {
			updated, _ = updated.WithPrice(unitPrice)
		}
		c.Items[i] = updated
		c.touch(at)
		return []domainevent.Event{c.quantityUpdated(at, productID, existing.Quantity, newQuantity)}, nil
	}

	if !c.CanAddMoreItems() {
		return nil, invalid("cart cannot contain more than %d different items", MaxItemsPerCart)
	}
	item, err := NewCartItem(at, productID, productName, quantity, unitPrice, c.Currency)
	if err != nil {
		return nil, err
	}
	c.Items = append(c.Items, item)
	c.touch(at)
	return []domainevent.Event{&ProductAddedToCart{
		Base:        domainevent.NewBase(EventProductAdded, c.ID, at),
		CustomerID:  c.CustomerID,
		ProductID:   item.ProductID,
		ProductName: item.ProductName,
		Quantity:    item.Quantity,
		UnitPrice:   item.UnitPrice,
		Currency:    item.Currency,
	}}, nil
}

func (c *Cart) RemoveProduct(at time.Time, productID string) ([]domainevent.Event, error) {
	i := c.indexOf(productID)
	if i < 0 {
		return nil, invalid("product %s not found in cart", productID)
	}
	removed := c.Items[i]
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	c.touch(at)
	return []domainevent.Event{&ProductRemovedFromCart{
		Base:       domainevent.NewBase(EventProductRemoved, c.ID, at),
		CustomerID: c.CustomerID,
		ProductID:  productID,
		Quantity:   removed.Quantity,
	}}, nil
}

func (c *Cart) UpdateProductQuantity(at time.Time, productID string, quantity int) ([]domainevent.Event, error) {
	if quantity <= 0 {
		return nil, invalid("quantity must be greater than zero")
	}
	if quantity > MaxQuantityPerItem {
		return nil, invalid("item quantity cannot exceed %d", MaxQuantityPerItem)
	}
	i := c.indexOf(productID)
	if i < 0 {
		return nil, invalid("product %s not found in cart", productID)
	}
	old := c.Items[i].Quantity
	c.Items[i], _ = c.Items[i].WithQuantity(quantity)
	c.touch(at)
	return []domainevent.Event{c.quantityUpdated(at, productID, old, quantity)}, nil
}

// UpdateProductPrice 不产生事件
func (c *Cart) UpdateProductPrice(at time.Time, productID string, unitPrice decimal.Decimal) error {
	if unitPrice.IsNegative() {
		return invalid("price cannot be negative")
	}
	i := c.indexOf(productID)
	if i < 0 {
		return invalid("product %s not found in cart", productID)
	}
	c.Items[i], _ = c.Items[i].WithPrice(unitPrice)
	c.touch(at)
	return nil
}

// Clear 空购物车上调用不做任何事
func (c *Cart) Clear(at time.Time) []domainevent.Event {
	if c.IsEmpty() {
		return nil
	}
	removed := len(c.Items)
	c.Items = []CartItem{}
	c.touch(at)
	return []domainevent.Event{&CartCleared{
		Base:         domainevent.NewBase(EventCartCleared, c.ID, at),
		CustomerID:   c.CustomerID,
		ItemsRemoved: removed,
	}}
}

func (c *Cart) InitiateCheckout(at time.Time) ([]domainevent.Event, error) {
	if c.IsEmpty() {
		return nil, invalid("cannot checkout an empty cart")
	}
	c.touch(at)
	return []domainevent.Event{&CartCheckoutInitiated{
		Base:        domainevent.NewBase(EventCheckoutInitiated, c.ID, at),
		CustomerID:  c.CustomerID,
		TotalAmount: c.TotalAmount(),
		Currency:    c.Currency,
		ItemCount:   c.ItemCount(),
	}}, nil
}

// CompleteCheckout 是结账成功后购物车唯一的状态变更：清空所有行
func (c *Cart) CompleteCheckout(at time.Time, orderID string) ([]domainevent.Event, error) {
	if c.IsEmpty() {
		return nil, invalid("cannot complete checkout for an empty cart")
	}
	if orderID == "" {
		return nil, invalid("order id is required")
	}
	total := c.TotalAmount()
	c.Items = []CartItem{}
	c.touch(at)
	return []domainevent.Event{&CartCheckoutCompleted{
		Base:        domainevent.NewBase(EventCheckoutCompleted, c.ID, at),
		CustomerID:  c.CustomerID,
		OrderID:     orderID,
		TotalAmount: total,
		Currency:    c.Currency,
	}}, nil
}

func (c *Cart) quantityUpdated(at time.Time, productID string, old, updated int) domainevent.Event {
	return &CartQuantityUpdated{
		Base:        domainevent.NewBase(EventQuantityUpdated, c.ID, at),
		CustomerID:  c.CustomerID,
		ProductID:   productID,
		OldQuantity: old,
		NewQuantity: updated,
	}
}

func (c *Cart) indexOf(productID string) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) touch(at time.Time) {
	c.UpdatedAt = at
	c.LastActivityAt = at
}
