package adapter

// 下游服务名，经 Nacos 或静态地址表解析
const (
	InventoryService = "inventory-service"
	PricingService   = "pricing-service"
	OrderService     = "order-service"
)

const (
	inventoryAvailabilityPath = "/inventory/availability"
	inventoryReservePath      = "/inventory/reservations"
	inventoryReleasePath      = "/inventory/reservations/release"
	pricingCartPath           = "/pricing/cart"
	pricingPricePath          = "/pricing/price"
	ordersPath                = "/orders"
)
