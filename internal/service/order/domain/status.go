// internal/service/order/domain/status.go
package domain

// Status 定义了订单的生命周期状态
type Status string

const (
	StatusPending    Status = "Pending"    // 已创建，等待确认
	StatusConfirmed  Status = "Confirmed"  // 已确认
	StatusProcessing Status = "Processing" // 备货中
	StatusShipped    Status = "Shipped"    // 已发货
	StatusDelivered  Status = "Delivered"  // 已送达，终态
	StatusCancelled  Status = "Cancelled"  // 已取消，终态
)

// transitions 是合法的状态迁移表，终态没有出边。
var transitions = map[Status]map[Status]bool{
	StatusPending:    {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed:  {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:    {StatusDelivered: true},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// CanTransitionTo 查表判断 s -> to 是否合法。
func (s Status) CanTransitionTo(to Status) bool {
	return transitions[s][to]
}

func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// ParseStatus 用于从存储中还原状态。
func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	_, ok := transitions[st]
	return st, ok
}
