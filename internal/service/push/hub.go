package push

import (
	"context"
	"sync"

	"storefront/internal/pkg/logger"
)

// Hub 维护所有活跃的连接，按客户 id 投递消息。同一客户可以有多个连接（多个标签页）。
type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	lock       sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run 处理连接的注册和注销，ctx 取消时关闭所有连接
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	log := logger.Ctx(ctx)
	for {
		select {
		case <-ctx.Done():
			h.lock.Lock()
			for customerID, set := range h.clients {
				for c := range set {
					close(c.send)
				}
				delete(h.clients, customerID)
			}
			h.lock.Unlock()
			return nil
		case c := <-h.register:
			h.lock.Lock()
			set, ok := h.clients[c.customerID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[c.customerID] = set
			}
			set[c] = struct{}{}
			h.lock.Unlock()
			log.Debug().Str("customer_id", c.customerID).Msg("Push client registered")
		case c := <-h.unregister:
			h.lock.Lock()
			if set, ok := h.clients[c.customerID]; ok {
				if _, ok := set[c]; ok {
					delete(set, c)
					close(c.send)
				}
				if len(set) == 0 {
					delete(h.clients, c.customerID)
				}
			}
			h.lock.Unlock()
			log.Debug().Str("customer_id", c.customerID).Msg("Push client unregistered")
		}
	}
}

// Register 返回 false 表示 Hub 已停止
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Deliver 非阻塞地把消息放进该客户每个连接的发送缓冲，缓冲已满的慢连接丢弃这条消息。
// 返回成功投递的连接数。
func (h *Hub) Deliver(customerID string, msg []byte) int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	delivered := 0
	for c := range h.clients[customerID] {
		select {
		case c.send <- msg:
			delivered++
		default:
		}
	}
	return delivered
}

// Connections 返回该客户当前的连接数
func (h *Hub) Connections(customerID string) int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.clients[customerID])
}
