package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pkg/errors"

	"storefront/internal/pkg/logger"
	"storefront/internal/service/order/application"
	"storefront/internal/service/order/domain"
)

// OrderHandler 封装了 order 服务的 HTTP 处理器
type OrderHandler struct {
	service *application.OrderService
}

// NewOrderHandler 创建一个新的 HTTP 处理器实例
func NewOrderHandler(service *application.OrderService) *OrderHandler {
	return &OrderHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /orders", h.handleCreate)
	mux.HandleFunc("GET /orders", h.handleGet)
	mux.HandleFunc("POST /orders/confirm", h.transition(h.service.Confirm))
	mux.HandleFunc("POST /orders/process", h.transition(h.service.StartProcessing))
	mux.HandleFunc("POST /orders/ship", h.transition(h.service.Ship))
	mux.HandleFunc("POST /orders/deliver", h.transition(h.service.Deliver))
	mux.HandleFunc("POST /orders/cancel", h.handleCancel)
}

func (h *OrderHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req application.CreateOrderRequest
	if !decode(w, r, &req) {
		return
	}
	order, err := h.service.CreateOrder(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// handleGet 支持 ?id= 查询单个订单，或 ?customerId=&limit= 查询列表
func (h *OrderHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if id := q.Get("id"); id != "" {
		order, err := h.service.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, order)
		return
	}

	customerID := q.Get("customerId")
	if customerID == "" {
		http.Error(w, "id or customerId is required", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = 20
	}
	orders, err := h.service.ListByCustomer(r.Context(), customerID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) transition(fn func(ctx context.Context, id string) (*application.OrderDTO, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req application.TransitionRequest
		if !decode(w, r, &req) {
			return
		}
		order, err := fn(r.Context(), req.OrderID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, order)
	}
}

func (h *OrderHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req application.TransitionRequest
	if !decode(w, r, &req) {
		return
	}
	order, err := h.service.Cancel(r.Context(), req.OrderID, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError 根据错误类型返回不同的 HTTP 状态码
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var statusCode int
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidOrderStateTransition),
		errors.Is(err, domain.ErrConcurrentModification):
		statusCode = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidOrderOperation):
		statusCode = http.StatusBadRequest
	default:
		statusCode = http.StatusInternalServerError
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Order request failed")
	}
	http.Error(w, err.Error(), statusCode)
}
