package interfaces

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"storefront/internal/pkg/logger"
	"storefront/internal/service/inventory/application"
	"storefront/internal/service/inventory/domain"
)

// InventoryHandler 封装了 inventory 服务的 HTTP 处理器
type InventoryHandler struct {
	service *application.InventoryService
}

// NewInventoryHandler 创建一个新的 HTTP 处理器实例
func NewInventoryHandler(service *application.InventoryService) *InventoryHandler {
	return &InventoryHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *InventoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /inventory/items", h.handleCreate)
	mux.HandleFunc("GET /inventory/items", h.handleGet)
	mux.HandleFunc("POST /inventory/adjust", h.handleAdjust)
	mux.HandleFunc("POST /inventory/levels", h.handleUpdateLevels)
	mux.HandleFunc("GET /inventory/low-stock", h.handleLowStock)
	mux.HandleFunc("POST /inventory/availability", h.handleAvailability)
	mux.HandleFunc("POST /inventory/reservations", h.handleReserve)
	mux.HandleFunc("POST /inventory/reservations/release", h.handleRelease)
	mux.HandleFunc("POST /inventory/reservations/confirm", h.handleConfirm)
}

// AvailabilityRequest 是批量可用性查询的请求体
type AvailabilityRequest struct {
	Items []application.StockLine `json:"items"`
}

type AvailabilityResponse struct {
	Availability map[string]bool `json:"availability"`
}

// BatchRequest 按批次 id 释放或确认预留
type BatchRequest struct {
	ReservationID string `json:"reservationId"`
	Reason        string `json:"reason,omitempty"`
}

type BatchResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

func (h *InventoryHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req application.CreateItemRequest
	if !decode(w, r, &req) {
		return
	}
	item, err := h.service.CreateItem(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *InventoryHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("productId")
	if productID == "" {
		http.Error(w, "productId is required", http.StatusBadRequest)
		return
	}
	item, err := h.service.GetByProductID(r.Context(), productID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *InventoryHandler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var req application.AdjustStockRequest
	if !decode(w, r, &req) {
		return
	}
	item, err := h.service.AdjustStock(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *InventoryHandler) handleUpdateLevels(w http.ResponseWriter, r *http.Request) {
	var req application.UpdateLevelsRequest
	if !decode(w, r, &req) {
		return
	}
	item, err := h.service.UpdateStockLevels(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *InventoryHandler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.LowStockItems(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *InventoryHandler) handleAvailability(w http.ResponseWriter, r *http.Request) {
	var req AvailabilityRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.service.CheckAvailability(r.Context(), req.Items)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AvailabilityResponse{Availability: result})
}

// handleReserve 业务失败同样返回 200，由结果中的 success 字段表达
func (h *InventoryHandler) handleReserve(w http.ResponseWriter, r *http.Request) {
	var req application.ReserveBatchRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.service.ReserveBatch(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *InventoryHandler) handleRelease(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !decode(w, r, &req) {
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = domain.ReasonManualRelease
	}
	n, err := h.service.ReleaseBatch(r.Context(), req.ReservationID, reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BatchResponse{Success: n > 0, Count: n})
}

func (h *InventoryHandler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !decode(w, r, &req) {
		return
	}
	n, err := h.service.ConfirmBatch(r.Context(), req.ReservationID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BatchResponse{Success: n > 0, Count: n})
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
	case errors.Is(err, domain.ErrInventoryNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, domain.ErrInventoryExists),
		errors.Is(err, domain.ErrConcurrentModification):
		statusCode = http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrCapacityExceeded),
		errors.Is(err, domain.ErrInvalidReservation):
		statusCode = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidInventory):
		statusCode = http.StatusBadRequest
	default:
		statusCode = http.StatusInternalServerError
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Inventory request failed")
	}
	http.Error(w, err.Error(), statusCode)
}
