package interfaces

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"storefront/internal/pkg/logger"
	"storefront/internal/service/cart/application"
	"storefront/internal/service/cart/domain"
)

// CartHandler 封装了购物车的 HTTP 处理器
type CartHandler struct {
	service *application.CartService
}

func NewCartHandler(service *application.CartService) *CartHandler {
	return &CartHandler{service: service}
}

type removeItemRequest struct {
	CustomerID string `json:"customerId"`
	ProductID  string `json:"productId"`
}

type customerRequest struct {
	CustomerID string `json:"customerId"`
	Currency   string `json:"currency,omitempty"`
}

func (h *CartHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /cart", h.handleGet)
	mux.HandleFunc("POST /cart", h.handleCreate)
	mux.HandleFunc("DELETE /cart", h.handleClear)
	mux.HandleFunc("POST /cart/items", h.handleAdd)
	mux.HandleFunc("PUT /cart/items", h.handleUpdate)
	mux.HandleFunc("DELETE /cart/items", h.handleRemove)
	mux.HandleFunc("POST /cart/refresh", h.handleRefresh)
}

func (h *CartHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customerId")
	if customerID == "" {
		http.Error(w, "customerId is required", http.StatusBadRequest)
		return
	}
	cart, err := h.service.GetCart(r.Context(), customerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if !decode(w, r, &req) {
		return
	}
	cart, err := h.service.GetOrCreateCart(r.Context(), req.CustomerID, req.Currency)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) handleClear(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customerId")
	if customerID == "" {
		http.Error(w, "customerId is required", http.StatusBadRequest)
		return
	}
	cart, err := h.service.ClearCart(r.Context(), customerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req application.AddToCartRequest
	if !decode(w, r, &req) {
		return
	}
	cart, err := h.service.AddToCart(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req application.UpdateQuantityRequest
	if !decode(w, r, &req) {
		return
	}
	cart, err := h.service.UpdateQuantity(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) handleRemove(w http.ResponseWriter, r *http.Request) {
	var req removeItemRequest
	if !decode(w, r, &req) {
		return
	}
	cart, err := h.service.RemoveFromCart(r.Context(), req.CustomerID, req.ProductID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if !decode(w, r, &req) {
		return
	}
	cart, err := h.service.RefreshPrices(r.Context(), req.CustomerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
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

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var statusCode int
	switch {
	case errors.Is(err, domain.ErrCartNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, domain.ErrConcurrentModification):
		statusCode = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidCartOperation):
		statusCode = http.StatusBadRequest
	default:
		statusCode = http.StatusInternalServerError
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Cart request failed")
	}
	http.Error(w, err.Error(), statusCode)
}
