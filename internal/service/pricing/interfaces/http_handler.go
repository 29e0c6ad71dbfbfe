package interfaces

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pkg/errors"

	"storefront/internal/pkg/logger"
	"storefront/internal/service/pricing/application"
	"storefront/internal/service/pricing/domain"
)

// PricingHandler 封装了 pricing 服务的 HTTP 处理器
type PricingHandler struct {
	service *application.PricingService
}

func NewPricingHandler(service *application.PricingService) *PricingHandler {
	return &PricingHandler{service: service}
}

func (h *PricingHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /pricing/cart", h.handleCartPricing)
	mux.HandleFunc("GET /pricing/price", h.handleGetPrice)
}

func (h *PricingHandler) handleCartPricing(w http.ResponseWriter, r *http.Request) {
	var req application.CartPricingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	result, err := h.service.CalculateCartPricing(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleGetPrice GET /pricing/price?productId=&customerId=&customerType=&quantity=
func (h *PricingHandler) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := application.PriceQuery{
		ProductID:    q.Get("productId"),
		CustomerID:   q.Get("customerId"),
		CustomerType: q.Get("customerType"),
	}
	if raw := q.Get("quantity"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "quantity must be an integer", http.StatusBadRequest)
			return
		}
		query.Quantity = n
	}
	quote, err := h.service.GetPrice(r.Context(), query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var statusCode int
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidPricingRequest):
		statusCode = http.StatusBadRequest
	default:
		statusCode = http.StatusInternalServerError
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Pricing request failed")
	}
	http.Error(w, err.Error(), statusCode)
}
