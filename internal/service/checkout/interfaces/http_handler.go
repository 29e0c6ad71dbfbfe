package interfaces

import (
	"encoding/json"
	"net/http"

	"storefront/internal/service/checkout/application"
)

// CheckoutHandler 封装了结账的 HTTP 处理器
type CheckoutHandler struct {
	orchestrator *application.CheckoutOrchestrator
}

func NewCheckoutHandler(orchestrator *application.CheckoutOrchestrator) *CheckoutHandler {
	return &CheckoutHandler{orchestrator: orchestrator}
}

type ValidateResponse struct {
	CustomerID string `json:"customerId"`
	Valid      bool   `json:"valid"`
}

func (h *CheckoutHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /checkout", h.handleCheckout)
	mux.HandleFunc("GET /checkout/validate", h.handleValidate)
}

// handleCheckout 业务失败同样返回 200，由结果中的 success 字段表达
func (h *CheckoutHandler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req application.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if key := r.Header.Get("Idempotency-Key"); key != "" && req.IdempotencyKey == "" {
		req.IdempotencyKey = key
	}
	writeJSON(w, http.StatusOK, h.orchestrator.Checkout(r.Context(), &req))
}

func (h *CheckoutHandler) handleValidate(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customerId")
	if customerID == "" {
		http.Error(w, "customerId is required", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, ValidateResponse{
		CustomerID: customerID,
		Valid:      h.orchestrator.ValidateCartForCheckout(r.Context(), customerID),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
