package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jcr-pos/api/internal/database"
	"github.com/jcr-pos/api/internal/service"
)

// PaymentServicer defines the service methods needed by payment handlers.
// Satisfied by *service.PaymentService.
type PaymentServicer interface {
	VerifyReturn(ctx context.Context, referenceNumber, marker string) (database.Order, error)
}

// PaymentHandler handles the gateway redirect endpoint.
type PaymentHandler struct {
	svc PaymentServicer
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(svc PaymentServicer) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

// RegisterRoutes registers the public payment return endpoint. The customer's
// browser lands here after the gateway checkout, so it cannot carry auth.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Get("/payments/gcash/return", h.Return)
}

// Return handles GET /payments/gcash/return?order=REF&payment=success|failed.
// The query parameters only steer the flow; payment success is established by
// asking the gateway, never by trusting the redirect.
func (h *PaymentHandler) Return(w http.ResponseWriter, r *http.Request) {
	reference := r.URL.Query().Get("order")
	marker := r.URL.Query().Get("payment")
	if reference == "" || (marker != "success" && marker != "failed") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "order and payment parameters are required"})
		return
	}

	order, err := h.svc.VerifyReturn(r.Context(), reference, marker)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		case errors.Is(err, service.ErrPaymentFailed):
			writeJSON(w, http.StatusOK, map[string]any{
				"payment_status":   "failed",
				"reference_number": order.ReferenceNumber,
			})
		case errors.Is(err, service.ErrPaymentNotConfirmed):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "payment not confirmed yet"})
		default:
			writeServiceError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, service.NewOrderView(order))
}
