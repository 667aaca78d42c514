package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jcr-pos/api/internal/database"
	"github.com/jcr-pos/api/internal/enum"
	"github.com/jcr-pos/api/internal/handler"
	"github.com/jcr-pos/api/internal/service"
)

type mockPaymentService struct {
	verifyReturnFn func(ctx context.Context, referenceNumber, marker string) (database.Order, error)
}

func (m *mockPaymentService) VerifyReturn(ctx context.Context, referenceNumber, marker string) (database.Order, error) {
	return m.verifyReturnFn(ctx, referenceNumber, marker)
}

func newPaymentRouter(svc *mockPaymentService) chi.Router {
	h := handler.NewPaymentHandler(svc)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func TestPaymentReturn_Success(t *testing.T) {
	order := testOrder(enum.OrderStatusPending)
	order.PaymentStatus = enum.PaymentStatusPaid
	svc := &mockPaymentService{
		verifyReturnFn: func(ctx context.Context, ref, marker string) (database.Order, error) {
			if ref != "JCR123456" || marker != "success" {
				t.Errorf("unexpected args: %s %s", ref, marker)
			}
			return order, nil
		},
	}
	r := newPaymentRouter(svc)

	rec := doJSON(t, r, http.MethodGet, "/payments/gcash/return?order=JCR123456&payment=success", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		PaymentStatus string `json:"payment_status"`
		Status        string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.PaymentStatus != "paid" || resp.Status != "pending" {
		t.Errorf("unexpected payload: %+v", resp)
	}
}

func TestPaymentReturn_Failed(t *testing.T) {
	order := testOrder(enum.OrderStatusPendingPayment)
	svc := &mockPaymentService{
		verifyReturnFn: func(ctx context.Context, ref, marker string) (database.Order, error) {
			return order, service.ErrPaymentFailed
		},
	}
	r := newPaymentRouter(svc)

	rec := doJSON(t, r, http.MethodGet, "/payments/gcash/return?order=JCR123456&payment=failed", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		PaymentStatus   string `json:"payment_status"`
		ReferenceNumber string `json:"reference_number"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.PaymentStatus != "failed" {
		t.Errorf("expected failed, got %s", resp.PaymentStatus)
	}
	if resp.ReferenceNumber != "JCR123456" {
		t.Errorf("expected reference echoed back, got %s", resp.ReferenceNumber)
	}
}

func TestPaymentReturn_NotConfirmed(t *testing.T) {
	svc := &mockPaymentService{
		verifyReturnFn: func(ctx context.Context, ref, marker string) (database.Order, error) {
			return database.Order{}, service.ErrPaymentNotConfirmed
		},
	}
	r := newPaymentRouter(svc)

	rec := doJSON(t, r, http.MethodGet, "/payments/gcash/return?order=JCR123456&payment=success", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestPaymentReturn_BadParams(t *testing.T) {
	r := newPaymentRouter(&mockPaymentService{})

	rec := doJSON(t, r, http.MethodGet, "/payments/gcash/return?order=JCR123456", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without payment marker, got %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodGet, "/payments/gcash/return?payment=success", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without order, got %d", rec.Code)
	}
}

func TestPaymentReturn_UnknownOrder(t *testing.T) {
	svc := &mockPaymentService{
		verifyReturnFn: func(ctx context.Context, ref, marker string) (database.Order, error) {
			return database.Order{}, service.ErrOrderNotFound
		},
	}
	r := newPaymentRouter(svc)

	rec := doJSON(t, r, http.MethodGet, "/payments/gcash/return?order=JCR000000&payment=success", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
