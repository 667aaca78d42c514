package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jcr-pos/api/internal/database"
	"github.com/jcr-pos/api/internal/enum"
	"github.com/jcr-pos/api/internal/gateway"
)

// Errors returned by the payment service.
var (
	ErrNoPaymentSource     = errors.New("order has no payment source")
	ErrPaymentNotConfirmed = errors.New("payment not confirmed by gateway")
	ErrPaymentFailed       = errors.New("payment failed, order removed")
)

// PaymentVerifier fetches the current state of a payment source.
// Satisfied by *gateway.Client.
type PaymentVerifier interface {
	GetSource(ctx context.Context, id string) (*gateway.Source, error)
}

// PaymentStore defines the DB methods needed to reconcile gateway returns.
// Satisfied by *database.Queries (and its WithTx variant).
type PaymentStore interface {
	GetOrderByReference(ctx context.Context, referenceNumber string) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	SetOrderPaid(ctx context.Context, arg database.SetOrderPaidParams) (database.Order, error)
	AdjustStock(ctx context.Context, arg database.AdjustStockParams) (database.InventoryItem, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error
}

// NewPaymentStore creates a PaymentStore from a DBTX (pool or tx).
type NewPaymentStore func(db database.DBTX) PaymentStore

// PaymentService reconciles gateway redirect returns against order state.
// The customer's browser coming back is a hint, never proof: success is
// accepted only after the gateway itself reports the source chargeable or
// paid.
type PaymentService struct {
	pool     TxBeginner
	store    PaymentStore
	newStore NewPaymentStore
	verifier PaymentVerifier
	hub      Broadcaster
	watcher  PaymentWatcher
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(pool TxBeginner, store PaymentStore, newStore NewPaymentStore, verifier PaymentVerifier, hub Broadcaster) *PaymentService {
	return &PaymentService{
		pool:     pool,
		store:    store,
		newStore: newStore,
		verifier: verifier,
		hub:      hub,
	}
}

// SetWatcher wires the unpaid-order watchdog in after construction.
func (s *PaymentService) SetWatcher(w PaymentWatcher) {
	s.watcher = w
}

// VerifyReturn handles the customer's redirect back from the gateway.
// marker is the payment query parameter from the redirect URL. An order that
// is already paid returns unchanged regardless of the marker, so replayed
// redirects are harmless.
func (s *PaymentService) VerifyReturn(ctx context.Context, referenceNumber, marker string) (database.Order, error) {
	order, err := s.store.GetOrderByReference(ctx, referenceNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}

	if order.PaymentStatus == enum.PaymentStatusPaid {
		return order, nil
	}

	// Only the unreserved gateway placeholder may be discarded. Anything
	// else reaching this public endpoint keeps its row and its stock.
	if marker == "failed" {
		if order.Status != enum.OrderStatusPendingPayment {
			return database.Order{}, fmt.Errorf("order %s is %s: %w",
				order.ReferenceNumber, order.Status, ErrPaymentNotConfirmed)
		}
		return s.discardFailedOrder(ctx, order)
	}

	if !order.PaymentSourceID.Valid {
		return database.Order{}, ErrNoPaymentSource
	}

	source, err := s.verifier.GetSource(ctx, order.PaymentSourceID.String)
	if err != nil {
		return database.Order{}, fmt.Errorf("get payment source: %w", err)
	}

	switch source.Status {
	case gateway.SourceStatusChargeable, gateway.SourceStatusPaid:
		return s.settlePaidOrder(ctx, order.ID)
	default:
		return database.Order{}, fmt.Errorf("source %s is %s: %w",
			source.ID, source.Status, ErrPaymentNotConfirmed)
	}
}

// settlePaidOrder marks the order paid, promotes it into the queue, and
// deducts the stock that was deliberately not reserved at creation.
func (s *PaymentService) settlePaidOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, id)
	if err != nil {
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	// A concurrent redirect or cashier override beat us here.
	if order.PaymentStatus == enum.PaymentStatusPaid {
		return order, nil
	}

	var touched []settledItem
	for _, line := range order.Items {
		item, err := store.AdjustStock(ctx, database.AdjustStockParams{
			ID:      line.InventoryID,
			Catalog: line.Catalog,
			Delta:   -line.Quantity,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			return database.Order{}, fmt.Errorf("adjust stock for %s: %w", line.Name, err)
		}
		touched = append(touched, settledItem{catalog: line.Catalog, item: item})
	}

	updated, err := store.SetOrderPaid(ctx, database.SetOrderPaidParams{
		ID:     id,
		Status: enum.OrderStatusPending,
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("set order paid: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}

	if s.watcher != nil {
		s.watcher.Disarm(id)
	}
	broadcastOrder(s.hub, EventOrderUpdated, updated)
	for _, t := range touched {
		broadcastInventory(s.hub, t.catalog, t.item)
	}
	return updated, nil
}

// discardFailedOrder removes an order whose gateway payment failed. Nothing
// was reserved for it, so deletion is just cleanup of the placeholder row.
func (s *PaymentService) discardFailedOrder(ctx context.Context, order database.Order) (database.Order, error) {
	if err := s.store.DeleteOrder(ctx, order.ID); err != nil {
		return database.Order{}, fmt.Errorf("delete order: %w", err)
	}
	if s.watcher != nil {
		s.watcher.Disarm(order.ID)
	}
	broadcastOrderDeleted(s.hub, order)
	return order, ErrPaymentFailed
}
