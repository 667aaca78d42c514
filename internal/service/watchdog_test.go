package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jcr-pos/api/internal/database"
	"github.com/jcr-pos/api/internal/enum"
)

func waitForStatus(t *testing.T, store *fakeStore, id uuid.UUID, status string) database.Order {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		order, err := store.GetOrder(context.Background(), id)
		if err != nil {
			t.Fatalf("GetOrder: %v", err)
		}
		if order.Status == status {
			return order
		}
		time.Sleep(10 * time.Millisecond)
	}
	order, _ := store.GetOrder(context.Background(), id)
	t.Fatalf("order never reached %s, still %s", status, order.Status)
	return database.Order{}
}

func TestWatchdog_CancelsOverdueOrder(t *testing.T) {
	store := newFakeStore()
	itemID := store.addItem(enum.CatalogRegular, "Sisig", "120.00", 10)
	svc, _ := newTestService(store)
	order := createTestOrder(t, svc, store, itemID, enum.PaymentMethodCash)

	// The order is 31 minutes old with a 30 minute timeout.
	store.backdate(order.ID, 31*time.Minute)

	w := NewWatchdog(store, svc, 30*time.Minute, time.Hour)
	order, _ = store.GetOrder(context.Background(), order.ID)
	w.Arm(order)

	cancelled := waitForStatus(t, store, order.ID, enum.OrderStatusCancelled)
	if !cancelled.CancelledBy.Valid || cancelled.CancelledBy.String != enum.CancelledBySystem {
		t.Errorf("expected system cancellation, got %+v", cancelled.CancelledBy)
	}
	if cancelled.CancelReason.String != "Unpaid - Payment timeout after 30 minutes" {
		t.Errorf("unexpected reason: %q", cancelled.CancelReason.String)
	}
	if got := store.stockOf(itemID); got != 10 {
		t.Errorf("expected stock restored to 10, got %d", got)
	}
}

func TestWatchdog_ArmsFutureTimer(t *testing.T) {
	store := newFakeStore()
	itemID := store.addItem(enum.CatalogRegular, "Sisig", "120.00", 10)
	svc, _ := newTestService(store)
	order := createTestOrder(t, svc, store, itemID, enum.PaymentMethodCash)

	// 10 minutes old with a 30 minute timeout: armed but not fired.
	store.backdate(order.ID, 10*time.Minute)

	w := NewWatchdog(store, svc, 30*time.Minute, time.Hour)
	order, _ = store.GetOrder(context.Background(), order.ID)
	w.Arm(order)

	w.mu.Lock()
	_, armed := w.timers[order.ID]
	w.mu.Unlock()
	if !armed {
		t.Fatal("expected a timer for the order")
	}

	time.Sleep(50 * time.Millisecond)
	current, _ := store.GetOrder(context.Background(), order.ID)
	if current.Status != enum.OrderStatusPending {
		t.Fatalf("order cancelled too early: %s", current.Status)
	}
}

func TestWatchdog_PaymentPreventsCancel(t *testing.T) {
	store := newFakeStore()
	itemID := store.addItem(enum.CatalogRegular, "Sisig", "120.00", 10)
	svc, _ := newTestService(store)

	w := NewWatchdog(store, svc, 50*time.Millisecond, time.Hour)
	svc.SetWatcher(w)

	order := createTestOrder(t, svc, store, itemID, enum.PaymentMethodCash)
	if _, err := svc.MarkPaid(context.Background(), order.ID); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}

	time.Sleep(150 * time.Millisecond)
	current, _ := store.GetOrder(context.Background(), order.ID)
	if current.Status == enum.OrderStatusCancelled {
		t.Fatal("paid order must not be auto-cancelled")
	}
}

func TestWatchdog_StaleFireAfterPaymentIsNoOp(t *testing.T) {
	store := newFakeStore()
	itemID := store.addItem(enum.CatalogRegular, "Sisig", "120.00", 10)
	svc, _ := newTestService(store)
	order := createTestOrder(t, svc, store, itemID, enum.PaymentMethodCash)

	if _, err := svc.MarkPaid(context.Background(), order.ID); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}

	// A timer armed from a pre-payment snapshot fires anyway. The cancel
	// path re-checks payment, so the paid order must come through intact.
	w := NewWatchdog(store, svc, 30*time.Minute, time.Hour)
	store.backdate(order.ID, 31*time.Minute)
	w.expire(order.ID)

	current, _ := store.GetOrder(context.Background(), order.ID)
	if current.Status != enum.OrderStatusPending {
		t.Fatalf("paid order was cancelled by a stale fire: %s", current.Status)
	}
	if current.PaymentStatus != enum.PaymentStatusPaid {
		t.Fatalf("expected paid, got %s", current.PaymentStatus)
	}
	if got := store.stockOf(itemID); got != 7 {
		t.Fatalf("expected reservation to stand at 7, got %d", got)
	}
}

func TestWatchdog_SweepPicksUpExistingOrders(t *testing.T) {
	store := newFakeStore()
	itemID := store.addItem(enum.CatalogRegular, "Sisig", "120.00", 10)
	svc, _ := newTestService(store)
	order := createTestOrder(t, svc, store, itemID, enum.PaymentMethodCash)
	store.backdate(order.ID, time.Hour)

	// Fresh watchdog, as after a restart: no timer exists for the order
	// until the sweep finds it.
	w := NewWatchdog(store, svc, 30*time.Minute, time.Hour)
	w.sweep(context.Background())

	waitForStatus(t, store, order.ID, enum.OrderStatusCancelled)
}

func TestWatchdog_DisarmStopsTimer(t *testing.T) {
	store := newFakeStore()
	itemID := store.addItem(enum.CatalogRegular, "Sisig", "120.00", 10)
	svc, _ := newTestService(store)
	order := createTestOrder(t, svc, store, itemID, enum.PaymentMethodCash)

	w := NewWatchdog(store, svc, 50*time.Millisecond, time.Hour)
	current, _ := store.GetOrder(context.Background(), order.ID)
	w.Arm(current)
	w.Disarm(order.ID)

	time.Sleep(150 * time.Millisecond)
	after, _ := store.GetOrder(context.Background(), order.ID)
	if after.Status == enum.OrderStatusCancelled {
		t.Fatal("disarmed order must not be cancelled")
	}

	w.mu.Lock()
	remaining := len(w.timers)
	w.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected no timers, got %d", remaining)
	}
}
