package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jcr-pos/api/internal/database"
	"github.com/jcr-pos/api/internal/enum"
)

// Canceller cancels an order that is still unpaid.
// Satisfied by *OrderService.
type Canceller interface {
	CancelUnpaid(ctx context.Context, id uuid.UUID, reason string) (database.Order, error)
}

// WatchdogStore defines the DB methods needed by the watchdog.
// Satisfied by *database.Queries.
type WatchdogStore interface {
	ListUnpaidActiveOrders(ctx context.Context) ([]database.Order, error)
}

// Watchdog auto-cancels orders that stay unpaid past the timeout. It is the
// only writer of system cancellations: services arm a timer per created
// order and disarm it on payment or resolution, and a periodic sweep picks
// up orders from before the last restart. The timer firing is a hint only;
// the actual cancel goes through the guarded Cancel path, so an order paid
// at the last moment is never cancelled.
type Watchdog struct {
	store    WatchdogStore
	orders   Canceller
	timeout  time.Duration
	interval time.Duration

	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer
}

// NewWatchdog creates a watchdog that cancels orders unpaid for longer than
// timeout, sweeping the database every interval.
func NewWatchdog(store WatchdogStore, orders Canceller, timeout, interval time.Duration) *Watchdog {
	return &Watchdog{
		store:    store,
		orders:   orders,
		timeout:  timeout,
		interval: interval,
		timers:   make(map[uuid.UUID]*time.Timer),
	}
}

// Start runs the sweep loop until ctx is cancelled.
// This should be called as a goroutine: go watchdog.Start(ctx)
func (w *Watchdog) Start(ctx context.Context) {
	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.stopAll()
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// Arm schedules cancellation for an unpaid order. An order already past the
// timeout is cancelled immediately. Re-arming an order resets its timer.
func (w *Watchdog) Arm(order database.Order) {
	if order.PaymentStatus == enum.PaymentStatusPaid {
		return
	}

	remaining := w.timeout - time.Since(order.CreatedAt)
	if remaining <= 0 {
		go w.expire(order.ID)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.timers[order.ID]; ok {
		timer.Stop()
	}
	id := order.ID
	w.timers[id] = time.AfterFunc(remaining, func() {
		w.expire(id)
	})
}

// Disarm drops the timer for an order that was paid or resolved.
func (w *Watchdog) Disarm(id uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.timers[id]; ok {
		timer.Stop()
		delete(w.timers, id)
	}
}

// sweep arms every unpaid active order in the database. Covers orders
// created before the last restart whose timers were lost.
func (w *Watchdog) sweep(ctx context.Context) {
	orders, err := w.store.ListUnpaidActiveOrders(ctx)
	if err != nil {
		log.Printf("ERROR: watchdog sweep: %v", err)
		return
	}
	for _, order := range orders {
		w.Arm(order)
	}
}

// expire cancels a single timed-out order.
func (w *Watchdog) expire(id uuid.UUID) {
	w.mu.Lock()
	delete(w.timers, id)
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reason := fmt.Sprintf("Unpaid - Payment timeout after %d minutes", int(w.timeout.Minutes()))
	if _, err := w.orders.CancelUnpaid(ctx, id, reason); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return
		}
		log.Printf("ERROR: watchdog cancel order %s: %v", id, err)
	}
}

func (w *Watchdog) stopAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, timer := range w.timers {
		timer.Stop()
		delete(w.timers, id)
	}
}
