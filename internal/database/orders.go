package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// queueLockID is the advisory lock key serializing queue position
// allocation. All order inserts take this transaction-scoped lock, making
// the active-order count plus one a single-writer counter.
const queueLockID = 744201

const orderColumns = `id, reference_number, table_number, items, total_amount,
	order_type, payment_method, payment_status, status, queue_position,
	payment_source_id, created_at, paid_at, cancelled_at, cancelled_by, cancel_reason`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (Order, error) {
	var o Order
	var items []byte
	err := row.Scan(
		&o.ID, &o.ReferenceNumber, &o.TableNumber, &items, &o.TotalAmount,
		&o.OrderType, &o.PaymentMethod, &o.PaymentStatus, &o.Status, &o.QueuePosition,
		&o.PaymentSourceID, &o.CreatedAt, &o.PaidAt, &o.CancelledAt, &o.CancelledBy, &o.CancelReason,
	)
	if err != nil {
		return Order{}, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return Order{}, fmt.Errorf("unmarshal order items: %w", err)
	}
	return o, nil
}

// AcquireQueueLock takes the transaction-scoped queue allocation lock.
// Must be called inside a transaction; released automatically on commit or
// rollback.
func (q *Queries) AcquireQueueLock(ctx context.Context) error {
	_, err := q.db.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, queueLockID)
	return err
}

// CountActiveOrders counts orders occupying a queue position.
func (q *Queries) CountActiveOrders(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM orders
		WHERE status IN ('pending', 'preparing', 'pending_payment')`,
	).Scan(&count)
	return count, err
}

type CreateOrderParams struct {
	ReferenceNumber string
	TableNumber     int32
	Items           []OrderItem
	TotalAmount     pgtype.Numeric
	OrderType       string
	PaymentMethod   string
	PaymentStatus   string
	Status          string
	QueuePosition   int32
	PaymentSourceID pgtype.Text
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	items, err := json.Marshal(arg.Items)
	if err != nil {
		return Order{}, fmt.Errorf("marshal order items: %w", err)
	}
	row := q.db.QueryRow(ctx, `
		INSERT INTO orders (
			reference_number, table_number, items, total_amount, order_type,
			payment_method, payment_status, status, queue_position, payment_source_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+orderColumns,
		arg.ReferenceNumber, arg.TableNumber, items, arg.TotalAmount, arg.OrderType,
		arg.PaymentMethod, arg.PaymentStatus, arg.Status, arg.QueuePosition, arg.PaymentSourceID,
	)
	return scanOrder(row)
}

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// GetOrderForUpdate locks the order row for the rest of the transaction.
// Used to serialize cancellation against concurrent transitions.
func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	return scanOrder(row)
}

func (q *Queries) GetOrderByReference(ctx context.Context, referenceNumber string) (Order, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE reference_number = $1`, referenceNumber)
	return scanOrder(row)
}

type ListOrdersParams struct {
	Status pgtype.Text
	Limit  int32
	Offset int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		arg.Status, arg.Limit, arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// ListUnpaidActiveOrders returns orders the watchdog cares about: payment
// still pending and status not terminal.
func (q *Queries) ListUnpaidActiveOrders(ctx context.Context) ([]Order, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE payment_status = 'pending'
		  AND status NOT IN ('completed', 'cancelled')
		ORDER BY created_at`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

type UpdateOrderStatusParams struct {
	ID         uuid.UUID
	Status     string
	FromStatus string
}

// UpdateOrderStatus is a compare-and-set transition: it only applies if the
// order is still in FromStatus. Returns pgx.ErrNoRows if a concurrent actor
// moved the order first.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders SET status = $2
		WHERE id = $1 AND status = $3
		RETURNING `+orderColumns,
		arg.ID, arg.Status, arg.FromStatus,
	)
	return scanOrder(row)
}

type SetOrderPaidParams struct {
	ID     uuid.UUID
	Status string
}

// SetOrderPaid flips payment_status to paid and records the time. Guarded on
// payment_status so a duplicate mark-paid is a no-op (pgx.ErrNoRows).
func (q *Queries) SetOrderPaid(ctx context.Context, arg SetOrderPaidParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders SET payment_status = 'paid', paid_at = now(), status = $2
		WHERE id = $1 AND payment_status = 'pending'
		RETURNING `+orderColumns,
		arg.ID, arg.Status,
	)
	return scanOrder(row)
}

type CancelOrderParams struct {
	ID           uuid.UUID
	CancelledBy  string
	CancelReason string
}

// CancelOrder moves the order to cancelled with actor and reason. Guarded on
// non-terminal status; the caller holds the row lock (GetOrderForUpdate) and
// has already decided whether stock needs restoring.
func (q *Queries) CancelOrder(ctx context.Context, arg CancelOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders SET
			status = 'cancelled',
			cancelled_at = now(),
			cancelled_by = $2,
			cancel_reason = $3
		WHERE id = $1 AND status NOT IN ('completed', 'cancelled')
		RETURNING `+orderColumns,
		arg.ID, arg.CancelledBy, arg.CancelReason,
	)
	return scanOrder(row)
}

// DeleteOrder physically removes an order row. The only caller is the
// gateway-failure cleanup path; everywhere else terminal states are kept.
func (q *Queries) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	return err
}
