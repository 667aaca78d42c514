package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jcr-pos/api/internal/database"
	"github.com/jcr-pos/api/internal/enum"
	"github.com/jcr-pos/api/internal/gateway"
	"github.com/shopspring/decimal"
)

// Errors returned by the order service.
var (
	ErrEmptyItems           = errors.New("items are required")
	ErrInvalidOrderType     = errors.New("invalid order_type")
	ErrInvalidPaymentMethod = errors.New("invalid payment_method")
	ErrInvalidQuantity      = errors.New("quantity must be > 0")
	ErrInvalidInventoryID   = errors.New("invalid inventory_id")
	ErrInvalidCatalog       = errors.New("invalid catalog")
	ErrTableNotFound        = errors.New("table not found")
	ErrItemNotFound         = errors.New("item not found")
	ErrItemUnavailable      = errors.New("item unavailable or out of stock")
	ErrSizeRequired         = errors.New("size is required for cafe items")
	ErrUnknownSize          = errors.New("unknown size")
	ErrOrderNotFound        = errors.New("order not found")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrTransitionConflict   = errors.New("order was updated concurrently")
	ErrPaymentRequired      = errors.New("order must be paid before preparing")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed by the order service.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetTableByNumber(ctx context.Context, tableNumber int32) (database.Table, error)
	GetItem(ctx context.Context, arg database.GetItemParams) (database.InventoryItem, error)
	DecrementStock(ctx context.Context, arg database.DecrementStockParams) (database.InventoryItem, error)
	AdjustStock(ctx context.Context, arg database.AdjustStockParams) (database.InventoryItem, error)
	AcquireQueueLock(ctx context.Context) error
	CountActiveOrders(ctx context.Context) (int64, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	SetOrderPaid(ctx context.Context, arg database.SetOrderPaidParams) (database.Order, error)
	CancelOrder(ctx context.Context, arg database.CancelOrderParams) (database.Order, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// PaymentGateway creates payment sources for gcash orders.
// Satisfied by *gateway.Client.
type PaymentGateway interface {
	CreateSource(ctx context.Context, params gateway.CreateSourceParams) (*gateway.Source, error)
}

// PaymentWatcher arms and disarms the unpaid-order timeout for an order.
// Satisfied by *Watchdog; may be nil when timeouts are disabled.
type PaymentWatcher interface {
	Arm(order database.Order)
	Disarm(id uuid.UUID)
}

// allowedTransitions maps a status to the statuses staff may move it to.
// Cancellation goes through Cancel, never through UpdateStatus, because it
// has its own stock restoration path.
var allowedTransitions = map[string][]string{
	enum.OrderStatusPending:   {enum.OrderStatusPreparing},
	enum.OrderStatusPreparing: {enum.OrderStatusReady},
	enum.OrderStatusReady:     {enum.OrderStatusCompleted},
}

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	TableNumber   int32
	OrderType     string
	PaymentMethod string
	Items         []CreateOrderLineRequest
}

// CreateOrderLineRequest is a single line in the order.
type CreateOrderLineRequest struct {
	InventoryID string
	Catalog     string
	Size        string
	Quantity    int32
}

// CreateOrderResult is the created order. CheckoutURL is set only for gcash
// orders and points at the gateway's payment page.
type CreateOrderResult struct {
	Order       database.Order
	CheckoutURL string
}

// OrderService handles order lifecycle business logic.
type OrderService struct {
	pool          TxBeginner
	store         OrderStore
	newStore      NewOrderStore
	gateway       PaymentGateway
	hub           Broadcaster
	watcher       PaymentWatcher
	publicBaseURL string
}

// NewOrderService creates a new OrderService. store must be backed by the
// same pool used for transactions.
func NewOrderService(pool TxBeginner, store OrderStore, newStore NewOrderStore, gw PaymentGateway, hub Broadcaster, publicBaseURL string) *OrderService {
	return &OrderService{
		pool:          pool,
		store:         store,
		newStore:      newStore,
		gateway:       gw,
		hub:           hub,
		publicBaseURL: publicBaseURL,
	}
}

// SetWatcher wires the unpaid-order watchdog in after construction. The
// watchdog itself needs the service to cancel orders, so the dependency
// cannot be set in the constructor.
func (s *OrderService) SetWatcher(w PaymentWatcher) {
	s.watcher = w
}

// resolvedLine is an order line with its catalog row and settled price.
type resolvedLine struct {
	item database.OrderItem
}

// Create validates, prices, and creates an order. Cash orders reserve stock
// immediately; gcash orders only check availability and reserve after the
// gateway confirms payment.
func (s *OrderService) Create(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if !enum.IsValidOrderType(req.OrderType) {
		return nil, ErrInvalidOrderType
	}
	if !enum.IsValidPaymentMethod(req.PaymentMethod) {
		return nil, ErrInvalidPaymentMethod
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	// Validate the table exists before anything else.
	if _, err := s.store.GetTableByNumber(ctx, req.TableNumber); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("get table: %w", err)
	}

	// Resolve catalog rows and settle prices outside the transaction. Name
	// and price are frozen into the order lines here.
	lines, total, err := s.resolveLines(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	reference := newReferenceNumber(time.Now())

	switch req.PaymentMethod {
	case enum.PaymentMethodCash:
		return s.createCashOrder(ctx, req, reference, lines, total)
	default:
		return s.createGCashOrder(ctx, req, reference, lines, total)
	}
}

// resolveLines validates each requested line against the catalog and returns
// the denormalized order lines plus the order total.
func (s *OrderService) resolveLines(ctx context.Context, reqItems []CreateOrderLineRequest) ([]resolvedLine, decimal.Decimal, error) {
	total := decimal.Zero
	var lines []resolvedLine

	for i, line := range reqItems {
		if line.Quantity <= 0 {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		if !enum.IsValidCatalog(line.Catalog) {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrInvalidCatalog)
		}
		inventoryID, err := uuid.Parse(line.InventoryID)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrInvalidInventoryID)
		}

		item, err := s.store.GetItem(ctx, database.GetItemParams{
			ID:      inventoryID,
			Catalog: line.Catalog,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrItemNotFound)
			}
			return nil, decimal.Zero, fmt.Errorf("item[%d]: get item: %w", i, err)
		}

		if item.Status != enum.ItemAvailable || item.Stock < line.Quantity {
			return nil, decimal.Zero, fmt.Errorf("item[%d] %s: %w", i, item.Name, ErrItemUnavailable)
		}

		unitPrice, err := settlePrice(item, line.Size)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("item[%d] %s: %w", i, item.Name, err)
		}

		lineTotal := unitPrice.Mul(decimal.NewFromInt32(line.Quantity))
		total = total.Add(lineTotal)

		lines = append(lines, resolvedLine{
			item: database.OrderItem{
				InventoryID: inventoryID,
				Name:        item.Name,
				UnitPrice:   unitPrice,
				Quantity:    line.Quantity,
				Total:       lineTotal,
				Size:        line.Size,
				Catalog:     line.Catalog,
			},
		})
	}

	return lines, total, nil
}

// settlePrice picks the unit price for a catalog row. Regular items carry a
// flat price; cafe items price by size.
func settlePrice(item database.InventoryItem, size string) (decimal.Decimal, error) {
	if item.Sizes == nil {
		return numericToDecimal(item.Price), nil
	}
	if size == "" {
		return decimal.Zero, ErrSizeRequired
	}
	price, ok := item.Sizes[size]
	if !ok {
		return decimal.Zero, ErrUnknownSize
	}
	return price, nil
}

// createCashOrder inserts the order and reserves stock in one transaction.
// Cash orders enter the queue immediately as pending.
func (s *OrderService) createCashOrder(ctx context.Context, req CreateOrderRequest, reference string, lines []resolvedLine, total decimal.Decimal) (*CreateOrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// Reserve stock first. The guarded decrement fails if a concurrent
	// order took the last units since resolveLines looked.
	touched, err := takeLines(ctx, store, lines)
	if err != nil {
		return nil, err
	}

	order, err := insertOrder(ctx, store, req, reference, lines, total, insertOrderOpts{
		status:        enum.OrderStatusPending,
		paymentStatus: enum.PaymentStatusPending,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.afterOrderChange(order, touched)
	if s.watcher != nil {
		s.watcher.Arm(order)
	}
	return &CreateOrderResult{Order: order}, nil
}

// createGCashOrder registers a payment source with the gateway, then inserts
// the order as pending_payment. Stock is not reserved until the gateway
// confirms the charge.
func (s *OrderService) createGCashOrder(ctx context.Context, req CreateOrderRequest, reference string, lines []resolvedLine, total decimal.Decimal) (*CreateOrderResult, error) {
	returnURL := s.publicBaseURL + "/payments/gcash/return?order=" + reference
	source, err := s.gateway.CreateSource(ctx, gateway.CreateSourceParams{
		Amount:      total.Mul(decimal.NewFromInt(100)).IntPart(),
		Currency:    "PHP",
		SuccessURL:  returnURL + "&payment=success",
		FailedURL:   returnURL + "&payment=failed",
		Description: "Order " + reference,
	})
	if err != nil {
		return nil, fmt.Errorf("create payment source: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := insertOrder(ctx, store, req, reference, lines, total, insertOrderOpts{
		status:          enum.OrderStatusPendingPayment,
		paymentStatus:   enum.PaymentStatusPending,
		paymentSourceID: source.ID,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.afterOrderChange(order, nil)
	if s.watcher != nil {
		s.watcher.Arm(order)
	}
	return &CreateOrderResult{Order: order, CheckoutURL: source.CheckoutURL}, nil
}

type insertOrderOpts struct {
	status          string
	paymentStatus   string
	paymentSourceID string
}

// insertOrder allocates a queue position and writes the order row. The
// advisory lock makes count-plus-one a single-writer counter, so two
// concurrent submissions cannot share a position.
func insertOrder(ctx context.Context, store OrderStore, req CreateOrderRequest, reference string, lines []resolvedLine, total decimal.Decimal, opts insertOrderOpts) (database.Order, error) {
	if err := store.AcquireQueueLock(ctx); err != nil {
		return database.Order{}, fmt.Errorf("acquire queue lock: %w", err)
	}
	active, err := store.CountActiveOrders(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("count active orders: %w", err)
	}

	items := make([]database.OrderItem, len(lines))
	for i, line := range lines {
		items[i] = line.item
	}

	sourceID := pgtype.Text{}
	if opts.paymentSourceID != "" {
		sourceID = pgtype.Text{String: opts.paymentSourceID, Valid: true}
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		ReferenceNumber: reference,
		TableNumber:     req.TableNumber,
		Items:           items,
		TotalAmount:     decimalToNumeric(total),
		OrderType:       req.OrderType,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   opts.paymentStatus,
		Status:          opts.status,
		QueuePosition:   int32(active) + 1,
		PaymentSourceID: sourceID,
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("create order: %w", err)
	}
	return order, nil
}

// UpdateStatus moves an order along the kitchen flow. The transition is
// compare-and-set against the status the caller observed.
func (s *OrderService) UpdateStatus(ctx context.Context, id uuid.UUID, newStatus string) (database.Order, error) {
	if !enum.IsValidOrderStatus(newStatus) {
		return database.Order{}, ErrInvalidStatus
	}

	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}

	if !transitionAllowed(order.Status, newStatus) {
		return database.Order{}, fmt.Errorf("%s to %s: %w", order.Status, newStatus, ErrInvalidTransition)
	}

	// Unpaid orders never reach the kitchen.
	if newStatus == enum.OrderStatusPreparing && order.PaymentStatus != enum.PaymentStatusPaid {
		return database.Order{}, ErrPaymentRequired
	}

	updated, err := s.store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:         id,
		Status:     newStatus,
		FromStatus: order.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrTransitionConflict
		}
		return database.Order{}, fmt.Errorf("update order status: %w", err)
	}

	if newStatus == enum.OrderStatusCompleted && s.watcher != nil {
		s.watcher.Disarm(id)
	}
	broadcastOrder(s.hub, EventOrderUpdated, updated)
	return updated, nil
}

func transitionAllowed(from, to string) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// MarkPaid records payment for an order. A pending_payment order is promoted
// to pending and its stock is reserved at that point, since gcash orders
// skip reservation at creation. Marking an already paid order is a no-op.
func (s *OrderService) MarkPaid(ctx context.Context, id uuid.UUID) (database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}

	if order.PaymentStatus == enum.PaymentStatusPaid {
		return order, nil
	}
	if order.Status == enum.OrderStatusCancelled {
		return database.Order{}, fmt.Errorf("order %s is cancelled: %w", order.ReferenceNumber, ErrInvalidTransition)
	}

	newStatus := order.Status
	var touched []settledItem
	if order.Status == enum.OrderStatusPendingPayment {
		newStatus = enum.OrderStatusPending
		touched, err = settleLines(ctx, store, order.Items)
		if err != nil {
			return database.Order{}, err
		}
	}

	updated, err := store.SetOrderPaid(ctx, database.SetOrderPaidParams{
		ID:     id,
		Status: newStatus,
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
	s.afterOrderChange(updated, touched)
	return updated, nil
}

// Cancel moves an order to cancelled and restores any reserved stock.
// Cancelling an order that is already terminal is a benign no-op.
func (s *OrderService) Cancel(ctx context.Context, id uuid.UUID, cancelledBy, reason string) (database.Order, error) {
	return s.cancel(ctx, id, cancelledBy, reason, false)
}

// CancelUnpaid is the watchdog's cancel path. Payment is re-checked under
// the row lock, so a timer fired from a stale unpaid snapshot never voids an
// order that was paid in the meantime.
func (s *OrderService) CancelUnpaid(ctx context.Context, id uuid.UUID, reason string) (database.Order, error) {
	return s.cancel(ctx, id, enum.CancelledBySystem, reason, true)
}

func (s *OrderService) cancel(ctx context.Context, id uuid.UUID, cancelledBy, reason string, unpaidOnly bool) (database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}

	if enum.IsTerminalOrderStatus(order.Status) {
		return order, nil
	}
	if unpaidOnly && order.PaymentStatus == enum.PaymentStatusPaid {
		return order, nil
	}

	// Stock was reserved unless this is a gcash order still waiting for
	// payment. Restoring only then keeps cancellation from minting stock.
	var touched []settledItem
	if order.Status != enum.OrderStatusPendingPayment {
		touched, err = restoreLines(ctx, store, order.Items)
		if err != nil {
			return database.Order{}, err
		}
	}

	cancelled, err := store.CancelOrder(ctx, database.CancelOrderParams{
		ID:           id,
		CancelledBy:  cancelledBy,
		CancelReason: reason,
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("cancel order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}

	if s.watcher != nil {
		s.watcher.Disarm(id)
	}
	s.afterOrderChange(cancelled, touched)
	return cancelled, nil
}

// settledItem pairs an updated catalog row with its catalog for broadcasting.
type settledItem struct {
	catalog string
	item    database.InventoryItem
}

// takeLines reserves stock for each line with the guarded decrement. Any
// failure aborts the whole order.
func takeLines(ctx context.Context, store OrderStore, lines []resolvedLine) ([]settledItem, error) {
	var touched []settledItem
	for _, line := range lines {
		item, err := store.DecrementStock(ctx, database.DecrementStockParams{
			ID:       line.item.InventoryID,
			Catalog:  line.item.Catalog,
			Quantity: line.item.Quantity,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("%s: %w", line.item.Name, ErrItemUnavailable)
			}
			return nil, fmt.Errorf("decrement stock for %s: %w", line.item.Name, err)
		}
		touched = append(touched, settledItem{catalog: line.item.Catalog, item: item})
	}
	return touched, nil
}

// settleLines deducts stock for an already paid order. The payment went
// through, so the deduction is clamped rather than refused, and lines whose
// catalog row has since been deleted are skipped.
func settleLines(ctx context.Context, store OrderStore, items []database.OrderItem) ([]settledItem, error) {
	return adjustLines(ctx, store, items, -1)
}

// restoreLines returns stock from a cancelled order. Lines whose catalog row
// has since been deleted are skipped.
func restoreLines(ctx context.Context, store OrderStore, items []database.OrderItem) ([]settledItem, error) {
	return adjustLines(ctx, store, items, 1)
}

func adjustLines(ctx context.Context, store OrderStore, items []database.OrderItem, sign int32) ([]settledItem, error) {
	var touched []settledItem
	for _, line := range items {
		item, err := store.AdjustStock(ctx, database.AdjustStockParams{
			ID:      line.InventoryID,
			Catalog: line.Catalog,
			Delta:   sign * line.Quantity,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			return nil, fmt.Errorf("adjust stock for %s: %w", line.Name, err)
		}
		touched = append(touched, settledItem{catalog: line.Catalog, item: item})
	}
	return touched, nil
}

// afterOrderChange broadcasts the order snapshot and any catalog rows the
// change touched.
func (s *OrderService) afterOrderChange(order database.Order, touched []settledItem) {
	broadcastOrder(s.hub, EventOrderUpdated, order)
	for _, t := range touched {
		broadcastInventory(s.hub, t.catalog, t.item)
	}
}

// newReferenceNumber derives a short customer-facing reference from the
// submission time: JCR plus the last six digits of the unix millisecond
// clock.
func newReferenceNumber(t time.Time) string {
	ms := t.UnixMilli()
	return fmt.Sprintf("JCR%06d", ms%1000000)
}

// --- Helpers ---

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
