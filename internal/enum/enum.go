package enum

// ── Order lifecycle (CHECK constrained in DB) ──

const (
	OrderStatusPendingPayment = "pending_payment"
	OrderStatusPending        = "pending"
	OrderStatusPreparing      = "preparing"
	OrderStatusReady          = "ready"
	OrderStatusCompleted      = "completed"
	OrderStatusCancelled      = "cancelled"
)

const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
)

const (
	PaymentMethodCash  = "cash"
	PaymentMethodGCash = "gcash"
)

const (
	OrderTypeDineIn  = "dine_in"
	OrderTypeTakeOut = "take_out"
)

// ── Catalogs ──

const (
	CatalogRegular = "regular"
	CatalogCafe    = "cafe"
)

// ── Inventory availability (derived from stock, never set directly) ──

const (
	ItemAvailable   = "available"
	ItemUnavailable = "unavailable"
)

// ── Roles ──

const (
	UserRoleAdmin = "admin"
	UserRoleStaff = "staff"
)

// CancelledBySystem is the actor tag recorded on watchdog auto-cancellations.
const CancelledBySystem = "system"

// statusLabels maps order statuses to the text shown on customer surfaces.
// Business logic compares the constants above, never these labels.
var statusLabels = map[string]string{
	OrderStatusPendingPayment: "Waiting for Payment",
	OrderStatusPending:        "Pending",
	OrderStatusPreparing:      "Preparing",
	OrderStatusReady:          "Ready!",
	OrderStatusCompleted:      "Completed",
	OrderStatusCancelled:      "Cancelled",
}

// StatusLabel returns the display label for an order status.
// Unknown statuses fall back to the raw value.
func StatusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return status
}

// IsValidOrderStatus reports whether s is one of the closed set of statuses.
func IsValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPendingPayment, OrderStatusPending, OrderStatusPreparing,
		OrderStatusReady, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// IsTerminalOrderStatus reports whether s is a terminal status.
func IsTerminalOrderStatus(s string) bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// IsValidCatalog reports whether c names one of the two inventory catalogs.
func IsValidCatalog(c string) bool {
	return c == CatalogRegular || c == CatalogCafe
}

// IsValidOrderType reports whether t is a supported order type.
func IsValidOrderType(t string) bool {
	return t == OrderTypeDineIn || t == OrderTypeTakeOut
}

// IsValidPaymentMethod reports whether m is a supported payment method.
func IsValidPaymentMethod(m string) bool {
	return m == PaymentMethodCash || m == PaymentMethodGCash
}
