package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Order is a customer purchase. Items are embedded (jsonb): an order owns
// its line entries exclusively and they have no independent lifecycle.
type Order struct {
	ID              uuid.UUID
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
	CreatedAt       time.Time
	PaidAt          pgtype.Timestamptz
	CancelledAt     pgtype.Timestamptz
	CancelledBy     pgtype.Text
	CancelReason    pgtype.Text
}

// OrderItem is one line of an order. Name and price are denormalized at
// creation time so later catalog edits never change placed orders.
type OrderItem struct {
	InventoryID uuid.UUID       `json:"inventory_id"`
	Name        string          `json:"name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int32           `json:"quantity"`
	Total       decimal.Decimal `json:"total"`
	Size        string          `json:"size,omitempty"`
	Catalog     string          `json:"catalog"`
}

// InventoryItem is a catalog row. Regular items carry a unit price; cafe
// items carry a size→price map instead (mutually exclusive). Status is a
// pure function of stock and is recomputed by every stock mutation.
type InventoryItem struct {
	ID         uuid.UUID
	Name       string
	Category   string
	Price      pgtype.Numeric
	Sizes      map[string]decimal.Decimal
	Stock      int32
	Status     string
	ShowInMenu bool
	CreatedAt  time.Time
}

// Table is a physical restaurant table; used only to validate submissions.
type Table struct {
	ID          uuid.UUID
	TableNumber int32
}

// User is a staff or admin account.
type User struct {
	ID             uuid.UUID
	Name           string
	Username       string
	HashedPassword string
	Role           string
	CreatedAt      time.Time
}
