package service

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jcr-pos/api/internal/database"
	"github.com/jcr-pos/api/internal/enum"
	"github.com/jcr-pos/api/internal/ws"
)

// Event types pushed over WebSocket. Payloads are full record snapshots so
// clients can replace local state without refetching.
const (
	EventOrderUpdated     = "order.updated"
	EventOrderDeleted     = "order.deleted"
	EventInventoryUpdated = "inventory.updated"
)

// Broadcaster fans an event out to a topic's subscribers.
// Satisfied by *ws.Hub.
type Broadcaster interface {
	Broadcast(topic string, event ws.Event)
}

// OrderView is the JSON shape of an order, shared by HTTP responses and
// WebSocket payloads. Money is serialized as fixed-point strings.
type OrderView struct {
	ID              uuid.UUID            `json:"id"`
	ReferenceNumber string               `json:"reference_number"`
	TableNumber     int32                `json:"table_number"`
	Items           []database.OrderItem `json:"items"`
	TotalAmount     string               `json:"total_amount"`
	OrderType       string               `json:"order_type"`
	PaymentMethod   string               `json:"payment_method"`
	PaymentStatus   string               `json:"payment_status"`
	Status          string               `json:"status"`
	StatusLabel     string               `json:"status_label"`
	QueuePosition   int32                `json:"queue_position"`
	CreatedAt       time.Time            `json:"created_at"`
	PaidAt          *time.Time           `json:"paid_at"`
	CancelledAt     *time.Time           `json:"cancelled_at"`
	CancelledBy     *string              `json:"cancelled_by"`
	CancelReason    *string              `json:"cancel_reason"`
}

// NewOrderView converts a database order to its API shape.
func NewOrderView(o database.Order) OrderView {
	v := OrderView{
		ID:              o.ID,
		ReferenceNumber: o.ReferenceNumber,
		TableNumber:     o.TableNumber,
		Items:           o.Items,
		TotalAmount:     numericToDecimal(o.TotalAmount).StringFixed(2),
		OrderType:       o.OrderType,
		PaymentMethod:   o.PaymentMethod,
		PaymentStatus:   o.PaymentStatus,
		Status:          o.Status,
		StatusLabel:     enum.StatusLabel(o.Status),
		QueuePosition:   o.QueuePosition,
		CreatedAt:       o.CreatedAt,
	}
	if o.PaidAt.Valid {
		t := o.PaidAt.Time
		v.PaidAt = &t
	}
	if o.CancelledAt.Valid {
		t := o.CancelledAt.Time
		v.CancelledAt = &t
	}
	if o.CancelledBy.Valid {
		s := o.CancelledBy.String
		v.CancelledBy = &s
	}
	if o.CancelReason.Valid {
		s := o.CancelReason.String
		v.CancelReason = &s
	}
	return v
}

// InventoryView is the JSON shape of a catalog item. Price is nil for cafe
// items, Sizes is nil for regular items.
type InventoryView struct {
	ID         uuid.UUID         `json:"id"`
	Catalog    string            `json:"catalog"`
	Name       string            `json:"name"`
	Category   string            `json:"category"`
	Price      *string           `json:"price"`
	Sizes      map[string]string `json:"sizes"`
	Stock      int32             `json:"stock"`
	Status     string            `json:"status"`
	ShowInMenu bool              `json:"show_in_menu"`
	CreatedAt  time.Time         `json:"created_at"`
}

// NewInventoryView converts a database item to its API shape. The catalog is
// not stored on the row, so the caller supplies it.
func NewInventoryView(it database.InventoryItem, catalog string) InventoryView {
	v := InventoryView{
		ID:         it.ID,
		Catalog:    catalog,
		Name:       it.Name,
		Category:   it.Category,
		Stock:      it.Stock,
		Status:     it.Status,
		ShowInMenu: it.ShowInMenu,
		CreatedAt:  it.CreatedAt,
	}
	if it.Price.Valid {
		p := numericToDecimal(it.Price).StringFixed(2)
		v.Price = &p
	}
	if it.Sizes != nil {
		v.Sizes = make(map[string]string, len(it.Sizes))
		for size, price := range it.Sizes {
			v.Sizes[size] = price.StringFixed(2)
		}
	}
	return v
}

// broadcastOrder pushes an order snapshot to the staff feed and the order's
// table feed.
func broadcastOrder(hub Broadcaster, eventType string, o database.Order) {
	if hub == nil {
		return
	}
	payload, err := json.Marshal(NewOrderView(o))
	if err != nil {
		log.Printf("ERROR: marshal order event: %v", err)
		return
	}
	event := ws.Event{Type: eventType, Payload: payload}
	hub.Broadcast(ws.TopicOrders, event)
	hub.Broadcast(ws.TableTopic(o.TableNumber), event)
}

// broadcastOrderDeleted tells subscribers an order row is gone. Only the
// gateway-failure cleanup emits this.
func broadcastOrderDeleted(hub Broadcaster, o database.Order) {
	if hub == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"id":               o.ID,
		"reference_number": o.ReferenceNumber,
		"table_number":     o.TableNumber,
	})
	if err != nil {
		log.Printf("ERROR: marshal order deleted event: %v", err)
		return
	}
	event := ws.Event{Type: EventOrderDeleted, Payload: payload}
	hub.Broadcast(ws.TopicOrders, event)
	hub.Broadcast(ws.TableTopic(o.TableNumber), event)
}

// broadcastInventory pushes item snapshots to the staff feed after stock or
// catalog changes.
func broadcastInventory(hub Broadcaster, catalog string, items ...database.InventoryItem) {
	if hub == nil {
		return
	}
	for _, it := range items {
		payload, err := json.Marshal(NewInventoryView(it, catalog))
		if err != nil {
			log.Printf("ERROR: marshal inventory event: %v", err)
			continue
		}
		hub.Broadcast(ws.TopicOrders, ws.Event{Type: EventInventoryUpdated, Payload: payload})
	}
}
