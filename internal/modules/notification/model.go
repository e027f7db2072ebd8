package notification

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type classifies a notification.
type Type string

const (
	TypeNewOrder           Type = "new_order"
	TypeOrderStatusChanged Type = "order_status_changed"
	TypeLowStockAlert      Type = "low_stock_alert"
	TypeSalesTargetReached Type = "sales_target_reached"
)

// Notification is a persisted, user-facing event record. The broadcast copy
// is best-effort; this row is what a reconnecting client recovers from.
type Notification struct {
	ID        uuid.UUID       `json:"id"`
	Type      Type            `json:"type"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Read      bool            `json:"read"`
	CreatedAt time.Time       `json:"created_at"`
}

// Broadcast payloads, mirrored on the real-time channel.

type NewOrderPayload struct {
	OrderID       uuid.UUID `json:"orderId"`
	OrderNo       string    `json:"orderNo"`
	Total         int64     `json:"total"`
	PaymentMethod string    `json:"paymentMethod"`
}

type StatusChangedPayload struct {
	OrderID        uuid.UUID `json:"orderId"`
	OrderNo        string    `json:"orderNo"`
	PreviousStatus string    `json:"previousStatus"`
	Status         string    `json:"status"`
}

type LowStockPayload struct {
	ItemID uuid.UUID `json:"itemId"`
	Name   string    `json:"name"`
	Stock  int       `json:"stock"`
}

type SalesTargetPayload struct {
	Target int64 `json:"target"`
	Total  int64 `json:"total"`
}
