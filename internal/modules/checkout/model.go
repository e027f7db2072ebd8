package checkout

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	StatusPaid      OrderStatus = "PAID"
	StatusFulfilled OrderStatus = "FULFILLED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// PaymentMethod labels how the customer paid. It is a label only; settlement
// happens outside this system.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentCard     PaymentMethod = "card"
)

// Order is a committed sale. All money fields are integer cents.
// total = max(0, subtotal - discount) + tax, and total >= 0 always.
type Order struct {
	ID            uuid.UUID     `json:"id"`
	OrderNo       string        `json:"order_no"`
	Status        OrderStatus   `json:"status"`
	Subtotal      int64         `json:"subtotal"`
	Discount      int64         `json:"discount"`
	Tax           int64         `json:"tax"`
	Total         int64         `json:"total"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	CustomerID    *uuid.UUID    `json:"customer_id,omitempty"`
	UserID        *uuid.UUID    `json:"user_id,omitempty"`
	Lines         []*OrderLine  `json:"items"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// OrderLine is one item within an order. UnitPrice and Name are snapshots
// taken at sale time; later catalog edits never rewrite history.
type OrderLine struct {
	ID        uuid.UUID `json:"id"`
	OrderID   uuid.UUID `json:"order_id"`
	ItemID    uuid.UUID `json:"item_id"`
	Name      string    `json:"name"`
	UnitPrice int64     `json:"unit_price"`
	Quantity  int       `json:"quantity"`
	LineTotal int64     `json:"line_total"`
}

// CartLine is one requested item in a checkout.
type CartLine struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// CheckoutRequest is the payload for converting a cart into an order.
// Discount is a currency amount unless DiscountIsPercent is set, in which
// case it is a percentage of the subtotal.
type CheckoutRequest struct {
	Items             []CartLine `json:"items"`
	PaymentMethod     string     `json:"payment_method"`
	Discount          float64    `json:"discount"`
	DiscountIsPercent bool       `json:"discount_is_percent"`
	CustomerID        string     `json:"customer_id,omitempty"`
	UserID            string     `json:"user_id,omitempty"`
}

// UpdateStatusRequest is the payload for advancing an order's status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// ValidationError reports a request rejected before any write happened.
type ValidationError struct{ Reason string }

func (e *ValidationError) Error() string { return e.Reason }

var (
	// ErrConflict means a concurrent checkout raced this one on the same
	// items. The caller may re-fetch stock and retry.
	ErrConflict = errors.New("checkout: conflicting concurrent update, retry")

	// ErrPersistence means a transient storage failure; no partial state was
	// committed and the checkout is safe to retry.
	ErrPersistence = errors.New("checkout: persistence failure")

	// ErrNotFound means the referenced order does not exist.
	ErrNotFound = errors.New("checkout: order not found")
)
