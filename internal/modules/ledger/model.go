package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Reason classifies a stock movement.
type Reason string

const (
	ReasonSale       Reason = "sale"
	ReasonPurchase   Reason = "purchase"
	ReasonAdjustment Reason = "adjustment"
	ReasonReturn     Reason = "return"
)

// ValidReason reports whether r is a known movement reason.
func ValidReason(r Reason) bool {
	switch r {
	case ReasonSale, ReasonPurchase, ReasonAdjustment, ReasonReturn:
		return true
	}
	return false
}

// Entry is an immutable record of one stock change. Entries are never updated
// or deleted; a correction is a new entry with a compensating delta. The sum
// of all deltas for an item always equals the item's cached stock.
type Entry struct {
	ID        uuid.UUID  `json:"id"`
	ItemID    uuid.UUID  `json:"item_id"`
	Delta     int        `json:"delta"` // positive = stock in, negative = stock out
	Reason    Reason     `json:"reason"`
	OrderID   *uuid.UUID `json:"order_id,omitempty"`
	Note      string     `json:"note,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ValidationError reports a request rejected before any write happened.
type ValidationError struct{ Reason string }

func (e *ValidationError) Error() string { return e.Reason }

// Shortage describes one item a rejected batch would have driven negative.
type Shortage struct {
	ItemID    uuid.UUID `json:"item_id"`
	Name      string    `json:"name"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

// InsufficientStockError rejects an entire batch when any item in it lacks
// stock. It names every short item so the caller can re-sync its cart instead
// of retrying blindly.
type InsufficientStockError struct {
	Shortages []Shortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		parts = append(parts, fmt.Sprintf("%s (requested %d, available %d)", s.Name, s.Requested, s.Available))
	}
	return "insufficient stock: " + strings.Join(parts, ", ")
}
