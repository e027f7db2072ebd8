package catalog

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ValidationError reports a rejected create or update payload.
type ValidationError struct{ Reason string }

func (e *ValidationError) Error() string { return e.Reason }

// ErrNotFound means the referenced item does not exist.
var ErrNotFound = errors.New("catalog: item not found")

// Item is a sellable unit: an animal or a piece of equipment.
// All money fields are integer cents. Stock is a cached value owned by the
// inventory ledger; this module never writes it.
type Item struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	PriceCents int64     `json:"price"`
	CostCents  int64     `json:"cost"`
	Stock      int       `json:"stock"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CreateItemRequest holds data for adding an item to the catalog.
type CreateItemRequest struct {
	Name       string `json:"name"`
	Category   string `json:"category"`
	PriceCents int64  `json:"price"`
	CostCents  int64  `json:"cost"`
}

// UpdateItemRequest holds data for editing an item. Stock is deliberately
// absent; stock changes go through the ledger.
type UpdateItemRequest struct {
	Name       string `json:"name"`
	Category   string `json:"category"`
	PriceCents int64  `json:"price"`
	CostCents  int64  `json:"cost"`
	IsActive   *bool  `json:"is_active,omitempty"`
}
