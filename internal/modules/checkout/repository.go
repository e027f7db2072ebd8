package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stockyardhq/stockyard-backend/internal/modules/ledger"
)

// ItemSnapshot is an item's price and stock as of checkout time.
type ItemSnapshot struct {
	ID         uuid.UUID
	Name       string
	PriceCents int64
	Stock      int
}

// Repository defines data access for orders.
type Repository interface {
	// Snapshot returns price/stock for the given active items. Items missing
	// from the result are unknown or inactive.
	Snapshot(ctx context.Context, itemIDs []uuid.UUID) (map[uuid.UUID]ItemSnapshot, error)

	// CreateOrder persists the order, its lines, and the sale ledger batch in
	// one transaction, assigning the order number from the per-day counter.
	// Returns the resulting cached stock per item. On insufficient stock the
	// transaction is rolled back and *ledger.InsufficientStockError returned.
	CreateOrder(ctx context.Context, o *Order, entries []*ledger.Entry) (map[uuid.UUID]ledger.StockResult, error)

	GetByID(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, status string, limit int) ([]*Order, error)

	// UpdateStatus writes the new status only if the stored status still
	// equals from, so a request that validated against a stale read cannot
	// overwrite a concurrent transition. A lost race returns ErrConflict.
	UpdateStatus(ctx context.Context, id string, from, to OrderStatus) error

	// SalesTotalSince sums totals of non-cancelled orders created at or after t.
	SalesTotalSince(ctx context.Context, t time.Time) (int64, error)
}
