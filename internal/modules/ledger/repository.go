package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrUnknownItem is returned when a batch references an item that does not exist.
var ErrUnknownItem = errors.New("ledger: unknown item")

// StockResult is the outcome of a committed batch for one item.
type StockResult struct {
	Name  string
	Stock int
}

// Repository defines data access for the stock ledger.
type Repository interface {
	// Append validates and writes a batch of entries atomically, updating each
	// item's cached stock in the same unit of work. If any item in the batch
	// would go negative the whole batch is rejected with
	// *InsufficientStockError and nothing is written. The returned map holds
	// the resulting cached stock per item.
	Append(ctx context.Context, entries []*Entry) (map[uuid.UUID]StockResult, error)

	// CurrentStock folds all entries for the item. It is the consistency
	// oracle for the cached stock column.
	CurrentStock(ctx context.Context, itemID uuid.UUID) (int, error)

	// CachedStock reads the denormalized stock column directly.
	CachedStock(ctx context.Context, itemID uuid.UUID) (int, error)

	// ListByItem returns the newest entries for an item, newest first.
	ListByItem(ctx context.Context, itemID uuid.UUID, limit int) ([]*Entry, error)

	// List returns the newest entries across all items, newest first.
	List(ctx context.Context, limit int) ([]*Entry, error)
}
