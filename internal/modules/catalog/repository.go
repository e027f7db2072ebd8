package catalog

import "context"

// Repository defines data access for catalog items.
type Repository interface {
	Create(ctx context.Context, item *Item) error
	GetByID(ctx context.Context, id string) (*Item, error)
	List(ctx context.Context, lowStockBelow int) ([]*Item, error)
	Update(ctx context.Context, item *Item) error
	Deactivate(ctx context.Context, id string) error
}
