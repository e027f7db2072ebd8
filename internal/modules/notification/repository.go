package notification

import (
	"context"
	"time"
)

// Repository defines data access for notifications.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	List(ctx context.Context, limit int) ([]*Notification, error)

	// MarkRead flips one notification to read. Already-read rows are a no-op.
	MarkRead(ctx context.Context, id string) error

	// MarkAllRead flips every unread notification. Idempotent.
	MarkAllRead(ctx context.Context) error

	// Clear removes all notifications.
	Clear(ctx context.Context) error

	// ExistsSince reports whether a notification of the given type was
	// created at or after t. Used for once-per-day triggers.
	ExistsSince(ctx context.Context, typ Type, t time.Time) (bool, error)
}
