package user

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User is a shop account (owner or cashier) that can act on orders and stock.
// Registration and profile management happen outside this service; the engine
// only reads users to authenticate and to attribute orders.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         string    `json:"role"` // owner, cashier
	CreatedAt    time.Time `json:"created_at"`
}

// Repository defines read access to users.
type Repository interface {
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
}
