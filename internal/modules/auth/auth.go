package auth

import "context"

// Service issues signed tokens for shop accounts.
type Service interface {
	// Login checks the email/password pair against the stored hash and
	// returns a signed token for the matching user.
	Login(ctx context.Context, email, password string) (string, error)
}
