package domain

import (
	"context"
	"time"
)

// Account is a registered user and its credit balance.
type Account struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Credits      int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal is the authenticated caller of a request. It is passed
// explicitly into every operation that acts on behalf of an account.
type Principal struct {
	AccountID string
	Email     string
	Country   string
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored on ctx, if any.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	if !ok || p.AccountID == "" {
		return Principal{}, false
	}
	return p, true
}
