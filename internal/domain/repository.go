package domain

import (
	"context"
	"time"
)

// AccountRepository persists accounts.
type AccountRepository interface {
	// Create inserts the account and records its opening balance as a signup entry.
	Create(ctx context.Context, account *Account) (*Account, error)
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	Delete(ctx context.Context, id string) error
}

// LedgerRepository mutates balances. Every mutation is a single conditional
// statement that also appends the matching CreditEntry.
type LedgerRepository interface {
	// Debit decrements by amount only when the balance covers it and returns the
	// new balance. ErrInsufficientCredits or ErrNotFound otherwise.
	Debit(ctx context.Context, accountID string, amount int, reference string) (int, error)
	Credit(ctx context.Context, accountID string, kind EntryKind, amount int, reference string) (int, error)
	Balance(ctx context.Context, accountID string) (int, error)
	// RecordPurchase credits the account once per (provider, external id).
	// applied is false when the purchase had already been recorded.
	RecordPurchase(ctx context.Context, p *Purchase) (balance int, applied bool, err error)
	ListPurchases(ctx context.Context, accountID string, limit int) ([]Purchase, error)
	ListEntries(ctx context.Context, accountID string, limit int) ([]CreditEntry, error)
}

// PredictionRepository is the job record store. ApplyUpdate is the only
// mutation path for status and is a compare-and-set on the stored status.
type PredictionRepository interface {
	Create(ctx context.Context, p *Prediction) error
	Get(ctx context.Context, id string) (*Prediction, error)
	// ApplyUpdate stores u only while the current status is one of
	// u.Status.Predecessors(). It returns the stored record and whether the
	// update was applied.
	ApplyUpdate(ctx context.Context, id string, u PredictionUpdate) (*Prediction, bool, error)
	MarkWebhookCompleted(ctx context.Context, id string) error
	// ClaimOpen returns up to limit open jobs last touched before updatedBefore,
	// oldest first, and marks them touched now.
	ClaimOpen(ctx context.Context, updatedBefore time.Time, limit int) ([]Prediction, error)
	ListSucceededByAccount(ctx context.Context, accountID string, limit int) ([]Prediction, error)
}

// LogoRepository is the artifact store.
type LogoRepository interface {
	// Create returns ErrDuplicateArtifact when a logo for the prediction exists.
	Create(ctx context.Context, logo *Logo) (*Logo, error)
	Get(ctx context.Context, id string) (*Logo, error)
	GetByPrediction(ctx context.Context, predictionID string) (*Logo, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]Logo, error)
	SetStorageKey(ctx context.Context, id, key string) error
	// Delete removes the logo only when owned by accountID.
	Delete(ctx context.Context, id, accountID string) error
}
