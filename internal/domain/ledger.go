package domain

import "time"

// EntryKind classifies a credit ledger movement.
type EntryKind string

const (
	EntrySignup   EntryKind = "signup"
	EntryGrant    EntryKind = "grant"
	EntryDebit    EntryKind = "debit"
	EntryRefund   EntryKind = "refund"
	EntryPurchase EntryKind = "purchase"
)

// GenerationCost is the number of credits one submission consumes.
const GenerationCost = 1

// CreditEntry records one balance change together with the balance it produced.
type CreditEntry struct {
	ID           string
	AccountID    string
	Kind         EntryKind
	Amount       int
	BalanceAfter int
	Reference    string
	CreatedAt    time.Time
}

// Purchase is a confirmed credit package sale.
type Purchase struct {
	ID         string
	AccountID  string
	Provider   string
	ExternalID string
	Credits    int
	PricePaid  int64
	Currency   string
	CreatedAt  time.Time
}
