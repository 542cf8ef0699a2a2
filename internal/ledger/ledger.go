// Package ledger owns every change to an account's credit balance.
package ledger

import (
	"context"
	"fmt"

	"kiranalogo/internal/domain"
	"kiranalogo/internal/infra"
)

// Service wraps the ledger repository with amount checks and logging.
type Service struct {
	repo   domain.LedgerRepository
	logger infra.Logger
}

func NewService(repo domain.LedgerRepository, logger infra.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// TryDebit atomically takes amount credits or fails with
// domain.ErrInsufficientCredits leaving the balance untouched.
func (s *Service) TryDebit(ctx context.Context, accountID string, amount int, reference string) (int, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	balance, err := s.repo.Debit(ctx, accountID, amount, reference)
	if err != nil {
		return 0, err
	}
	s.logger.Debug().Str("account_id", accountID).Int("amount", amount).Int("balance", balance).Msg("credits debited")
	return balance, nil
}

// Credit adds amount credits. It is used for grants and purchases.
func (s *Service) Credit(ctx context.Context, accountID string, kind domain.EntryKind, amount int, reference string) (int, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	switch kind {
	case domain.EntryGrant, domain.EntryPurchase, domain.EntryRefund:
	default:
		return 0, fmt.Errorf("credit kind %q: %w", kind, domain.ErrValidation)
	}
	balance, err := s.repo.Credit(ctx, accountID, kind, amount, reference)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Str("account_id", accountID).Str("kind", string(kind)).Int("amount", amount).Int("balance", balance).Msg("credits added")
	return balance, nil
}

// Refund returns credits taken for a submission that never reached the provider.
func (s *Service) Refund(ctx context.Context, accountID string, amount int, reference string) (int, error) {
	return s.Credit(ctx, accountID, domain.EntryRefund, amount, reference)
}

func (s *Service) Balance(ctx context.Context, accountID string) (int, error) {
	return s.repo.Balance(ctx, accountID)
}

// ConfirmPurchase applies a sale exactly once. Replays return the current
// balance with applied = false.
func (s *Service) ConfirmPurchase(ctx context.Context, p *domain.Purchase) (int, bool, error) {
	if p.Credits <= 0 {
		return 0, false, domain.ErrInvalidAmount
	}
	if p.ExternalID == "" || p.Provider == "" {
		return 0, false, fmt.Errorf("purchase reference required: %w", domain.ErrValidation)
	}
	balance, applied, err := s.repo.RecordPurchase(ctx, p)
	if err != nil {
		return 0, false, err
	}
	evt := s.logger.Info()
	if !applied {
		evt = s.logger.Warn()
	}
	evt.Str("account_id", p.AccountID).Str("sale_id", p.ExternalID).Bool("applied", applied).Int("balance", balance).Msg("purchase confirmed")
	return balance, applied, nil
}

func (s *Service) Purchases(ctx context.Context, accountID string, limit int) ([]domain.Purchase, error) {
	return s.repo.ListPurchases(ctx, accountID, limit)
}

func (s *Service) Entries(ctx context.Context, accountID string, limit int) ([]domain.CreditEntry, error) {
	return s.repo.ListEntries(ctx, accountID, limit)
}
