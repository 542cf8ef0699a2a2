package repo

import (
	"context"
	"fmt"

	"kiranalogo/internal/domain"
	"kiranalogo/internal/infra"
	"kiranalogo/internal/sqlinline"
)

const accountsCreditsCheck = "accounts_credits_check"

// LedgerRepositoryPG implements domain.LedgerRepository. Each balance change
// is one statement so concurrent debits cannot both pass the balance check.
type LedgerRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewLedgerRepository(sql infra.SQLExecutor) *LedgerRepositoryPG {
	return &LedgerRepositoryPG{sql: sql}
}

func (r *LedgerRepositoryPG) Debit(ctx context.Context, accountID string, amount int, reference string) (int, error) {
	var balance int
	err := r.sql.QueryRow(ctx, sqlinline.QDebitCredits, accountID, amount, reference).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if infra.IsCheckViolation(err, accountsCreditsCheck) {
		return 0, domain.ErrInsufficientCredits
	}
	if !infra.IsNoRows(err) {
		return 0, fmt.Errorf("debit credits: %w", err)
	}
	// No row means either an unknown account or an insufficient balance.
	if _, err := r.Balance(ctx, accountID); err != nil {
		return 0, err
	}
	return 0, domain.ErrInsufficientCredits
}

func (r *LedgerRepositoryPG) Credit(ctx context.Context, accountID string, kind domain.EntryKind, amount int, reference string) (int, error) {
	var balance int
	err := r.sql.QueryRow(ctx, sqlinline.QCreditCredits, accountID, string(kind), amount, reference).Scan(&balance)
	if err != nil {
		if infra.IsNoRows(err) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("credit %s: %w", kind, err)
	}
	return balance, nil
}

func (r *LedgerRepositoryPG) Balance(ctx context.Context, accountID string) (int, error) {
	var balance int
	if err := r.sql.QueryRow(ctx, sqlinline.QSelectBalance, accountID).Scan(&balance); err != nil {
		if infra.IsNoRows(err) {
			return 0, domain.ErrNotFound
		}
		return 0, err
	}
	return balance, nil
}

func (r *LedgerRepositoryPG) RecordPurchase(ctx context.Context, p *domain.Purchase) (int, bool, error) {
	var (
		balance int
		applied bool
	)
	row := r.sql.QueryRow(ctx, sqlinline.QRecordPurchase, p.AccountID, p.Provider, p.ExternalID, p.Credits, p.PricePaid, p.Currency)
	if err := row.Scan(&balance, &applied); err != nil {
		if infra.IsNoRows(err) || infra.IsForeignKeyViolation(err) {
			return 0, false, domain.ErrNotFound
		}
		return 0, false, fmt.Errorf("record purchase: %w", err)
	}
	return balance, applied, nil
}

func (r *LedgerRepositoryPG) ListPurchases(ctx context.Context, accountID string, limit int) ([]domain.Purchase, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListPurchases, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Purchase
	for rows.Next() {
		var p domain.Purchase
		if err := rows.Scan(&p.ID, &p.AccountID, &p.Provider, &p.ExternalID, &p.Credits, &p.PricePaid, &p.Currency, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *LedgerRepositoryPG) ListEntries(ctx context.Context, accountID string, limit int) ([]domain.CreditEntry, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListCreditEntries, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CreditEntry
	for rows.Next() {
		var (
			e    domain.CreditEntry
			kind string
		)
		if err := rows.Scan(&e.ID, &e.AccountID, &kind, &e.Amount, &e.BalanceAfter, &e.Reference, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = domain.EntryKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

var _ domain.LedgerRepository = (*LedgerRepositoryPG)(nil)
