package repo

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiranalogo/internal/domain"
	"kiranalogo/internal/sqlinline"
)

func TestLedgerDebit(t *testing.T) {
	ctx := context.Background()

	t.Run("covered", func(t *testing.T) {
		sql := &stubSQL{rows: []stubRow{{values: []any{4}}}}
		balance, err := NewLedgerRepository(sql).Debit(ctx, "acct", 1, "submission")
		require.NoError(t, err)
		assert.Equal(t, 4, balance)
		require.Len(t, sql.calls, 1)
		assert.Equal(t, sqlinline.QDebitCredits, sql.calls[0].query)
		assert.Equal(t, []any{"acct", 1, "submission"}, sql.calls[0].args)
	})

	t.Run("insufficient", func(t *testing.T) {
		sql := &stubSQL{rows: []stubRow{{err: pgx.ErrNoRows}, {values: []any{0}}}}
		_, err := NewLedgerRepository(sql).Debit(ctx, "acct", 1, "submission")
		assert.ErrorIs(t, err, domain.ErrInsufficientCredits)
		require.Len(t, sql.calls, 2)
		assert.Equal(t, sqlinline.QSelectBalance, sql.calls[1].query)
	})

	t.Run("check_constraint", func(t *testing.T) {
		sql := &stubSQL{rows: []stubRow{{err: pgError("23514", accountsCreditsCheck)}}}
		_, err := NewLedgerRepository(sql).Debit(ctx, "acct", 1, "submission")
		assert.ErrorIs(t, err, domain.ErrInsufficientCredits)
		assert.Len(t, sql.calls, 1)
	})

	t.Run("other_check_constraint", func(t *testing.T) {
		sql := &stubSQL{rows: []stubRow{{err: pgError("23514", "credit_entries_kind_check")}}}
		_, err := NewLedgerRepository(sql).Debit(ctx, "acct", 1, "submission")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrInsufficientCredits)
	})

	t.Run("unknown_account", func(t *testing.T) {
		sql := &stubSQL{}
		_, err := NewLedgerRepository(sql).Debit(ctx, "missing", 1, "submission")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestLedgerCreditPassesKind(t *testing.T) {
	sql := &stubSQL{rows: []stubRow{{values: []any{7}}}}
	balance, err := NewLedgerRepository(sql).Credit(context.Background(), "acct", domain.EntryRefund, 1, "pred-1")
	require.NoError(t, err)
	assert.Equal(t, 7, balance)
	assert.Equal(t, []any{"acct", "refund", 1, "pred-1"}, sql.lastArgs())
}

func TestLedgerRecordPurchase(t *testing.T) {
	ctx := context.Background()
	p := &domain.Purchase{AccountID: "acct", Provider: "gumroad", ExternalID: "sale-1", Credits: 50, PricePaid: 500, Currency: "USD"}

	sql := &stubSQL{rows: []stubRow{{values: []any{53, true}}, {values: []any{53, false}}}}
	repo := NewLedgerRepository(sql)

	balance, applied, err := repo.RecordPurchase(ctx, p)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 53, balance)

	balance, applied, err = repo.RecordPurchase(ctx, p)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 53, balance)

	fk := &stubSQL{rows: []stubRow{{err: pgError("23503", "purchase_history_account_id_fkey")}}}
	_, _, err = NewLedgerRepository(fk).RecordPurchase(ctx, p)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLedgerListPurchases(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	sql := &stubSQL{results: [][][]any{{
		{"p1", "acct", "gumroad", "sale-1", 50, int64(500), "USD", at},
		{"p2", "acct", "gumroad", "sale-2", 200, int64(1500), "USD", at},
	}}}
	items, err := NewLedgerRepository(sql).ListPurchases(context.Background(), "acct", 50)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "sale-2", items[1].ExternalID)
	assert.Equal(t, int64(1500), items[1].PricePaid)
}
