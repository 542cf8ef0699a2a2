package repo

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiranalogo/internal/domain"
)

func errNoRows() error { return pgx.ErrNoRows }

func TestLogoCreate(t *testing.T) {
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	sql := &stubSQL{rows: []stubRow{{values: []any{"logo-1", at}}}}

	logo, err := NewLogoRepository(sql).Create(context.Background(), &domain.Logo{
		AccountID:    "acct",
		PredictionID: "pred-1",
		Prompt:       "fox logo",
		ImageURL:     "https://out/0.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "logo-1", logo.ID)
	assert.Equal(t, at, logo.CreatedAt)
	assert.Equal(t, []any{"acct", "pred-1", "fox logo", "https://out/0.png"}, sql.lastArgs())
}

func TestLogoCreateDuplicate(t *testing.T) {
	sql := &stubSQL{rows: []stubRow{{err: pgError("23505", logosPredictionKey)}}}
	_, err := NewLogoRepository(sql).Create(context.Background(), &domain.Logo{PredictionID: "pred-1"})
	assert.ErrorIs(t, err, domain.ErrDuplicateArtifact)
}

const (
	logoID  = "6f1c2a9e-3b7d-4e51-9a0c-2d8f4b6e1a73"
	ownerID = "0b9d7e21-5c4a-4f38-8e6b-7a1d3c5f9e20"
	otherID = "c4e8a1f7-2d6b-4c93-b5a0-9f3e7d1c8b46"
)

func TestLogoDeleteRequiresOwner(t *testing.T) {
	sql := &stubSQL{tags: []pgconn.CommandTag{pgconn.NewCommandTag("DELETE 0"), pgconn.NewCommandTag("DELETE 1")}}
	repo := NewLogoRepository(sql)

	assert.ErrorIs(t, repo.Delete(context.Background(), logoID, otherID), domain.ErrNotFound)
	assert.NoError(t, repo.Delete(context.Background(), logoID, ownerID))
	assert.Equal(t, []any{logoID, ownerID}, sql.lastArgs())
}

func TestMalformedIDsSkipSQL(t *testing.T) {
	ctx := context.Background()
	tests := map[string]func(*stubSQL) error{
		"logo get": func(sql *stubSQL) error {
			_, err := NewLogoRepository(sql).Get(ctx, "abc")
			return err
		},
		"logo delete": func(sql *stubSQL) error {
			return NewLogoRepository(sql).Delete(ctx, "abc", ownerID)
		},
		"logo delete foreign owner id": func(sql *stubSQL) error {
			return NewLogoRepository(sql).Delete(ctx, logoID, "acct")
		},
		"logo storage key": func(sql *stubSQL) error {
			return NewLogoRepository(sql).SetStorageKey(ctx, "abc", "acct/abc.png")
		},
		"account by id": func(sql *stubSQL) error {
			_, err := NewAccountRepository(sql).GetByID(ctx, "12345")
			return err
		},
		"account delete": func(sql *stubSQL) error {
			return NewAccountRepository(sql).Delete(ctx, "not-a-uuid")
		},
	}
	for name, run := range tests {
		t.Run(name, func(t *testing.T) {
			sql := &stubSQL{}
			assert.ErrorIs(t, run(sql), domain.ErrNotFound)
			assert.Empty(t, sql.calls)
		})
	}
}

func TestLogoGetByPrediction(t *testing.T) {
	at := time.Now()
	sql := &stubSQL{rows: []stubRow{{values: []any{logoID, ownerID, "pred-1", "fox", "https://out/1.png", "", at}}}}
	repo := NewLogoRepository(sql)

	logo, err := repo.GetByPrediction(context.Background(), "pred-1")
	require.NoError(t, err)
	assert.Equal(t, logoID, logo.ID)
	assert.Equal(t, []any{"pred-1"}, sql.lastArgs())

	_, err = repo.GetByPrediction(context.Background(), "pred-2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLogoListByAccount(t *testing.T) {
	at := time.Now()
	sql := &stubSQL{results: [][][]any{{
		{"logo-2", "acct", "pred-2", "owl", "https://out/2.png", "", at},
		{"logo-1", "acct", "pred-1", "fox", "https://out/1.png", "acct/logo-1.png", at},
	}}}
	items, err := NewLogoRepository(sql).ListByAccount(context.Background(), "acct", 20, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "acct/logo-1.png", items[1].StorageKey)
}

func TestAccountCreateEmailTaken(t *testing.T) {
	sql := &stubSQL{rows: []stubRow{{err: pgError("23505", accountsEmailKey)}}}
	_, err := NewAccountRepository(sql).Create(context.Background(), &domain.Account{Email: "a@example.com"})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}
