package memory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"kiranalogo/internal/domain"
)

func seedAccount(t *testing.T, s *Store, credits int) *domain.Account {
	t.Helper()
	a, err := s.Accounts().Create(context.Background(), &domain.Account{Email: "owner@example.com", Credits: credits})
	require.NoError(t, err)
	return a
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	s := NewStore()
	acct := seedAccount(t, s, 5)

	var ok, short atomic.Int32
	var g errgroup.Group
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			_, err := s.Ledger().Debit(context.Background(), acct.ID, 1, "race")
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrInsufficientCredits):
				short.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.EqualValues(t, 5, ok.Load())
	assert.EqualValues(t, 15, short.Load())
	balance, err := s.Ledger().Balance(context.Background(), acct.ID)
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestApplyUpdateIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	acct := seedAccount(t, s, 1)
	require.NoError(t, s.Predictions().Create(ctx, &domain.Prediction{ID: "p1", AccountID: acct.ID, Status: domain.StatusStarting}))

	_, applied, err := s.Predictions().ApplyUpdate(ctx, "p1", domain.PredictionUpdate{Status: domain.StatusProcessing})
	require.NoError(t, err)
	assert.True(t, applied)

	got, applied, err := s.Predictions().ApplyUpdate(ctx, "p1", domain.PredictionUpdate{Status: domain.StatusSucceeded, Output: []string{"u"}})
	require.NoError(t, err)
	assert.True(t, applied)
	require.NotNil(t, got.CompletedAt)

	got, applied, err = s.Predictions().ApplyUpdate(ctx, "p1", domain.PredictionUpdate{Status: domain.StatusProcessing})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, domain.StatusSucceeded, got.Status)
	assert.Equal(t, []string{"u"}, got.Output)
}

func TestLogoUniquePerPrediction(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	acct := seedAccount(t, s, 1)
	require.NoError(t, s.Predictions().Create(ctx, &domain.Prediction{ID: "p1", AccountID: acct.ID, Status: domain.StatusStarting}))

	_, err := s.Logos().Create(ctx, &domain.Logo{AccountID: acct.ID, PredictionID: "p1"})
	require.NoError(t, err)
	_, err = s.Logos().Create(ctx, &domain.Logo{AccountID: acct.ID, PredictionID: "p1"})
	assert.ErrorIs(t, err, domain.ErrDuplicateArtifact)
}

func TestRecordPurchaseOncePerSale(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	acct := seedAccount(t, s, 2)
	p := &domain.Purchase{AccountID: acct.ID, Provider: "gumroad", ExternalID: "sale-1", Credits: 50}

	balance, applied, err := s.Ledger().RecordPurchase(ctx, p)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 52, balance)

	balance, applied, err = s.Ledger().RecordPurchase(ctx, p)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 52, balance)

	entries, err := s.Ledger().ListEntries(ctx, acct.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.EntryPurchase, entries[0].Kind)
	assert.Equal(t, domain.EntrySignup, entries[1].Kind)
}

func TestDeleteAccountCascades(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	acct := seedAccount(t, s, 1)
	require.NoError(t, s.Predictions().Create(ctx, &domain.Prediction{ID: "p1", AccountID: acct.ID, Status: domain.StatusStarting}))

	require.NoError(t, s.Accounts().Delete(ctx, acct.ID))
	_, err := s.Predictions().Get(ctx, "p1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, s.Accounts().Delete(ctx, acct.ID), domain.ErrNotFound)
}

func TestClaimOpenRotatesThroughStaleJobs(t *testing.T) {
	s := NewStore()
	acct := seedAccount(t, s, 0)
	ctx := context.Background()
	preds := s.Predictions()
	for _, id := range []string{"old", "older", "done"} {
		require.NoError(t, preds.Create(ctx, &domain.Prediction{ID: id, AccountID: acct.ID, Status: domain.StatusStarting}))
	}
	preds.Backdate("old", 10*time.Minute)
	preds.Backdate("older", 20*time.Minute)
	preds.Backdate("done", 30*time.Minute)
	_, _, err := preds.ApplyUpdate(ctx, "done", domain.PredictionUpdate{Status: domain.StatusFailed})
	require.NoError(t, err)

	cutoff := time.Now().Add(-5 * time.Minute)
	var order []string
	for i := 0; i < 3; i++ {
		claimed, err := preds.ClaimOpen(ctx, cutoff, 1)
		require.NoError(t, err)
		for _, p := range claimed {
			assert.False(t, p.UpdatedAt.Before(cutoff))
			order = append(order, p.ID)
		}
	}
	assert.Equal(t, []string{"older", "old"}, order)
}
