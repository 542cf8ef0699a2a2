package repo

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiranalogo/internal/domain"
	"kiranalogo/internal/sqlinline"
)

func predictionRow(id, status string, output []string) stubRow {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	var completed any
	if domain.PredictionStatus(status).IsTerminal() {
		completed = now
	}
	return stubRow{values: []any{
		id, "acct", status, []byte(`{"prompt":"fox logo"}`), "v1",
		output, nil, nil, false, now, completed, now,
	}}
}

func TestPredictionApplyUpdateSendsPredecessors(t *testing.T) {
	sql := &stubSQL{rows: []stubRow{predictionRow("pred-1", "succeeded", []string{"https://out/0.png"})}}
	repo := NewPredictionRepository(sql)

	got, applied, err := repo.ApplyUpdate(context.Background(), "pred-1", domain.PredictionUpdate{
		Status: domain.StatusSucceeded,
		Output: []string{"https://out/0.png"},
	})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, domain.StatusSucceeded, got.Status)
	assert.Equal(t, "https://out/0.png", got.PrimaryOutput())
	require.NotNil(t, got.CompletedAt)

	args := sql.calls[0].args
	assert.Equal(t, sqlinline.QApplyPredictionUpdate, sql.calls[0].query)
	assert.Equal(t, "succeeded", args[1])
	assert.Equal(t, []string{"starting", "processing"}, args[7])
	assert.NotNil(t, args[5], "terminal update carries completed_at")
}

func TestPredictionApplyUpdateGuardRejected(t *testing.T) {
	// The compare-and-set matches nothing, then the current record is read.
	sql := &stubSQL{rows: []stubRow{{err: errNoRows()}, predictionRow("pred-1", "failed", nil)}}

	got, applied, err := NewPredictionRepository(sql).ApplyUpdate(context.Background(), "pred-1", domain.PredictionUpdate{Status: domain.StatusProcessing})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, sqlinline.QSelectPrediction, sql.calls[1].query)
}

func TestPredictionApplyUpdateRejectsInvalidBeforeSQL(t *testing.T) {
	sql := &stubSQL{}
	_, _, err := NewPredictionRepository(sql).ApplyUpdate(context.Background(), "pred-1", domain.PredictionUpdate{Status: domain.StatusSucceeded})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, sql.calls)
}

func TestPredictionApplyUpdateUnknownID(t *testing.T) {
	sql := &stubSQL{}
	_, _, err := NewPredictionRepository(sql).ApplyUpdate(context.Background(), "nope", domain.PredictionUpdate{Status: domain.StatusProcessing})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPredictionCreateAndGet(t *testing.T) {
	sql := &stubSQL{rows: []stubRow{predictionRow("pred-9", "starting", nil)}}
	repo := NewPredictionRepository(sql)

	err := repo.Create(context.Background(), &domain.Prediction{
		ID:        "pred-9",
		AccountID: "acct",
		Status:    domain.StatusStarting,
		Input:     json.RawMessage(`{"prompt":"fox logo"}`),
		Version:   "v1",
	})
	require.NoError(t, err)
	assert.Equal(t, sqlinline.QInsertPrediction, sql.calls[0].query)
	assert.Equal(t, "starting", sql.calls[0].args[2])

	got, err := repo.Get(context.Background(), "pred-9")
	require.NoError(t, err)
	assert.Equal(t, "fox logo", got.Prompt())
	assert.Nil(t, got.CompletedAt)
	assert.Empty(t, got.Error)
}

func TestPredictionClaimOpen(t *testing.T) {
	cutoff := time.Date(2026, 2, 1, 11, 58, 0, 0, time.UTC)
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	sql := &stubSQL{results: [][][]any{{
		{"pred-1", "acct", "starting", []byte(`{}`), "v1", nil, nil, nil, false, now, nil, now},
		{"pred-2", "acct", "processing", []byte(`{}`), "v1", nil, nil, nil, false, now, nil, now},
	}}}

	items, err := NewPredictionRepository(sql).ClaimOpen(context.Background(), cutoff, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, domain.StatusProcessing, items[1].Status)
	assert.Equal(t, sqlinline.QClaimOpenPredictions, sql.calls[0].query)
	assert.Equal(t, []any{cutoff, 2}, sql.calls[0].args)
	assert.Contains(t, sqlinline.QClaimOpenPredictions, "set updated_at = now()")
	assert.Contains(t, sqlinline.QClaimOpenPredictions, "for update skip locked")
}
