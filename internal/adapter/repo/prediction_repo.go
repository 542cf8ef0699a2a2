package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"kiranalogo/internal/domain"
	"kiranalogo/internal/infra"
	"kiranalogo/internal/sqlinline"
)

// PredictionRepositoryPG implements domain.PredictionRepository.
type PredictionRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewPredictionRepository(sql infra.SQLExecutor) *PredictionRepositoryPG {
	return &PredictionRepositoryPG{sql: sql}
}

func (r *PredictionRepositoryPG) Create(ctx context.Context, p *domain.Prediction) error {
	var createdAt *time.Time
	if !p.CreatedAt.IsZero() {
		createdAt = &p.CreatedAt
	}
	_, err := r.sql.Exec(ctx, sqlinline.QInsertPrediction, p.ID, p.AccountID, string(p.Status), []byte(p.Input), p.Version, createdAt)
	if err != nil {
		return fmt.Errorf("insert prediction %s: %w", p.ID, err)
	}
	return nil
}

func (r *PredictionRepositoryPG) Get(ctx context.Context, id string) (*domain.Prediction, error) {
	return scanPrediction(r.sql.QueryRow(ctx, sqlinline.QSelectPrediction, id))
}

// ApplyUpdate writes u only if the stored status is a legal predecessor of
// u.Status. When the guard rejects the write the current record is returned
// with applied = false.
func (r *PredictionRepositoryPG) ApplyUpdate(ctx context.Context, id string, u domain.PredictionUpdate) (*domain.Prediction, bool, error) {
	if err := u.Validate(); err != nil {
		return nil, false, err
	}
	u = u.Normalized(time.Now())

	from := make([]string, 0, 2)
	for _, s := range u.Status.Predecessors() {
		from = append(from, string(s))
	}
	var metrics []byte
	if len(u.Metrics) > 0 {
		metrics = u.Metrics
	}
	row := r.sql.QueryRow(ctx, sqlinline.QApplyPredictionUpdate,
		id,
		string(u.Status),
		u.Output,
		u.Error,
		metrics,
		u.CompletedAt,
		u.WebhookCompleted,
		from,
	)
	updated, err := scanPrediction(row)
	if err == nil {
		return updated, true, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, fmt.Errorf("apply prediction update %s: %w", id, err)
	}
	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func (r *PredictionRepositoryPG) MarkWebhookCompleted(ctx context.Context, id string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QMarkWebhookCompleted, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PredictionRepositoryPG) ClaimOpen(ctx context.Context, updatedBefore time.Time, limit int) ([]domain.Prediction, error) {
	return r.list(ctx, sqlinline.QClaimOpenPredictions, updatedBefore, limit)
}

func (r *PredictionRepositoryPG) ListSucceededByAccount(ctx context.Context, accountID string, limit int) ([]domain.Prediction, error) {
	return r.list(ctx, sqlinline.QListSucceededPredictions, accountID, limit)
}

func (r *PredictionRepositoryPG) list(ctx context.Context, query string, args ...any) ([]domain.Prediction, error) {
	rows, err := r.sql.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanPrediction(row pgx.Row) (*domain.Prediction, error) {
	var (
		p       domain.Prediction
		status  string
		input   []byte
		errText *string
		metrics []byte
	)
	err := row.Scan(
		&p.ID,
		&p.AccountID,
		&status,
		&input,
		&p.Version,
		&p.Output,
		&errText,
		&metrics,
		&p.WebhookCompleted,
		&p.CreatedAt,
		&p.CompletedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	p.Status = domain.PredictionStatus(status)
	p.Input = json.RawMessage(input)
	if len(metrics) > 0 {
		p.Metrics = json.RawMessage(metrics)
	}
	if errText != nil {
		p.Error = *errText
	}
	return &p, nil
}

var _ domain.PredictionRepository = (*PredictionRepositoryPG)(nil)
