package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"kiranalogo/internal/domain"
	"kiranalogo/internal/infra"
	"kiranalogo/internal/sqlinline"
)

const logosPredictionKey = "logos_prediction_id_key"

// LogoRepositoryPG implements domain.LogoRepository.
type LogoRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewLogoRepository(sql infra.SQLExecutor) *LogoRepositoryPG {
	return &LogoRepositoryPG{sql: sql}
}

// Create relies on the unique constraint on prediction_id; a second logo for
// the same prediction surfaces as domain.ErrDuplicateArtifact.
func (r *LogoRepositoryPG) Create(ctx context.Context, logo *domain.Logo) (*domain.Logo, error) {
	out := *logo
	row := r.sql.QueryRow(ctx, sqlinline.QInsertLogo, logo.AccountID, logo.PredictionID, logo.Prompt, logo.ImageURL)
	if err := row.Scan(&out.ID, &out.CreatedAt); err != nil {
		switch {
		case infra.IsUniqueViolation(err, logosPredictionKey):
			return nil, domain.ErrDuplicateArtifact
		case infra.IsForeignKeyViolation(err):
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("insert logo: %w", err)
	}
	return &out, nil
}

func (r *LogoRepositoryPG) Get(ctx context.Context, id string) (*domain.Logo, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	return scanLogo(r.sql.QueryRow(ctx, sqlinline.QSelectLogo, id))
}

func (r *LogoRepositoryPG) GetByPrediction(ctx context.Context, predictionID string) (*domain.Logo, error) {
	return scanLogo(r.sql.QueryRow(ctx, sqlinline.QSelectLogoByPrediction, predictionID))
}

func (r *LogoRepositoryPG) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]domain.Logo, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListLogosByAccount, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Logo
	for rows.Next() {
		l, err := scanLogo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (r *LogoRepositoryPG) SetStorageKey(ctx context.Context, id, key string) error {
	if !validID(id) {
		return domain.ErrNotFound
	}
	_, err := r.sql.Exec(ctx, sqlinline.QSetLogoStorageKey, id, key)
	return err
}

func (r *LogoRepositoryPG) Delete(ctx context.Context, id, accountID string) error {
	if !validID(id) || !validID(accountID) {
		return domain.ErrNotFound
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteLogo, id, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanLogo(row pgx.Row) (*domain.Logo, error) {
	var l domain.Logo
	if err := row.Scan(&l.ID, &l.AccountID, &l.PredictionID, &l.Prompt, &l.ImageURL, &l.StorageKey, &l.CreatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

var _ domain.LogoRepository = (*LogoRepositoryPG)(nil)
