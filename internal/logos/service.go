// Package logos is the artifact store: saved generation results owned by an
// account, at most one per prediction.
package logos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"kiranalogo/internal/domain"
	"kiranalogo/internal/infra"
	"kiranalogo/internal/storage"
	"kiranalogo/pkg/zip"
)

// Downloader fetches provider output files.
type Downloader interface {
	Download(ctx context.Context, fileURL string) ([]byte, string, error)
}

// Blobs is where mirrored files are kept.
type Blobs interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
	Read(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	archiveLimit    = 200
)

type Service struct {
	logos       domain.LogoRepository
	predictions domain.PredictionRepository
	blobs       Blobs
	downloader  Downloader
	logger      infra.Logger
}

// NewService builds the artifact store. blobs and downloader may be nil, in
// which case logos keep only the provider URL.
func NewService(logos domain.LogoRepository, predictions domain.PredictionRepository, blobs Blobs, downloader Downloader, logger infra.Logger) *Service {
	return &Service{logos: logos, predictions: predictions, blobs: blobs, downloader: downloader, logger: logger}
}

// Save creates a logo from one of the caller's succeeded predictions.
func (s *Service) Save(ctx context.Context, principal domain.Principal, predictionID string) (*domain.Logo, error) {
	if principal.AccountID == "" {
		return nil, domain.ErrUnauthorized
	}
	if strings.TrimSpace(predictionID) == "" {
		return nil, fmt.Errorf("%w: prediction_id is required", domain.ErrValidation)
	}
	p, err := s.predictions.Get(ctx, predictionID)
	if err != nil {
		return nil, err
	}
	if p.AccountID != principal.AccountID {
		return nil, domain.ErrForbidden
	}
	if p.Status != domain.StatusSucceeded || p.PrimaryOutput() == "" {
		return nil, fmt.Errorf("%w: prediction is %s", domain.ErrValidation, p.Status)
	}
	return s.create(ctx, p)
}

// ForPrediction returns the logo saved from one of the caller's predictions,
// whether it was saved explicitly or when the job finished.
func (s *Service) ForPrediction(ctx context.Context, principal domain.Principal, predictionID string) (*domain.Logo, error) {
	if principal.AccountID == "" {
		return nil, domain.ErrUnauthorized
	}
	logo, err := s.logos.GetByPrediction(ctx, strings.TrimSpace(predictionID))
	if err != nil {
		return nil, err
	}
	if logo.AccountID != principal.AccountID {
		return nil, domain.ErrNotFound
	}
	return logo, nil
}

// Materialize creates the logo for a succeeded prediction on behalf of its
// owner. It returns domain.ErrDuplicateArtifact if one already exists.
func (s *Service) Materialize(ctx context.Context, p *domain.Prediction) (*domain.Logo, error) {
	if p.Status != domain.StatusSucceeded || p.PrimaryOutput() == "" {
		return nil, fmt.Errorf("%w: prediction %s has no output", domain.ErrValidation, p.ID)
	}
	return s.create(ctx, p)
}

func (s *Service) create(ctx context.Context, p *domain.Prediction) (*domain.Logo, error) {
	prompt := strings.TrimSpace(p.Prompt())
	if prompt == "" {
		prompt = domain.UntitledPrompt
	}
	logo, err := s.logos.Create(ctx, &domain.Logo{
		AccountID:    p.AccountID,
		PredictionID: p.ID,
		Prompt:       prompt,
		ImageURL:     p.PrimaryOutput(),
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("logo_id", logo.ID).Str("prediction_id", p.ID).Msg("logo saved")
	s.mirror(ctx, logo)
	return logo, nil
}

// mirror copies the provider file into local storage. Failures leave the logo
// pointing at the provider URL.
func (s *Service) mirror(ctx context.Context, logo *domain.Logo) {
	if s.blobs == nil || s.downloader == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	data, contentType, err := s.downloader.Download(ctx, logo.ImageURL)
	if err != nil {
		s.logger.Warn().Err(err).Str("logo_id", logo.ID).Msg("logo mirror download failed")
		return
	}
	key, err := s.blobs.Write(ctx, logo.AccountID+"/"+logo.ID+storage.ExtensionFor(contentType), data)
	if err != nil {
		s.logger.Warn().Err(err).Str("logo_id", logo.ID).Msg("logo mirror write failed")
		return
	}
	if err := s.logos.SetStorageKey(ctx, logo.ID, key); err != nil {
		s.logger.Warn().Err(err).Str("logo_id", logo.ID).Msg("logo storage key update failed")
		return
	}
	logo.StorageKey = key
}

// List returns a page of the caller's logos, newest first.
func (s *Service) List(ctx context.Context, principal domain.Principal, limit, offset int) ([]domain.Logo, error) {
	if principal.AccountID == "" {
		return nil, domain.ErrUnauthorized
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.logos.ListByAccount(ctx, principal.AccountID, limit, offset)
}

// Delete removes one of the caller's logos and its mirrored file.
func (s *Service) Delete(ctx context.Context, principal domain.Principal, id string) error {
	if principal.AccountID == "" {
		return domain.ErrUnauthorized
	}
	logo, err := s.logos.Get(ctx, id)
	if err != nil {
		return err
	}
	if logo.AccountID != principal.AccountID {
		return domain.ErrNotFound
	}
	if err := s.logos.Delete(ctx, id, principal.AccountID); err != nil {
		return err
	}
	if logo.StorageKey != "" && s.blobs != nil {
		if err := s.blobs.Delete(ctx, logo.StorageKey); err != nil {
			s.logger.Warn().Err(err).Str("logo_id", id).Msg("mirrored file delete failed")
		}
	}
	return nil
}

// Archive writes a zip of the caller's mirrored logos to w. Logos without a
// mirrored file are skipped; the count of archived files is returned.
func (s *Service) Archive(ctx context.Context, principal domain.Principal, w io.Writer) (int, error) {
	items, err := s.List(ctx, principal, MaxPageSize, 0)
	if err != nil {
		return 0, err
	}
	if len(items) == MaxPageSize {
		more, err := s.logos.ListByAccount(ctx, principal.AccountID, archiveLimit-MaxPageSize, MaxPageSize)
		if err != nil {
			return 0, err
		}
		items = append(items, more...)
	}
	var assets []zip.Asset
	for _, logo := range items {
		if logo.StorageKey == "" || s.blobs == nil {
			continue
		}
		data, err := s.blobs.Read(ctx, logo.StorageKey)
		if err != nil {
			if !errors.Is(err, storage.ErrNotExist) {
				s.logger.Warn().Err(err).Str("logo_id", logo.ID).Msg("archive read failed")
			}
			continue
		}
		assets = append(assets, zip.Asset{Filename: archiveName(logo), Data: data})
	}
	if err := zip.WriteArchive(w, assets); err != nil {
		return 0, err
	}
	return len(assets), nil
}

func archiveName(logo domain.Logo) string {
	ext := ".png"
	if i := strings.LastIndex(logo.StorageKey, "."); i >= 0 {
		ext = logo.StorageKey[i:]
	}
	var b strings.Builder
	for _, r := range strings.ToLower(logo.Prompt) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('-')
		}
		if b.Len() >= 40 {
			break
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "logo"
	}
	return slug + ext
}
