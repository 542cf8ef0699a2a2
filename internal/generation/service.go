// Package generation runs the prediction lifecycle: debit, submit, track the
// provider's status through polling and webhooks, and hand finished jobs to
// the artifact store.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"kiranalogo/internal/domain"
	"kiranalogo/internal/domain/jsoncfg"
	"kiranalogo/internal/infra"
	"kiranalogo/internal/providers/replicate"
)

// Provider is the inference API surface the service needs.
type Provider interface {
	CreatePrediction(ctx context.Context, req replicate.CreateRequest) (*replicate.Prediction, error)
	GetPrediction(ctx context.Context, id string) (*replicate.Prediction, error)
}

// Ledger takes and returns credits.
type Ledger interface {
	TryDebit(ctx context.Context, accountID string, amount int, reference string) (int, error)
	Refund(ctx context.Context, accountID string, amount int, reference string) (int, error)
}

// Materializer turns a succeeded prediction into a saved logo.
type Materializer interface {
	Materialize(ctx context.Context, p *domain.Prediction) (*domain.Logo, error)
}

// Observer receives lifecycle events, typically for metrics.
type Observer interface {
	Submitted()
	SubmitFailed(reason string)
	StatusApplied(source string, status domain.PredictionStatus)
	ProviderQueried()
}

// LogoLookup finds saved logos used as background removal sources.
type LogoLookup interface {
	Get(ctx context.Context, id string) (*domain.Logo, error)
}

type Options struct {
	ModelVersion           string
	BackgroundModelVersion string
	WebhookURL             string
	// MaxOpenAge fails jobs the provider has not finished this long after
	// creation. Zero disables expiry.
	MaxOpenAge time.Duration
	Logos      LogoLookup
	Observer   Observer
	Now        func() time.Time
}

// storeTimeout bounds the job record insert once the provider has accepted
// the job.
const storeTimeout = 10 * time.Second

type Service struct {
	predictions       domain.PredictionRepository
	ledger            Ledger
	provider          Provider
	artifacts         Materializer
	logos             LogoLookup
	logger            infra.Logger
	version           string
	backgroundVersion string
	webhookURL        string
	maxOpenAge        time.Duration
	observer          Observer
	now               func() time.Time
}

func NewService(predictions domain.PredictionRepository, ledger Ledger, provider Provider, artifacts Materializer, logger infra.Logger, opts Options) *Service {
	obs := opts.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		predictions:       predictions,
		ledger:            ledger,
		provider:          provider,
		artifacts:         artifacts,
		logos:             opts.Logos,
		logger:            logger,
		version:           opts.ModelVersion,
		backgroundVersion: opts.BackgroundModelVersion,
		webhookURL:        opts.WebhookURL,
		maxOpenAge:        opts.MaxOpenAge,
		observer:          obs,
		now:               now,
	}
}

// job is one paid provider submission.
type job struct {
	version string
	input   any
	stored  json.RawMessage
	kind    string
}

// Submit validates input, takes one credit and forwards the job to the
// provider. If no job id comes back, or it cannot be recorded, the credit is
// refunded and domain.ErrProviderUnavailable is returned.
func (s *Service) Submit(ctx context.Context, principal domain.Principal, in domain.PredictionInput) (*domain.Prediction, error) {
	if principal.AccountID == "" {
		return nil, domain.ErrUnauthorized
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	modelInput := jsoncfg.Compose(in)
	return s.submit(ctx, principal, job{
		version: s.version,
		input:   modelInput,
		stored:  jsoncfg.Store(in, modelInput),
		kind:    "generation",
	})
}

// RemoveBackground submits a background removal job for one of the caller's
// logos or an image URL. It is charged and refunded exactly like Submit, and
// the cut-out is saved as a new logo once it succeeds.
func (s *Service) RemoveBackground(ctx context.Context, principal domain.Principal, in domain.BackgroundRemovalInput) (*domain.Prediction, error) {
	if principal.AccountID == "" {
		return nil, domain.ErrUnauthorized
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	image, prompt := in.ImageURL, ""
	if in.LogoID != "" {
		if s.logos == nil {
			return nil, domain.ErrNotFound
		}
		logo, err := s.logos.Get(ctx, in.LogoID)
		if err != nil {
			return nil, err
		}
		if logo.AccountID != principal.AccountID {
			return nil, domain.ErrNotFound
		}
		image, prompt = logo.ImageURL, logo.Prompt
	}
	version := s.backgroundVersion
	if version == "" {
		return nil, fmt.Errorf("%w: background removal is not configured", domain.ErrProviderUnavailable)
	}
	return s.submit(ctx, principal, job{
		version: version,
		input:   jsoncfg.BackgroundModelInput{Image: image},
		stored:  jsoncfg.StoreBackground(image, prompt, in.LogoID),
		kind:    jsoncfg.TaskRemoveBackground,
	})
}

func (s *Service) submit(ctx context.Context, principal domain.Principal, j job) (*domain.Prediction, error) {
	if _, err := s.ledger.TryDebit(ctx, principal.AccountID, domain.GenerationCost, "submission"); err != nil {
		if errors.Is(err, domain.ErrInsufficientCredits) {
			s.observer.SubmitFailed("insufficient_credits")
		}
		return nil, err
	}

	remote, err := s.provider.CreatePrediction(ctx, replicate.CreateRequest{
		Version:       j.version,
		Input:         j.input,
		Webhook:       s.webhookURL,
		WebhookEvents: []string{replicate.EventCompleted},
	})
	if err != nil {
		s.refund(principal.AccountID, "submission failed")
		s.observer.SubmitFailed("provider")
		s.logger.Error().Err(err).Str("account_id", principal.AccountID).Str("kind", j.kind).Msg("prediction submission failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}

	status := remote.Status
	if !status.Valid() {
		status = domain.StatusStarting
	}
	version := remote.Version
	if version == "" {
		version = j.version
	}
	record := &domain.Prediction{
		ID:        remote.ID,
		AccountID: principal.AccountID,
		Status:    domain.StatusStarting,
		Input:     j.stored,
		Version:   version,
	}
	if remote.CreatedAt != nil {
		record.CreatedAt = *remote.CreatedAt
	}
	// The provider already holds the job; a client that hangs up now must not
	// leave it unrecorded.
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	if err := s.predictions.Create(storeCtx, record); err != nil {
		s.refund(principal.AccountID, remote.ID)
		s.observer.SubmitFailed("store")
		s.logger.Error().Err(err).Str("prediction_id", remote.ID).Msg("prediction record insert failed")
		return nil, fmt.Errorf("%w: record prediction: %v", domain.ErrProviderUnavailable, err)
	}
	s.observer.Submitted()
	s.logger.Info().Str("prediction_id", remote.ID).Str("account_id", principal.AccountID).Str("kind", j.kind).Msg("prediction submitted")

	// The provider may already report progress at creation time.
	if status != domain.StatusStarting {
		if updated, _, err := s.apply(storeCtx, remote.ID, remote.Update(), "submit"); err == nil {
			return updated, nil
		}
	}
	return s.predictions.Get(storeCtx, remote.ID)
}

// refund runs detached from the request so a cancelled client does not keep
// the credit debited.
func (s *Service) refund(accountID, reference string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := s.ledger.Refund(ctx, accountID, domain.GenerationCost, reference); err != nil {
		s.logger.Error().Err(err).Str("account_id", accountID).Msg("credit refund failed")
	}
}

// Resolve returns the caller's prediction, refreshing it from the provider
// unless it is already terminal. Jobs owned by someone else are reported as
// domain.ErrForbidden.
func (s *Service) Resolve(ctx context.Context, principal domain.Principal, id string) (*domain.Prediction, error) {
	if principal.AccountID == "" {
		return nil, domain.ErrUnauthorized
	}
	p, err := s.predictions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.AccountID != principal.AccountID {
		return nil, domain.ErrForbidden
	}
	if p.Status.IsTerminal() {
		return p, nil
	}
	return s.refresh(ctx, p, "poll")
}

// refresh queries the provider and stores the answer if the status moved.
func (s *Service) refresh(ctx context.Context, p *domain.Prediction, source string) (*domain.Prediction, error) {
	s.observer.ProviderQueried()
	remote, err := s.provider.GetPrediction(ctx, p.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("prediction_id", p.ID).Msg("provider status query failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	if remote.Status == p.Status || !remote.Status.Valid() {
		return p, nil
	}
	updated, applied, err := s.apply(ctx, p.ID, remote.Update(), source)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrStaleUpdate) {
			s.logger.Warn().Err(err).Str("prediction_id", p.ID).Str("status", string(remote.Status)).Msg("provider update ignored")
			return p, nil
		}
		return nil, err
	}
	if applied && updated.Status == domain.StatusSucceeded {
		s.materialize(ctx, updated)
	}
	return updated, nil
}

func (s *Service) apply(ctx context.Context, id string, u domain.PredictionUpdate, source string) (*domain.Prediction, bool, error) {
	updated, applied, err := s.predictions.ApplyUpdate(ctx, id, u)
	if err != nil {
		return nil, false, err
	}
	if applied {
		s.observer.StatusApplied(source, updated.Status)
		s.logger.Info().Str("prediction_id", id).Str("status", string(updated.Status)).Str("source", source).Msg("prediction status updated")
	}
	return updated, applied, nil
}

// materialize saves the logo for a succeeded prediction. A logo that already
// exists is the expected outcome of a poll racing a webhook or a manual save.
func (s *Service) materialize(ctx context.Context, p *domain.Prediction) {
	if s.artifacts == nil {
		return
	}
	if _, err := s.artifacts.Materialize(ctx, p); err != nil && !errors.Is(err, domain.ErrDuplicateArtifact) {
		s.logger.Error().Err(err).Str("prediction_id", p.ID).Msg("logo materialization failed")
	}
}

// HandleCallback applies a provider webhook. Unknown prediction ids are
// ignored. Failed and canceled jobs keep their debit.
func (s *Service) HandleCallback(ctx context.Context, payload *replicate.Prediction) error {
	if payload == nil || payload.ID == "" {
		return fmt.Errorf("%w: webhook without prediction id", domain.ErrValidation)
	}
	current, err := s.predictions.Get(ctx, payload.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Info().Str("prediction_id", payload.ID).Msg("webhook for unknown prediction ignored")
			return nil
		}
		return err
	}

	switch payload.Status {
	case domain.StatusSucceeded, domain.StatusFailed, domain.StatusCanceled:
	default:
		s.logger.Debug().Str("prediction_id", payload.ID).Str("status", string(payload.Status)).Msg("non-terminal webhook ignored")
		return nil
	}

	update := payload.Update()
	update.WebhookCompleted = true
	updated, applied, err := s.apply(ctx, payload.ID, update, "webhook")
	if err != nil {
		return err
	}
	if !applied {
		// Already terminal, most likely through polling. Record that the
		// callback arrived without touching the stored outcome.
		if !current.WebhookCompleted {
			if err := s.predictions.MarkWebhookCompleted(ctx, payload.ID); err != nil {
				return err
			}
		}
		s.logger.Debug().Str("prediction_id", payload.ID).Str("stored", string(updated.Status)).Msg("webhook after terminal status")
	}
	if updated.Status == domain.StatusSucceeded {
		s.materialize(ctx, updated)
	}
	return nil
}

// SweepResult summarises one reconciliation pass.
type SweepResult struct {
	Checked int
	Moved   int
	Failed  int
	Expired int
}

const (
	sweepUnchanged = iota
	sweepMoved
	sweepFailed
	sweepExpired
)

// Sweep refreshes open predictions that have not changed for staleAfter.
// It recovers jobs whose webhook was lost after the client stopped polling.
// Every claimed job counts as touched, so a job the provider keeps failing on
// waits its turn behind the rest of the backlog.
func (s *Service) Sweep(ctx context.Context, staleAfter time.Duration, batch, parallelism int) (SweepResult, error) {
	open, err := s.predictions.ClaimOpen(ctx, s.now().Add(-staleAfter), batch)
	if err != nil {
		return SweepResult{}, err
	}
	if parallelism < 1 {
		parallelism = 1
	}
	results := make([]int, len(open))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i := range open {
		i := i
		p := open[i]
		g.Go(func() error {
			results[i] = s.sweepOne(gctx, &p)
			return nil
		})
	}
	_ = g.Wait()

	res := SweepResult{Checked: len(open)}
	for _, r := range results {
		switch r {
		case sweepMoved:
			res.Moved++
		case sweepFailed:
			res.Failed++
		case sweepExpired:
			res.Expired++
		}
	}
	return res, ctx.Err()
}

func (s *Service) sweepOne(ctx context.Context, p *domain.Prediction) int {
	updated, err := s.refresh(ctx, p, "sweep")
	if err == nil && updated.Status.IsTerminal() {
		return sweepMoved
	}
	if s.maxOpenAge > 0 && s.now().Sub(p.CreatedAt) > s.maxOpenAge && s.expire(ctx, p) {
		return sweepExpired
	}
	switch {
	case err != nil:
		return sweepFailed
	case updated.Status != p.Status:
		return sweepMoved
	}
	return sweepUnchanged
}

// expire fails a job that outlived MaxOpenAge. Like any failed job it keeps
// its debit.
func (s *Service) expire(ctx context.Context, p *domain.Prediction) bool {
	_, applied, err := s.apply(ctx, p.ID, domain.PredictionUpdate{
		Status: domain.StatusFailed,
		Error:  fmt.Sprintf("no result from provider within %s", s.maxOpenAge),
	}, "expiry")
	if err != nil {
		s.logger.Warn().Err(err).Str("prediction_id", p.ID).Msg("prediction expiry failed")
		return false
	}
	return applied
}

type nopObserver struct{}

func (nopObserver) Submitted()                                    {}
func (nopObserver) SubmitFailed(string)                           {}
func (nopObserver) StatusApplied(string, domain.PredictionStatus) {}
func (nopObserver) ProviderQueried()                              {}
