// Package app wires configuration, the database pool, repositories and
// services for the commands.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"kiranalogo/internal/adapter/repo"
	"kiranalogo/internal/auth"
	"kiranalogo/internal/billing"
	"kiranalogo/internal/domain"
	"kiranalogo/internal/generation"
	"kiranalogo/internal/infra"
	"kiranalogo/internal/infra/credentials"
	"kiranalogo/internal/ledger"
	"kiranalogo/internal/logos"
	"kiranalogo/internal/metrics"
	"kiranalogo/internal/providers/replicate"
	"kiranalogo/internal/storage"
)

type Container struct {
	Config *infra.Config
	Logger infra.Logger
	Pool   *pgxpool.Pool
	SQL    *infra.SQLRunner

	Accounts    domain.AccountRepository
	Predictions domain.PredictionRepository
	Credentials *credentials.Store

	Replicate  *replicate.Client
	Metrics    *metrics.Metrics
	Ledger     *ledger.Service
	Logos      *logos.Service
	Generation *generation.Service
	Auth       *auth.Service
	Billing    *billing.Service
}

// Build connects to the database and assembles every service. The caller
// owns the returned container and must Close it.
func Build(ctx context.Context, cfg *infra.Config, logger infra.Logger) (*Container, error) {
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	runner := infra.NewSQLRunner(pool, logger)

	blobs, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: %w", err)
	}

	accounts := repo.NewAccountRepository(runner)
	predictions := repo.NewPredictionRepository(runner)
	creds := credentials.NewStore(runner)
	m := metrics.New()

	client := replicate.NewClient(replicate.Options{
		APIToken:       cfg.ReplicateAPIToken,
		TokenSource:    creds.ReplicateToken,
		BaseURL:        cfg.ReplicateBaseURL,
		ModelVersion:   cfg.ReplicateModelVersion,
		Logger:         &logger,
		RequestTimeout: cfg.ProviderTimeout,
	})

	led := ledger.NewService(repo.NewLedgerRepository(runner), logger)
	logoRepo := repo.NewLogoRepository(runner)
	logoSvc := logos.NewService(logoRepo, predictions, blobs, client, logger)
	gen := generation.NewService(predictions, led, client, logoSvc, logger, generation.Options{
		ModelVersion:           cfg.ReplicateModelVersion,
		BackgroundModelVersion: cfg.BackgroundModelVersion,
		WebhookURL:             cfg.WebhookURL(),
		MaxOpenAge:             cfg.ReconcileMaxAge,
		Logos:                  logoRepo,
		Observer:               m,
	})
	tokens := auth.NewTokenService(cfg.JWTSecret, time.Duration(cfg.JWTExpirationHours)*time.Hour)
	authSvc := auth.NewService(accounts, tokens, auth.Options{
		BcryptCost:    cfg.BcryptCost,
		SignupCredits: cfg.SignupCredits,
	}, logger)
	bill := billing.NewService(billing.NewCatalog(cfg.PurchasePermalinks), led, accounts, predictions, logger)

	return &Container{
		Config:      cfg,
		Logger:      logger,
		Pool:        pool,
		SQL:         runner,
		Accounts:    accounts,
		Predictions: predictions,
		Credentials: creds,
		Replicate:   client,
		Metrics:     m,
		Ledger:      led,
		Logos:       logoSvc,
		Generation:  gen,
		Auth:        authSvc,
		Billing:     bill,
	}, nil
}

func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}
