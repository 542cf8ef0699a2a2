package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"kiranalogo/internal/app"
	"kiranalogo/internal/http/handlers"
	httpapi "kiranalogo/internal/http/httpapi"
	"kiranalogo/internal/infra"
	"kiranalogo/internal/infra/geoip"
	"kiranalogo/internal/providers/replicate"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise services")
	}
	defer c.Close()

	verifier, err := replicate.NewWebhookVerifier(cfg.ReplicateWebhookSecret)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid replicate webhook secret")
	}
	if verifier == nil {
		logger.Warn().Msg("REPLICATE_WEBHOOK_SECRET not set, webhook signatures are not checked")
	}

	countries, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.GeoIPDBPath).Msg("geoip database unavailable")
	}
	defer countries.Close()

	handlerApp := &handlers.App{
		Auth:           c.Auth,
		Generation:     c.Generation,
		Logos:          c.Logos,
		Ledger:         c.Ledger,
		Billing:        c.Billing,
		Webhooks:       verifier,
		PurchaseSecret: cfg.PurchaseWebhookSecret,
		DB:             c.Pool,
		Logger:         logger,
	}
	router := httpapi.NewRouter(handlerApp, httpapi.Options{
		Logger:         logger,
		Tokens:         c.Auth.Tokens(),
		Metrics:        c.Metrics,
		CountryLookup:  countries.Lookup(),
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimit:      cfg.RateLimitPerMin,
		RequestTimeout: cfg.HTTPWriteTimeout,
	})

	server := infra.NewHTTPServer(cfg, router)
	go func() {
		logger.Info().Str("port", cfg.Port).Str("webhook_url", cfg.WebhookURL()).Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
