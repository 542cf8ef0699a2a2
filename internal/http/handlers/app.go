// Package handlers adapts the services to JSON over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"kiranalogo/internal/auth"
	"kiranalogo/internal/billing"
	"kiranalogo/internal/domain"
	"kiranalogo/internal/generation"
	"kiranalogo/internal/infra"
	"kiranalogo/internal/ledger"
	"kiranalogo/internal/logos"
	"kiranalogo/internal/middleware"
	"kiranalogo/internal/providers/replicate"
)

// Pinger reports database reachability for the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

type App struct {
	Auth       *auth.Service
	Generation *generation.Service
	Logos      *logos.Service
	Ledger     *ledger.Service
	Billing    *billing.Service

	Webhooks       *replicate.WebhookVerifier
	PurchaseSecret string
	DB             Pinger
	Logger         infra.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	middleware.WriteError(w, r, status, code, message)
}

// decode reads a JSON body of at most 1 MiB, rejecting unknown fields.
func (a *App) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", "invalid payload")
		return false
	}
	return true
}

// principal returns the authenticated caller, writing 401 when absent.
func (a *App) principal(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	p, ok := domain.PrincipalFrom(r.Context())
	if !ok {
		a.error(w, r, http.StatusUnauthorized, "unauthorized", "missing user context")
	}
	return p, ok
}

// fail maps service errors onto status codes. Ownership failures surface as
// 404 so the existence of other accounts' records is not revealed.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, r, http.StatusUnauthorized, "unauthorized", "authentication required")
	case errors.Is(err, domain.ErrInvalidCredentials):
		a.error(w, r, http.StatusUnauthorized, "invalid_credentials", "email or password is incorrect")
	case errors.Is(err, domain.ErrInsufficientCredits):
		a.error(w, r, http.StatusPaymentRequired, "insufficient_credits", "not enough credits")
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrForbidden):
		a.error(w, r, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, domain.ErrDuplicateArtifact):
		a.error(w, r, http.StatusConflict, "duplicate_artifact", "logo already saved")
	case errors.Is(err, domain.ErrEmailTaken):
		a.error(w, r, http.StatusConflict, "email_taken", "email already registered")
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidAmount):
		a.error(w, r, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrProviderUnavailable):
		a.log(r).Error().Err(err).Msg("provider unavailable")
		a.error(w, r, http.StatusBadGateway, "provider_unavailable", "generation service unavailable, credit refunded")
	case errors.Is(err, context.Canceled):
		a.error(w, r, 499, "canceled", "request canceled")
	default:
		a.log(r).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		a.error(w, r, http.StatusInternalServerError, "internal", "internal error")
	}
}

// log prefers the request scoped logger carrying the request id.
func (a *App) log(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &a.Logger
}
