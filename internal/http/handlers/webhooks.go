package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"kiranalogo/internal/billing"
	"kiranalogo/internal/domain"
	"kiranalogo/internal/providers/replicate"
)

const maxWebhookBody = 1 << 20

// ReplicateWebhook applies a completed prediction pushed by the provider. It
// always answers 200: problems are logged, never reported back.
func (a *App) ReplicateWebhook(w http.ResponseWriter, r *http.Request) {
	ack := func() { a.json(w, http.StatusOK, map[string]bool{"received": true}) }
	log := a.log(r)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		log.Warn().Err(err).Msg("webhook body read failed")
		ack()
		return
	}
	if err := a.Webhooks.Verify(
		r.Header.Get(replicate.HeaderWebhookID),
		r.Header.Get(replicate.HeaderWebhookTimestamp),
		r.Header.Get(replicate.HeaderWebhookSignature),
		body,
	); err != nil {
		log.Warn().Err(err).Msg("webhook signature rejected")
		ack()
		return
	}
	var payload replicate.Prediction
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warn().Err(err).Msg("webhook payload malformed")
		ack()
		return
	}
	if err := a.Generation.HandleCallback(r.Context(), &payload); err != nil {
		log.Error().Err(err).Str("prediction_id", payload.ID).Msg("webhook processing failed")
	}
	ack()
}

// PurchaseWebhook confirms a sale posted by the checkout provider as a form.
// The shared secret travels in the "secret" query parameter of the ping URL.
func (a *App) PurchaseWebhook(w http.ResponseWriter, r *http.Request) {
	if a.PurchaseSecret == "" || subtle.ConstantTimeCompare([]byte(r.URL.Query().Get("secret")), []byte(a.PurchaseSecret)) != 1 {
		a.error(w, r, http.StatusUnauthorized, "unauthorized", "invalid secret")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
	if err := r.ParseForm(); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", "invalid form")
		return
	}
	sale := saleFromForm(r)
	res, err := a.Billing.ConfirmSale(r.Context(), sale)
	switch {
	case err == nil:
		a.json(w, http.StatusOK, res)
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrNotFound):
		// 200 stops provider retries for sales that can never apply.
		a.log(r).Warn().Err(err).Str("sale_id", sale.SaleID).Msg("purchase ignored")
		a.json(w, http.StatusOK, map[string]any{"applied": false, "reason": err.Error()})
	default:
		a.fail(w, r, err)
	}
}

func saleFromForm(r *http.Request) billing.Sale {
	f := r.PostForm
	variant := f.Get("variants[Tier]")
	if variant == "" {
		for key, values := range f {
			if strings.HasPrefix(key, "variants[") && len(values) > 0 {
				variant = values[0]
				break
			}
		}
	}
	if variant == "" {
		variant = f.Get("variant")
	}
	price, _ := strconv.ParseInt(f.Get("price"), 10, 64)
	return billing.Sale{
		SaleID:    f.Get("sale_id"),
		Email:     f.Get("email"),
		AccountID: f.Get("url_params[account_id]"),
		Variant:   variant,
		Price:     price,
		Currency:  f.Get("currency"),
		Refunded:  f.Get("refunded") == "true",
		Test:      f.Get("test") == "true",
	}
}
