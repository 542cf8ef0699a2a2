package handlers

import (
	"net/http"
	"time"

	"kiranalogo/internal/billing"
	"kiranalogo/internal/middleware"
)

type checkoutRequest struct {
	Credits int `json:"credits"`
}

func (a *App) Packages(w http.ResponseWriter, r *http.Request) {
	country := middleware.CountryFromContext(r.Context())
	a.json(w, http.StatusOK, map[string]any{
		"country":  country,
		"packages": a.Billing.Catalog().Packages(country),
	})
}

func (a *App) Checkout(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req checkoutRequest
	if !a.decode(w, r, &req) {
		return
	}
	link, err := a.Billing.Catalog().CheckoutURL(req.Credits, principal.AccountID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"url": link})
}

func (a *App) PurchaseHistory(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.principal(w, r)
	if !ok {
		return
	}
	tag := billing.LanguageFor(middleware.LocaleFromContext(r.Context()), principal.Country)
	rows, err := a.Billing.Purchases(r.Context(), principal, tag)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": rows})
}

type creditEntryDTO struct {
	Kind         string    `json:"kind"`
	Amount       int       `json:"amount"`
	BalanceAfter int       `json:"balance_after"`
	Reference    string    `json:"reference,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreditHistory lists the caller's ledger entries, newest first.
func (a *App) CreditHistory(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.principal(w, r)
	if !ok {
		return
	}
	entries, err := a.Ledger.Entries(r.Context(), principal.AccountID, billing.HistoryLimit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out := make([]creditEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, creditEntryDTO{
			Kind:         string(e.Kind),
			Amount:       e.Amount,
			BalanceAfter: e.BalanceAfter,
			Reference:    e.Reference,
			CreatedAt:    e.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": out})
}

func (a *App) Usage(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.principal(w, r)
	if !ok {
		return
	}
	rows, err := a.Billing.Usage(r.Context(), principal)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": rows})
}
