package handlers

import (
	"net/http"
	"time"

	"kiranalogo/internal/auth"
	"kiranalogo/internal/domain"
)

type accountDTO struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Credits   int       `json:"credits"`
	CreatedAt time.Time `json:"created_at"`
}

type sessionResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	Account   accountDTO `json:"account"`
}

func toAccountDTO(a *domain.Account) accountDTO {
	return accountDTO{ID: a.ID, Email: a.Email, Name: a.Name, Credits: a.Credits, CreatedAt: a.CreatedAt}
}

func (a *App) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterInput
	if !a.decode(w, r, &req) {
		return
	}
	session, err := a.Auth.Register(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, sessionResponse{Token: session.Token, ExpiresAt: session.ExpiresAt, Account: toAccountDTO(session.Account)})
}

func (a *App) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginInput
	if !a.decode(w, r, &req) {
		return
	}
	session, err := a.Auth.Login(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, sessionResponse{Token: session.Token, ExpiresAt: session.ExpiresAt, Account: toAccountDTO(session.Account)})
}

func (a *App) Profile(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.principal(w, r)
	if !ok {
		return
	}
	account, err := a.Auth.Profile(r.Context(), principal)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toAccountDTO(account))
}

func (a *App) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.principal(w, r)
	if !ok {
		return
	}
	if err := a.Auth.Delete(r.Context(), principal); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) Credits(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.principal(w, r)
	if !ok {
		return
	}
	balance, err := a.Ledger.Balance(r.Context(), principal.AccountID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]int{"credits": balance})
}
