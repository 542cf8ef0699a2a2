// Package memory holds process-local repositories with the same guarantees
// as the PostgreSQL ones: conditional debits, compare-and-set status updates
// and unique logos per prediction.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"kiranalogo/internal/domain"
)

// Store is a single lock over every table so multi-row mutations stay atomic.
type Store struct {
	mu          sync.Mutex
	now         func() time.Time
	accounts    map[string]*domain.Account
	predictions map[string]*domain.Prediction
	logos       map[string]*domain.Logo
	entries     []domain.CreditEntry
	purchases   []domain.Purchase
}

func NewStore() *Store {
	return &Store{
		now:         time.Now,
		accounts:    map[string]*domain.Account{},
		predictions: map[string]*domain.Prediction{},
		logos:       map[string]*domain.Logo{},
	}
}

func (s *Store) Accounts() *Accounts       { return &Accounts{s} }
func (s *Store) Ledger() *Ledger           { return &Ledger{s} }
func (s *Store) Predictions() *Predictions { return &Predictions{s} }
func (s *Store) Logos() *Logos             { return &Logos{s} }

func (s *Store) appendEntry(accountID string, kind domain.EntryKind, amount, balance int, ref string) {
	s.entries = append(s.entries, domain.CreditEntry{
		ID:           uuid.NewString(),
		AccountID:    accountID,
		Kind:         kind,
		Amount:       amount,
		BalanceAfter: balance,
		Reference:    ref,
		CreatedAt:    s.now(),
	})
}

type Accounts struct{ s *Store }

func (r *Accounts) Create(_ context.Context, a *domain.Account) (*domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	email := strings.ToLower(a.Email)
	for _, existing := range r.s.accounts {
		if existing.Email == email {
			return nil, domain.ErrEmailTaken
		}
	}
	created := *a
	created.ID = uuid.NewString()
	created.Email = email
	created.CreatedAt = r.s.now()
	created.UpdatedAt = created.CreatedAt
	r.s.accounts[created.ID] = &created
	r.s.appendEntry(created.ID, domain.EntrySignup, created.Credits, created.Credits, "signup")
	out := created
	return &out, nil
}

func (r *Accounts) GetByID(_ context.Context, id string) (*domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *a
	return &out, nil
}

func (r *Accounts) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	email = strings.ToLower(email)
	for _, a := range r.s.accounts {
		if a.Email == email {
			out := *a
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Delete cascades to predictions, logos, ledger entries and purchases.
func (r *Accounts) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.accounts[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.s.accounts, id)
	for pid, p := range r.s.predictions {
		if p.AccountID == id {
			delete(r.s.predictions, pid)
		}
	}
	for lid, l := range r.s.logos {
		if l.AccountID == id {
			delete(r.s.logos, lid)
		}
	}
	entries := r.s.entries[:0]
	for _, e := range r.s.entries {
		if e.AccountID != id {
			entries = append(entries, e)
		}
	}
	r.s.entries = entries
	purchases := r.s.purchases[:0]
	for _, p := range r.s.purchases {
		if p.AccountID != id {
			purchases = append(purchases, p)
		}
	}
	r.s.purchases = purchases
	return nil
}

type Ledger struct{ s *Store }

func (r *Ledger) Debit(_ context.Context, accountID string, amount int, ref string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[accountID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if a.Credits < amount {
		return 0, domain.ErrInsufficientCredits
	}
	a.Credits -= amount
	a.UpdatedAt = r.s.now()
	r.s.appendEntry(accountID, domain.EntryDebit, -amount, a.Credits, ref)
	return a.Credits, nil
}

func (r *Ledger) Credit(_ context.Context, accountID string, kind domain.EntryKind, amount int, ref string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[accountID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	a.Credits += amount
	a.UpdatedAt = r.s.now()
	r.s.appendEntry(accountID, kind, amount, a.Credits, ref)
	return a.Credits, nil
}

func (r *Ledger) Balance(_ context.Context, accountID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[accountID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return a.Credits, nil
}

func (r *Ledger) RecordPurchase(_ context.Context, p *domain.Purchase) (int, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[p.AccountID]
	if !ok {
		return 0, false, domain.ErrNotFound
	}
	for _, existing := range r.s.purchases {
		if existing.Provider == p.Provider && existing.ExternalID == p.ExternalID {
			return a.Credits, false, nil
		}
	}
	rec := *p
	rec.ID = uuid.NewString()
	rec.CreatedAt = r.s.now()
	r.s.purchases = append(r.s.purchases, rec)
	a.Credits += p.Credits
	r.s.appendEntry(a.ID, domain.EntryPurchase, p.Credits, a.Credits, p.ExternalID)
	return a.Credits, true, nil
}

func (r *Ledger) ListPurchases(_ context.Context, accountID string, limit int) ([]domain.Purchase, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Purchase
	for i := len(r.s.purchases) - 1; i >= 0 && len(out) < limit; i-- {
		if r.s.purchases[i].AccountID == accountID {
			out = append(out, r.s.purchases[i])
		}
	}
	return out, nil
}

func (r *Ledger) ListEntries(_ context.Context, accountID string, limit int) ([]domain.CreditEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.CreditEntry
	for i := len(r.s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if r.s.entries[i].AccountID == accountID {
			out = append(out, r.s.entries[i])
		}
	}
	return out, nil
}

type Predictions struct{ s *Store }

func (r *Predictions) Create(_ context.Context, p *domain.Prediction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.accounts[p.AccountID]; !ok {
		return domain.ErrNotFound
	}
	if _, exists := r.s.predictions[p.ID]; exists {
		return domain.ErrStaleUpdate
	}
	rec := clonePrediction(p)
	now := r.s.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	r.s.predictions[p.ID] = rec
	return nil
}

func (r *Predictions) Get(_ context.Context, id string) (*domain.Prediction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.predictions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clonePrediction(p), nil
}

func (r *Predictions) ApplyUpdate(_ context.Context, id string, u domain.PredictionUpdate) (*domain.Prediction, bool, error) {
	if err := u.Validate(); err != nil {
		return nil, false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.predictions[id]
	if !ok {
		return nil, false, domain.ErrNotFound
	}
	if !domain.CanTransition(p.Status, u.Status) {
		return clonePrediction(p), false, nil
	}
	u = u.Normalized(r.s.now())
	p.Status = u.Status
	p.Output = append([]string(nil), u.Output...)
	p.Error = u.Error
	if len(u.Metrics) > 0 {
		p.Metrics = append([]byte(nil), u.Metrics...)
	}
	p.CompletedAt = u.CompletedAt
	p.WebhookCompleted = p.WebhookCompleted || u.WebhookCompleted
	p.UpdatedAt = r.s.now()
	return clonePrediction(p), true, nil
}

func (r *Predictions) MarkWebhookCompleted(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.predictions[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.WebhookCompleted = true
	return nil
}

func (r *Predictions) ClaimOpen(_ context.Context, updatedBefore time.Time, limit int) ([]domain.Prediction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var stale []*domain.Prediction
	for _, p := range r.s.predictions {
		if !p.Status.IsTerminal() && p.UpdatedAt.Before(updatedBefore) {
			stale = append(stale, p)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].UpdatedAt.Before(stale[j].UpdatedAt) })
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	now := r.s.now()
	out := make([]domain.Prediction, 0, len(stale))
	for _, p := range stale {
		p.UpdatedAt = now
		out = append(out, *clonePrediction(p))
	}
	return out, nil
}

func (r *Predictions) ListSucceededByAccount(_ context.Context, accountID string, limit int) ([]domain.Prediction, error) {
	return r.filter(limit, func(p *domain.Prediction) bool {
		return p.AccountID == accountID && p.Status == domain.StatusSucceeded
	}), nil
}

func (r *Predictions) filter(limit int, keep func(*domain.Prediction) bool) []domain.Prediction {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Prediction
	for _, p := range r.s.predictions {
		if keep(p) {
			out = append(out, *clonePrediction(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Backdate moves a prediction's timestamps into the past.
func (r *Predictions) Backdate(id string, by time.Duration) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.predictions[id]; ok {
		p.CreatedAt = p.CreatedAt.Add(-by)
		p.UpdatedAt = p.UpdatedAt.Add(-by)
	}
}

type Logos struct{ s *Store }

func (r *Logos) Create(_ context.Context, l *domain.Logo) (*domain.Logo, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.predictions[l.PredictionID]; !ok {
		return nil, domain.ErrNotFound
	}
	for _, existing := range r.s.logos {
		if existing.PredictionID == l.PredictionID {
			return nil, domain.ErrDuplicateArtifact
		}
	}
	rec := *l
	rec.ID = uuid.NewString()
	rec.CreatedAt = r.s.now()
	r.s.logos[rec.ID] = &rec
	out := rec
	return &out, nil
}

func (r *Logos) Get(_ context.Context, id string) (*domain.Logo, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.logos[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *l
	return &out, nil
}

func (r *Logos) GetByPrediction(_ context.Context, predictionID string) (*domain.Logo, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range r.s.logos {
		if l.PredictionID == predictionID {
			out := *l
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *Logos) ListByAccount(_ context.Context, accountID string, limit, offset int) ([]domain.Logo, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Logo
	for _, l := range r.s.logos {
		if l.AccountID == accountID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Logos) SetStorageKey(_ context.Context, id, key string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.logos[id]
	if !ok {
		return domain.ErrNotFound
	}
	l.StorageKey = key
	return nil
}

func (r *Logos) Delete(_ context.Context, id, accountID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.logos[id]
	if !ok || l.AccountID != accountID {
		return domain.ErrNotFound
	}
	delete(r.s.logos, id)
	return nil
}

func clonePrediction(p *domain.Prediction) *domain.Prediction {
	out := *p
	out.Output = append([]string(nil), p.Output...)
	if p.Input != nil {
		out.Input = append([]byte(nil), p.Input...)
	}
	if p.Metrics != nil {
		out.Metrics = append([]byte(nil), p.Metrics...)
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

var (
	_ domain.AccountRepository    = (*Accounts)(nil)
	_ domain.LedgerRepository     = (*Ledger)(nil)
	_ domain.PredictionRepository = (*Predictions)(nil)
	_ domain.LogoRepository       = (*Logos)(nil)
)
