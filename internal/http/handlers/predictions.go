package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kiranalogo/internal/domain"
)

type predictionDTO struct {
	ID          string                  `json:"id"`
	Status      domain.PredictionStatus `json:"status"`
	Input       json.RawMessage         `json:"input,omitempty"`
	Output      []string                `json:"output,omitempty"`
	Error       string                  `json:"error,omitempty"`
	Metrics     json.RawMessage         `json:"metrics,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
	CompletedAt *time.Time              `json:"completed_at,omitempty"`
}

func toPredictionDTO(p *domain.Prediction) predictionDTO {
	return predictionDTO{
		ID:          p.ID,
		Status:      p.Status,
		Input:       p.Input,
		Output:      p.Output,
		Error:       p.Error,
		Metrics:     p.Metrics,
		CreatedAt:   p.CreatedAt,
		CompletedAt: p.CompletedAt,
	}
}

// CreatePrediction debits one credit and submits the job: 201 with the
// record, 402 when the balance is empty.
func (a *App) CreatePrediction(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.principal(w, r)
	if !ok {
		return
	}
	var in domain.PredictionInput
	if !a.decode(w, r, &in) {
		return
	}
	p, err := a.Generation.Submit(r.Context(), principal, in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/predictions/"+p.ID)
	a.json(w, http.StatusCreated, toPredictionDTO(p))
}

// GetPrediction returns the job, refreshing it from the provider while it is
// still open.
func (a *App) GetPrediction(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.principal(w, r)
	if !ok {
		return
	}
	p, err := a.Generation.Resolve(r.Context(), principal, chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toPredictionDTO(p))
}

// RemoveBackground charges one credit and submits a background removal job
// for a saved logo or an image URL. The result is tracked like any other
// prediction.
func (a *App) RemoveBackground(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.principal(w, r)
	if !ok {
		return
	}
	var in domain.BackgroundRemovalInput
	if !a.decode(w, r, &in) {
		return
	}
	p, err := a.Generation.RemoveBackground(r.Context(), principal, in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/predictions/"+p.ID)
	a.json(w, http.StatusCreated, toPredictionDTO(p))
}

// PredictionLogo returns the logo saved from a prediction, 404 until there is one.
func (a *App) PredictionLogo(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.principal(w, r)
	if !ok {
		return
	}
	logo, err := a.Logos.ForPrediction(r.Context(), principal, chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toLogoDTO(logo))
}
