package handlers

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"kiranalogo/internal/domain"
)

type saveLogoRequest struct {
	PredictionID string `json:"prediction_id"`
}

type logoDTO struct {
	ID           string    `json:"id"`
	PredictionID string    `json:"prediction_id"`
	Prompt       string    `json:"prompt"`
	ImageURL     string    `json:"image_url"`
	Mirrored     bool      `json:"mirrored"`
	CreatedAt    time.Time `json:"created_at"`
}

func toLogoDTO(l *domain.Logo) logoDTO {
	return logoDTO{
		ID:           l.ID,
		PredictionID: l.PredictionID,
		Prompt:       l.Prompt,
		ImageURL:     l.ImageURL,
		Mirrored:     l.StorageKey != "",
		CreatedAt:    l.CreatedAt,
	}
}

// SaveLogo stores a succeeded prediction as a logo; 409 when it already is.
func (a *App) SaveLogo(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req saveLogoRequest
	if !a.decode(w, r, &req) {
		return
	}
	logo, err := a.Logos.Save(r.Context(), principal, req.PredictionID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, toLogoDTO(logo))
}

func (a *App) ListLogos(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.principal(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	items, err := a.Logos.List(r.Context(), principal, limit, offset)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out := make([]logoDTO, 0, len(items))
	for i := range items {
		out = append(out, toLogoDTO(&items[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"items": out, "limit": limit, "offset": offset})
}

func (a *App) DeleteLogo(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.principal(w, r)
	if !ok {
		return
	}
	if err := a.Logos.Delete(r.Context(), principal, chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ArchiveLogos streams a zip of the caller's mirrored logo files.
func (a *App) ArchiveLogos(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.principal(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	count, err := a.Logos.Archive(r.Context(), principal, &buf)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="logos.zip"`)
	w.Header().Set("X-Archive-Count", strconv.Itoa(count))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
