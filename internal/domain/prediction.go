package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// PredictionStatus uses the inference provider's vocabulary.
type PredictionStatus string

const (
	StatusStarting   PredictionStatus = "starting"
	StatusProcessing PredictionStatus = "processing"
	StatusSucceeded  PredictionStatus = "succeeded"
	StatusFailed     PredictionStatus = "failed"
	StatusCanceled   PredictionStatus = "canceled"
)

// OpenStatuses are the statuses a prediction may still move out of.
var OpenStatuses = []PredictionStatus{StatusStarting, StatusProcessing}

func (s PredictionStatus) Valid() bool {
	switch s {
	case StatusStarting, StatusProcessing, StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

func (s PredictionStatus) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCanceled
}

// Predecessors lists the stored statuses from which a move to s is legal.
// Terminal statuses have no successors and starting has no predecessor.
func (s PredictionStatus) Predecessors() []PredictionStatus {
	switch s {
	case StatusProcessing:
		return []PredictionStatus{StatusStarting}
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return []PredictionStatus{StatusStarting, StatusProcessing}
	}
	return nil
}

// CanTransition reports whether a prediction stored as from may be moved to to.
func CanTransition(from, to PredictionStatus) bool {
	for _, p := range to.Predecessors() {
		if p == from {
			return true
		}
	}
	return false
}

// PredictionInput is the user supplied generation request. Only Prompt is
// required; the structured fields are merged into the provider prompt.
type PredictionInput struct {
	Prompt    string   `json:"prompt" validate:"required,min=2,max=1000"`
	LogoText  string   `json:"logo_text,omitempty" validate:"max=80"`
	FontStyle string   `json:"font_style,omitempty" validate:"max=60"`
	Colors    []string `json:"colors,omitempty" validate:"max=6,dive,required,max=32"`
	Image     string   `json:"image,omitempty" validate:"omitempty,url"`
	Seed      *int64   `json:"seed,omitempty"`
}

func (in *PredictionInput) Validate() error {
	if err := validator.New().Struct(in); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// BackgroundRemovalInput names the image to cut out: one of the caller's
// logos or any reachable image URL.
type BackgroundRemovalInput struct {
	LogoID   string `json:"logo_id,omitempty" validate:"omitempty,uuid"`
	ImageURL string `json:"image_url,omitempty" validate:"omitempty,url"`
}

func (in *BackgroundRemovalInput) Validate() error {
	in.LogoID = strings.TrimSpace(in.LogoID)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	if in.LogoID == "" && in.ImageURL == "" {
		return fmt.Errorf("%w: logo_id or image_url is required", ErrValidation)
	}
	if err := validator.New().Struct(in); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// Prediction is one submitted generation job as tracked locally.
type Prediction struct {
	ID               string
	AccountID        string
	Status           PredictionStatus
	Input            json.RawMessage
	Version          string
	Output           []string
	Error            string
	Metrics          json.RawMessage
	WebhookCompleted bool
	CreatedAt        time.Time
	CompletedAt      *time.Time
	UpdatedAt        time.Time
}

// PrimaryOutput returns the first output candidate, if any.
func (p *Prediction) PrimaryOutput() string {
	if p == nil || len(p.Output) == 0 {
		return ""
	}
	return p.Output[0]
}

// Prompt reads the prompt echoed back in the stored input.
func (p *Prediction) Prompt() string {
	var in struct {
		Prompt string `json:"prompt"`
	}
	if len(p.Input) == 0 || json.Unmarshal(p.Input, &in) != nil {
		return ""
	}
	return in.Prompt
}

// PredictionUpdate is a status change observed from the provider, either by
// polling or by webhook.
type PredictionUpdate struct {
	Status           PredictionStatus
	Output           []string
	Error            string
	Metrics          json.RawMessage
	CompletedAt      *time.Time
	WebhookCompleted bool
}

// Validate enforces the shape an update must have before it may be stored:
// succeeded requires output, only failed and canceled carry an error.
func (u PredictionUpdate) Validate() error {
	if !u.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, u.Status)
	}
	if u.Status == StatusStarting {
		return fmt.Errorf("%w: cannot move back to %s", ErrStaleUpdate, u.Status)
	}
	if u.Status == StatusSucceeded && len(u.Output) == 0 {
		return fmt.Errorf("%w: succeeded without output", ErrValidation)
	}
	return nil
}

// Normalized drops fields that do not belong to the update's status and fills
// CompletedAt for terminal updates.
func (u PredictionUpdate) Normalized(now time.Time) PredictionUpdate {
	out := u
	if out.Status != StatusSucceeded {
		out.Output = nil
	}
	if out.Status != StatusFailed && out.Status != StatusCanceled {
		out.Error = ""
	} else if out.Error == "" {
		out.Error = "prediction " + string(out.Status)
	}
	if out.Status.IsTerminal() {
		if out.CompletedAt == nil {
			t := now.UTC()
			out.CompletedAt = &t
		}
	} else {
		out.CompletedAt = nil
	}
	return out
}
