package domain

import "time"

// UntitledPrompt names artifacts whose prediction input carried no prompt.
const UntitledPrompt = "Untitled Logo"

// Logo is a persisted generation result. At most one exists per prediction.
type Logo struct {
	ID           string
	AccountID    string
	PredictionID string
	Prompt       string
	ImageURL     string
	StorageKey   string
	CreatedAt    time.Time
}
