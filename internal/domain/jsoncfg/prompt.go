package jsoncfg

import (
	"encoding/json"
	"fmt"
	"strings"

	"kiranalogo/internal/domain"
)

const (
	// DefaultAspectRatio is the only framing the logo model is asked for.
	DefaultAspectRatio = "square"
	// ReferenceGuidanceScale is applied when a reference image is supplied.
	ReferenceGuidanceScale = 1.0
	// QualitySuffix is appended to every composed prompt.
	QualitySuffix = ", vector logo, minimalist, figma, behance"
)

// ModelInput is the input object sent to the inference provider.
type ModelInput struct {
	Prompt        string   `json:"prompt"`
	AspectRatio   string   `json:"aspect_ratio"`
	Image         string   `json:"image,omitempty"`
	GuidanceScale *float64 `json:"guidance_scale,omitempty"`
	Seed          *int64   `json:"seed,omitempty"`
}

// StoredInput is what the job record keeps: the caller's fields plus the
// prompt that was actually sent.
type StoredInput struct {
	domain.PredictionInput
	ComposedPrompt string `json:"composed_prompt"`
	AspectRatio    string `json:"aspect_ratio"`
}

// ComposePrompt merges the structured fields into a single provider prompt.
func ComposePrompt(in domain.PredictionInput) string {
	sb := &strings.Builder{}
	sb.WriteString(strings.TrimSpace(in.Prompt))
	if text := strings.TrimSpace(in.LogoText); text != "" {
		fmt.Fprintf(sb, ", with the text %q", text)
	}
	if style := strings.TrimSpace(in.FontStyle); style != "" {
		fmt.Fprintf(sb, " in a %s style", style)
	}
	var colors []string
	for _, c := range in.Colors {
		if c = strings.TrimSpace(c); c != "" {
			colors = append(colors, c)
		}
	}
	if len(colors) > 0 {
		sb.WriteString(". Color palette: ")
		sb.WriteString(strings.Join(colors, ", "))
	}
	sb.WriteString(QualitySuffix)
	return sb.String()
}

// Compose builds the provider input for a validated prediction input.
func Compose(in domain.PredictionInput) ModelInput {
	out := ModelInput{
		Prompt:      ComposePrompt(in),
		AspectRatio: DefaultAspectRatio,
		Seed:        in.Seed,
	}
	if img := strings.TrimSpace(in.Image); img != "" {
		scale := ReferenceGuidanceScale
		out.Image = img
		out.GuidanceScale = &scale
	}
	return out
}

// Store returns the JSON kept on the job record for in.
func Store(in domain.PredictionInput, sent ModelInput) json.RawMessage {
	return MustMarshal(StoredInput{
		PredictionInput: in,
		ComposedPrompt:  sent.Prompt,
		AspectRatio:     sent.AspectRatio,
	})
}

// TaskRemoveBackground tags stored inputs of background removal jobs.
const TaskRemoveBackground = "remove_background"

// BackgroundModelInput is sent to the background removal model.
type BackgroundModelInput struct {
	Image string `json:"image"`
}

// StoredBackgroundInput is kept on background removal job records. Prompt
// carries the source logo's prompt so the cut-out is saved under it.
type StoredBackgroundInput struct {
	Task         string `json:"task"`
	Prompt       string `json:"prompt,omitempty"`
	Image        string `json:"image"`
	SourceLogoID string `json:"source_logo_id,omitempty"`
}

// StoreBackground returns the JSON kept on a background removal job record.
func StoreBackground(image, prompt, sourceLogoID string) json.RawMessage {
	return MustMarshal(StoredBackgroundInput{
		Task:         TaskRemoveBackground,
		Prompt:       prompt,
		Image:        image,
		SourceLogoID: sourceLogoID,
	})
}

func MustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("json marshal: %w", err))
	}
	return b
}
