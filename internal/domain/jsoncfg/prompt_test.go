package jsoncfg

import (
	"encoding/json"
	"testing"

	"kiranalogo/internal/domain"
)

func TestComposePrompt(t *testing.T) {
	cases := []struct {
		name string
		in   domain.PredictionInput
		want string
	}{
		{
			name: "prompt_only",
			in:   domain.PredictionInput{Prompt: " fox logo "},
			want: "fox logo, vector logo, minimalist, figma, behance",
		},
		{
			name: "all_fields",
			in: domain.PredictionInput{
				Prompt:    "coffee shop",
				LogoText:  "Kopi Kita",
				FontStyle: "serif",
				Colors:    []string{"#3b2f2f", " ", "cream"},
			},
			want: `coffee shop, with the text "Kopi Kita" in a serif style. Color palette: #3b2f2f, cream, vector logo, minimalist, figma, behance`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ComposePrompt(tc.in); got != tc.want {
				t.Fatalf("ComposePrompt = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestComposeReferenceImageSetsGuidance(t *testing.T) {
	got := Compose(domain.PredictionInput{Prompt: "bakery", Image: "https://cdn.example.com/ref.png"})
	if got.AspectRatio != DefaultAspectRatio {
		t.Fatalf("AspectRatio = %q, want %q", got.AspectRatio, DefaultAspectRatio)
	}
	if got.GuidanceScale == nil || *got.GuidanceScale != ReferenceGuidanceScale {
		t.Fatalf("GuidanceScale = %v, want %v", got.GuidanceScale, ReferenceGuidanceScale)
	}

	plain := Compose(domain.PredictionInput{Prompt: "bakery"})
	if plain.GuidanceScale != nil || plain.Image != "" {
		t.Fatalf("expected no reference fields, got %+v", plain)
	}
}

func TestStoreKeepsCallerPrompt(t *testing.T) {
	in := domain.PredictionInput{Prompt: "fox logo", LogoText: "Fox"}
	raw := Store(in, Compose(in))

	p := domain.Prediction{Input: raw}
	if p.Prompt() != "fox logo" {
		t.Fatalf("Prompt() = %q, want %q", p.Prompt(), "fox logo")
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["composed_prompt"] != ComposePrompt(in) {
		t.Fatalf("composed_prompt = %v", decoded["composed_prompt"])
	}
}

func TestStoreBackgroundKeepsSourcePrompt(t *testing.T) {
	raw := StoreBackground("https://cdn.example.com/1.png", "fox logo", "logo-1")

	p := domain.Prediction{Input: raw}
	if p.Prompt() != "fox logo" {
		t.Fatalf("Prompt() = %q, want %q", p.Prompt(), "fox logo")
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["task"] != TaskRemoveBackground || decoded["source_logo_id"] != "logo-1" {
		t.Fatalf("stored input = %v", decoded)
	}
}
