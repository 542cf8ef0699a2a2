package replicate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiranalogo/internal/domain"
)

func TestCreatePredictionPayload(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/predictions", r.URL.Path)
		assert.Equal(t, "Bearer r8_test", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &captured))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"pred-1","status":"starting","version":"v1","input":{"prompt":"fox"},"created_at":"2026-03-01T10:00:00.123Z"}`)
	}))
	defer srv.Close()

	client := NewClient(Options{APIToken: "r8_test", BaseURL: srv.URL + "/v1/", ModelVersion: "v1"})
	pred, err := client.CreatePrediction(context.Background(), CreateRequest{
		Input:         map[string]any{"prompt": "fox", "aspect_ratio": "square"},
		Webhook:       "https://logos.example.com/webhooks/replicate",
		WebhookEvents: []string{EventCompleted},
	})
	require.NoError(t, err)
	assert.Equal(t, "pred-1", pred.ID)
	assert.Equal(t, domain.StatusStarting, pred.Status)
	require.NotNil(t, pred.CreatedAt)

	assert.Equal(t, "v1", captured["version"])
	assert.Equal(t, "https://logos.example.com/webhooks/replicate", captured["webhook"])
	assert.Equal(t, []any{"completed"}, captured["webhook_events_filter"])
	assert.Equal(t, "square", captured["input"].(map[string]any)["aspect_ratio"])
}

func TestGetPredictionAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"detail":"overloaded"}`)
	}))
	defer srv.Close()

	client := NewClient(Options{APIToken: "t", BaseURL: srv.URL, ModelVersion: "v1"})
	_, err := client.GetPrediction(context.Background(), "pred-1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "overloaded", apiErr.Detail)
	assert.True(t, apiErr.Temporary())
}

func TestTokenSourceFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer stored", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"id":"pred-1","status":"processing"}`)
	}))
	defer srv.Close()

	client := NewClient(Options{
		BaseURL:     srv.URL,
		TokenSource: func(context.Context) (string, error) { return " stored ", nil },
	})
	pred, err := client.GetPrediction(context.Background(), "pred-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, pred.Status)

	empty := NewClient(Options{BaseURL: srv.URL})
	_, err = empty.GetPrediction(context.Background(), "pred-1")
	assert.ErrorIs(t, err, ErrMissingAPIToken)
}

func TestPredictionUnmarshalNormalizesOutput(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		output []string
		errMsg string
	}{
		{"array", `{"id":"a","status":"succeeded","output":["https://o/0.png","https://o/1.png"]}`, []string{"https://o/0.png", "https://o/1.png"}, ""},
		{"single", `{"id":"a","status":"succeeded","output":"https://o/0.png"}`, []string{"https://o/0.png"}, ""},
		{"null", `{"id":"a","status":"processing","output":null}`, nil, ""},
		{"string_error", `{"id":"a","status":"failed","error":"NSFW content detected"}`, nil, "NSFW content detected"},
		{"object_error", `{"id":"a","status":"failed","error":{"detail":"out of memory"}}`, nil, "out of memory"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var p Prediction
			require.NoError(t, json.Unmarshal([]byte(tc.body), &p))
			assert.Equal(t, tc.output, p.Output)
			assert.Equal(t, tc.errMsg, p.Error)
		})
	}

	var p Prediction
	assert.Error(t, json.Unmarshal([]byte(`{"id":`), &p))
}

func TestPredictionUpdateCarriesMetrics(t *testing.T) {
	var p Prediction
	require.NoError(t, json.Unmarshal([]byte(`{"id":"a","status":"succeeded","output":["u"],"metrics":{"predict_time":3.2},"completed_at":"2026-03-01T10:00:05Z"}`), &p))
	u := p.Update()
	assert.Equal(t, domain.StatusSucceeded, u.Status)
	assert.JSONEq(t, `{"predict_time":3.2}`, string(u.Metrics))
	require.NotNil(t, u.CompletedAt)
	assert.NoError(t, u.Validate())
}

func TestCreatePredictionVersionOverride(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &captured))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"pred-2","status":"starting"}`)
	}))
	defer srv.Close()

	client := NewClient(Options{APIToken: "t", BaseURL: srv.URL, ModelVersion: "logo-v1"})
	_, err := client.CreatePrediction(context.Background(), CreateRequest{Version: "removebg-v1", Input: map[string]string{"image": "https://cdn/1.png"}})
	require.NoError(t, err)
	assert.Equal(t, "removebg-v1", captured["version"])
}

func TestDownloadLimit(t *testing.T) {
	tests := map[string]struct {
		size    int
		wantErr error
	}{
		"within limit": {size: 1024},
		"at limit":     {size: MaxDownloadBytes},
		"over limit":   {size: MaxDownloadBytes + 1, wantErr: ErrDownloadTooLarge},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "image/webp")
				_, _ = w.Write(make([]byte, tc.size))
			}))
			defer srv.Close()

			data, format, err := NewClient(Options{}).Download(context.Background(), srv.URL+"/out.webp")
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, data, tc.size)
			assert.Equal(t, "image/webp", format)
		})
	}
}
