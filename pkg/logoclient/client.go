// Package logoclient is a Go client for the logo API. WaitForCompletion is
// the client side poller: it resolves a prediction until it is terminal or
// the deadline passes.
package logoclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kiranalogo/internal/domain"
)

type Options struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		http:    hc,
	}
}

// WithToken returns a copy of c that authenticates with token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

type Prediction struct {
	ID          string                  `json:"id"`
	Status      domain.PredictionStatus `json:"status"`
	Output      []string                `json:"output,omitempty"`
	Error       string                  `json:"error,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
	CompletedAt *time.Time              `json:"completed_at,omitempty"`
}

type Logo struct {
	ID           string    `json:"id"`
	PredictionID string    `json:"prediction_id"`
	Prompt       string    `json:"prompt"`
	ImageURL     string    `json:"image_url"`
	CreatedAt    time.Time `json:"created_at"`
}

// APIError is a non-2xx answer. It matches the domain sentinel errors with
// errors.Is so callers can branch on the same kinds as the server.
type APIError struct {
	StatusCode int
	Code       string `json:"error"`
	Message    string `json:"message"`
	RequestID  string `json:"request_id"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("logoclient: http %d", e.StatusCode)
	}
	return fmt.Sprintf("logoclient: http %d %s: %s", e.StatusCode, e.Code, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return target == domain.ErrUnauthorized
	case http.StatusPaymentRequired:
		return target == domain.ErrInsufficientCredits
	case http.StatusNotFound:
		return target == domain.ErrNotFound
	case http.StatusConflict:
		return target == domain.ErrDuplicateArtifact && e.Code == "duplicate_artifact" ||
			target == domain.ErrEmailTaken && e.Code == "email_taken"
	case http.StatusBadRequest:
		return target == domain.ErrValidation
	case http.StatusBadGateway:
		return target == domain.ErrProviderUnavailable
	}
	return false
}

// Login exchanges credentials for a bearer token and stores it on c.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &out); err != nil {
		return "", err
	}
	c.token = out.Token
	return out.Token, nil
}

func (c *Client) Submit(ctx context.Context, in domain.PredictionInput) (*Prediction, error) {
	var out Prediction
	if err := c.do(ctx, http.MethodPost, "/predictions", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Get(ctx context.Context, id string) (*Prediction, error) {
	var out Prediction
	if err := c.do(ctx, http.MethodGet, "/predictions/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Save(ctx context.Context, predictionID string) (*Logo, error) {
	var out Logo
	if err := c.do(ctx, http.MethodPost, "/logos/save", map[string]string{"prediction_id": predictionID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveOrGet saves the prediction's result, or returns the logo that was
// already saved for it when the job finished.
func (c *Client) SaveOrGet(ctx context.Context, predictionID string) (*Logo, error) {
	logo, err := c.Save(ctx, predictionID)
	if errors.Is(err, domain.ErrDuplicateArtifact) {
		return c.PredictionLogo(ctx, predictionID)
	}
	return logo, err
}

// PredictionLogo returns the logo saved from a prediction.
func (c *Client) PredictionLogo(ctx context.Context, predictionID string) (*Logo, error) {
	var out Logo
	if err := c.do(ctx, http.MethodGet, "/predictions/"+url.PathEscape(predictionID)+"/logo", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveBackground submits a background removal job for a saved logo.
func (c *Client) RemoveBackground(ctx context.Context, logoID string) (*Prediction, error) {
	var out Prediction
	if err := c.do(ctx, http.MethodPost, "/predictions/remove-background", domain.BackgroundRemovalInput{LogoID: logoID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Credits(ctx context.Context) (int, error) {
	var out struct {
		Credits int `json:"credits"`
	}
	if err := c.do(ctx, http.MethodGet, "/user/credits", nil, &out); err != nil {
		return 0, err
	}
	return out.Credits, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("logoclient: encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("logoclient: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("logoclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("logoclient: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(raw, apiErr)
		return apiErr
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("logoclient: decode response: %w", err)
	}
	return nil
}

// IsTransient reports errors worth another poll: network failures and 5xx.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
