package replicate

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

	"github.com/rs/zerolog"

	"kiranalogo/internal/infra"
)

// ErrMissingAPIToken indicates that no token was configured or stored.
var ErrMissingAPIToken = errors.New("replicate: api token is required")

// EventCompleted restricts webhooks to terminal events.
const EventCompleted = "completed"

// MaxDownloadBytes caps a single output file.
const MaxDownloadBytes = 20 << 20

// ErrDownloadTooLarge is returned for output files over MaxDownloadBytes.
var ErrDownloadTooLarge = errors.New("replicate: file exceeds download limit")

// TokenSource resolves the API token per request, e.g. from the
// integration token store.
type TokenSource func(ctx context.Context) (string, error)

// Options configures the Replicate client.
type Options struct {
	APIToken       string
	TokenSource    TokenSource
	BaseURL        string
	ModelVersion   string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the Replicate predictions API.
type Client struct {
	apiToken    string
	tokenSource TokenSource
	baseURL     string
	version     string
	httpClient  *http.Client
	logger      *infra.Logger
}

// CreateRequest is one prediction submission. Version overrides the client's
// model version.
type CreateRequest struct {
	Version       string
	Input         any
	Webhook       string
	WebhookEvents []string
}

type createPayload struct {
	Version             string   `json:"version"`
	Input               any      `json:"input"`
	Webhook             string   `json:"webhook,omitempty"`
	WebhookEventsFilter []string `json:"webhook_events_filter,omitempty"`
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("replicate: status %d: %s", e.StatusCode, e.Detail)
}

// Temporary reports whether retrying the call may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.replicate.com/v1"
	}
	logger := opts.Logger
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &Client{
		apiToken:    strings.TrimSpace(opts.APIToken),
		tokenSource: opts.TokenSource,
		baseURL:     baseURL,
		version:     strings.TrimSpace(opts.ModelVersion),
		httpClient:  httpClient,
		logger:      logger,
	}
}

// ModelVersion returns the configured model version id.
func (c *Client) ModelVersion() string {
	return c.version
}

// CreatePrediction submits a job and returns the provider-assigned record.
func (c *Client) CreatePrediction(ctx context.Context, req CreateRequest) (*Prediction, error) {
	version := strings.TrimSpace(req.Version)
	if version == "" {
		version = c.version
	}
	if version == "" {
		return nil, errors.New("replicate: model version is required")
	}
	body, err := json.Marshal(createPayload{
		Version:             version,
		Input:               req.Input,
		Webhook:             req.Webhook,
		WebhookEventsFilter: req.WebhookEvents,
	})
	if err != nil {
		return nil, fmt.Errorf("replicate: encode request: %w", err)
	}
	var pred Prediction
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/predictions", body, &pred); err != nil {
		return nil, err
	}
	if pred.ID == "" {
		return nil, errors.New("replicate: response without prediction id")
	}
	c.logger.Debug().Str("prediction_id", pred.ID).Str("status", string(pred.Status)).Msg("replicate: prediction created")
	return &pred, nil
}

// GetPrediction fetches the current state of a job.
func (c *Client) GetPrediction(ctx context.Context, id string) (*Prediction, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("replicate: prediction id is required")
	}
	var pred Prediction
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/predictions/"+url.PathEscape(id), nil, &pred); err != nil {
		return nil, err
	}
	return &pred, nil
}

// Download fetches an output file. Output URLs expire, so callers copy them
// to their own storage.
func (c *Client) Download(ctx context.Context, fileURL string) ([]byte, string, error) {
	parsed, err := url.Parse(strings.TrimSpace(fileURL))
	if err != nil || parsed.Scheme == "" {
		return nil, "", fmt.Errorf("replicate: invalid file url: %s", fileURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("replicate: build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("replicate: download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("replicate: download status %d", resp.StatusCode)
	}
	if resp.ContentLength > MaxDownloadBytes {
		return nil, "", ErrDownloadTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownloadBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("replicate: read file: %w", err)
	}
	if len(data) > MaxDownloadBytes {
		return nil, "", ErrDownloadTooLarge
	}
	format := resp.Header.Get("Content-Type")
	if format == "" {
		format = "image/png"
	}
	return data, format, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("replicate: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("replicate: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("replicate: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var detail struct {
			Detail string `json:"detail"`
			Title  string `json:"title"`
		}
		msg := strings.TrimSpace(string(raw))
		if err := json.Unmarshal(raw, &detail); err == nil && (detail.Detail != "" || detail.Title != "") {
			msg = detail.Detail
			if msg == "" {
				msg = detail.Title
			}
		}
		return &APIError{StatusCode: resp.StatusCode, Detail: msg}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("replicate: decode response: %w", err)
	}
	return nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.apiToken != "" {
		return c.apiToken, nil
	}
	if c.tokenSource != nil {
		token, err := c.tokenSource(ctx)
		if err != nil {
			return "", fmt.Errorf("replicate: load token: %w", err)
		}
		if token = strings.TrimSpace(token); token != "" {
			return token, nil
		}
	}
	return "", ErrMissingAPIToken
}
