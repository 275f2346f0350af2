// Package payments wraps the auxiliary checkout service used to collect
// premiums before policy issuance.
package payments

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
)

var ErrSessionNotFound = errors.New("payment session not found")

const maxResponseSizeBytes = 1 << 20

type Config struct {
	BaseURL   string        `envconfig:"BASE_URL" split_words:"true" required:"true"`
	StatusURL string        `envconfig:"STATUS_URL" split_words:"true"`
	Timeout   time.Duration `split_words:"true" default:"15s"`
}

// CheckoutRequest carries everything the checkout service needs to open a
// session. Amount is in minor currency units.
type CheckoutRequest struct {
	PlanCode      string         `json:"plan_code"`
	Amount        int64          `json:"amount"`
	Currency      string         `json:"currency"`
	SuccessURL    string         `json:"success_url"`
	CancelURL     string         `json:"cancel_url"`
	CustomerEmail string         `json:"customer_email,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

type CheckoutSession struct {
	Provider    string `json:"provider"`
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

type Client struct {
	baseURL    string
	statusURL  string
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("payments base url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, err
	}

	statusURL := strings.TrimRight(strings.TrimSpace(cfg.StatusURL), "/")
	if statusURL == "" {
		statusURL = strings.TrimRight(baseURL, "/") + "/payments/status"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		statusURL: statusURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

// CreateCheckoutSession opens a hosted checkout page for the given plan.
func (c *Client) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	if strings.TrimSpace(req.PlanCode) == "" {
		return CheckoutSession{}, errors.New("plan_code is required")
	}
	if req.Amount <= 0 {
		return CheckoutSession{}, errors.New("amount must be positive")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("marshal checkout request: %w", err)
	}

	raw, status, err := c.do(ctx, http.MethodPost, c.baseURL+"/payments/session", body)
	if err != nil {
		return CheckoutSession{}, err
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return CheckoutSession{}, fmt.Errorf("payments http status=%d body=%s", status, string(raw))
	}

	var session CheckoutSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return CheckoutSession{}, fmt.Errorf("decode checkout session: %w", err)
	}
	if session.Provider == "" {
		session.Provider = "stripe"
	}
	if session.SessionID == "" || session.CheckoutURL == "" {
		return CheckoutSession{}, errors.New("checkout service returned incomplete session")
	}
	return session, nil
}

// FetchStatus returns the latest state of a previously created session.
func (c *Client) FetchStatus(ctx context.Context, sessionID string) (map[string]any, error) {
	trimmed := strings.TrimSpace(sessionID)
	if trimmed == "" {
		return nil, errors.New("session id is required")
	}

	raw, status, err := c.do(ctx, http.MethodGet, c.statusURL+"/"+url.PathEscape(trimmed), nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, ErrSessionNotFound
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("payments http status=%d body=%s", status, string(raw))
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode payment status: %w", err)
	}
	return payload, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("build payments request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("execute payments request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("read payments response: %w", err)
	}
	return raw, resp.StatusCode, nil
}
