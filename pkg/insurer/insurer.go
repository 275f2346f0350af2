// Package insurer wraps the Ancileo purchase API used to issue policies once
// payment has settled.
package insurer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrAPIFailure = errors.New("insurer api failure")

const maxResponseSizeBytes = 1 << 20

type Config struct {
	BaseURL         string        `envconfig:"BASE_URL" split_words:"true" required:"true"`
	APIKey          string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	DefaultMarket   string        `envconfig:"DEFAULT_MARKET" split_words:"true" default:"SG"`
	DefaultLanguage string        `envconfig:"DEFAULT_LANGUAGE" split_words:"true" default:"en"`
	DefaultChannel  string        `envconfig:"DEFAULT_CHANNEL" split_words:"true" default:"white-label"`
	Timeout         time.Duration `split_words:"true" default:"15s"`
}

type Client struct {
	baseURL         string
	apiKey          string
	defaultMarket   string
	defaultLanguage string
	defaultChannel  string
	httpClient      *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("insurer base url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("insurer api key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL:         baseURL,
		apiKey:          strings.TrimSpace(cfg.APIKey),
		defaultMarket:   stringOr(cfg.DefaultMarket, "SG"),
		defaultLanguage: stringOr(cfg.DefaultLanguage, "en"),
		defaultChannel:  stringOr(cfg.DefaultChannel, "white-label"),
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

// Purchase issues the policy for a confirmed quote. The payload is validated
// and normalized before it leaves the process.
func (c *Client) Purchase(ctx context.Context, payload map[string]any) (map[string]any, error) {
	request, err := c.preparePurchasePayload(payload)
	if err != nil {
		return nil, err
	}

	data, err := c.post(ctx, "/purchase", request)
	if err != nil {
		return nil, err
	}

	offers, _ := request["purchaseOffers"].([]map[string]any)
	log.Info().
		Str("quote_id", fmt.Sprintf("%v", request["quoteId"])).
		Int("offers", len(offers)).
		Msg("policy purchase completed")

	return data, nil
}

func (c *Client) preparePurchasePayload(payload map[string]any) (map[string]any, error) {
	quoteID, err := requireString(payload, "quoteId")
	if err != nil {
		return nil, err
	}

	request := map[string]any{
		"market":       stringOr(payload["market"], c.defaultMarket),
		"languageCode": stringOr(payload["languageCode"], c.defaultLanguage),
		"channel":      stringOr(payload["channel"], c.defaultChannel),
		"quoteId":      quoteID,
	}

	rawOffers, ok := payload["purchaseOffers"].([]any)
	if !ok || len(rawOffers) == 0 {
		return nil, errors.New("purchaseOffers must be a non-empty array")
	}
	offers := make([]map[string]any, 0, len(rawOffers))
	for _, item := range rawOffers {
		offer, err := normalizePurchaseOffer(item)
		if err != nil {
			return nil, err
		}
		offers = append(offers, offer)
	}
	request["purchaseOffers"] = offers

	rawInsureds, ok := payload["insureds"].([]any)
	if !ok || len(rawInsureds) == 0 {
		return nil, errors.New("insureds must be a non-empty array")
	}
	insureds := make([]map[string]any, 0, len(rawInsureds))
	for _, item := range rawInsureds {
		insured, err := normalizeInsured(item)
		if err != nil {
			return nil, err
		}
		insureds = append(insureds, insured)
	}
	request["insureds"] = insureds

	rawContact, ok := payload["mainContact"].(map[string]any)
	if !ok {
		return nil, errors.New("mainContact must be an object containing traveller contact details")
	}
	contact, err := normalizeMainContact(rawContact)
	if err != nil {
		return nil, err
	}
	request["mainContact"] = contact

	return request, nil
}

func normalizePurchaseOffer(item any) (map[string]any, error) {
	offer, ok := item.(map[string]any)
	if !ok {
		return nil, errors.New("each purchase offer must be an object")
	}

	normalized := map[string]any{}
	for _, field := range []string{"productType", "offerId", "productCode", "currency"} {
		value, err := requireString(offer, field)
		if err != nil {
			return nil, err
		}
		normalized[field] = value
	}

	unitPrice, err := requireNumber(offer, "unitPrice")
	if err != nil {
		return nil, err
	}
	totalPrice, err := requireNumber(offer, "totalPrice")
	if err != nil {
		return nil, err
	}
	quantity, err := requireInt(offer, "quantity", 1)
	if err != nil {
		return nil, err
	}

	normalized["unitPrice"] = unitPrice
	normalized["totalPrice"] = totalPrice
	normalized["quantity"] = quantity
	normalized["isSendEmail"] = boolOr(offer["isSendEmail"], true)
	return normalized, nil
}

var insuredFields = []string{
	"id", "title", "firstName", "lastName", "nationality",
	"dateOfBirth", "passport", "email", "phoneType", "phoneNumber", "relationship",
}

func normalizeInsured(item any) (map[string]any, error) {
	insured, ok := item.(map[string]any)
	if !ok {
		return nil, errors.New("each insured entry must be an object")
	}
	normalized := map[string]any{}
	for _, field := range insuredFields {
		value, err := requireString(insured, field)
		if err != nil {
			return nil, err
		}
		normalized[field] = value
	}
	return normalized, nil
}

func normalizeMainContact(contact map[string]any) (map[string]any, error) {
	normalized, err := normalizeInsured(contact)
	if err != nil {
		return nil, err
	}
	for _, field := range []string{"address", "city", "zipCode", "countryCode"} {
		value, err := requireString(contact, field)
		if err != nil {
			return nil, err
		}
		normalized[field] = value
	}
	return normalized, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload map[string]any) (map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal insurer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build insurer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to reach insurer api: %v", ErrAPIFailure, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read insurer response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		log.Error().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("body", string(raw)).
			Msg("insurer api error")
		return nil, fmt.Errorf("%w: status=%d body=%s", ErrAPIFailure, resp.StatusCode, string(raw))
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: invalid json response", ErrAPIFailure)
	}
	return data, nil
}

func requireString(payload map[string]any, field string) (string, error) {
	text := strings.TrimSpace(fmt.Sprintf("%v", orEmpty(payload[field])))
	if text == "" {
		return "", fmt.Errorf("field %q is required and cannot be empty", field)
	}
	return text, nil
}

func requireNumber(payload map[string]any, field string) (float64, error) {
	switch v := payload[field].(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		value, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("field %q must be numeric", field)
		}
		return value, nil
	default:
		return 0, fmt.Errorf("field %q is required", field)
	}
}

func requireInt(payload map[string]any, field string, minimum int) (int, error) {
	value, err := requireNumber(payload, field)
	if err != nil {
		return 0, err
	}
	numeric := int(value)
	if numeric < minimum {
		return 0, fmt.Errorf("field %q must be at least %d", field, minimum)
	}
	return numeric, nil
}

func boolOr(raw any, fallback bool) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	case float64:
		return v != 0
	case int:
		return v != 0
	}
	return fallback
}

func stringOr(raw any, fallback string) string {
	if raw == nil {
		return fallback
	}
	text := strings.TrimSpace(fmt.Sprintf("%v", raw))
	if text == "" {
		return fallback
	}
	return text
}

func orEmpty(raw any) any {
	if raw == nil {
		return ""
	}
	return raw
}
