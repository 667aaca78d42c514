package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Source statuses returned by the payments API.
const (
	SourceStatusPending    = "pending"
	SourceStatusChargeable = "chargeable"
	SourceStatusPaid       = "paid"
	SourceStatusFailed     = "failed"
	SourceStatusCancelled  = "cancelled"
)

// APIError is a non-2xx response from the payments API.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paymongo: status %d: %s", e.StatusCode, e.Detail)
}

// Source is a gcash payment source. CheckoutURL is where the customer
// completes the payment.
type Source struct {
	ID          string
	Status      string
	CheckoutURL string
}

// CreateSourceParams describes a new payment source. Amount is in
// centavos.
type CreateSourceParams struct {
	Amount      int64
	Currency    string
	SuccessURL  string
	FailedURL   string
	Description string
}

// Client talks to the PayMongo sources API.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// NewClient creates a payments API client authenticated with the given
// secret key.
func NewClient(baseURL, secretKey string) *Client {
	return &Client{
		baseURL:   baseURL,
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type sourceEnvelope struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Status   string `json:"status"`
			Redirect struct {
				CheckoutURL string `json:"checkout_url"`
			} `json:"redirect"`
		} `json:"attributes"`
	} `json:"data"`
}

// CreateSource creates a gcash source and returns its checkout URL.
func (c *Client) CreateSource(ctx context.Context, params CreateSourceParams) (*Source, error) {
	body := map[string]any{
		"data": map[string]any{
			"attributes": map[string]any{
				"type":     "gcash",
				"amount":   params.Amount,
				"currency": params.Currency,
				"redirect": map[string]string{
					"success": params.SuccessURL,
					"failed":  params.FailedURL,
				},
				"description": params.Description,
			},
		},
	}

	buf, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal source request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sources", bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doSource(req)
}

// GetSource fetches the current state of a source.
func (c *Client) GetSource(ctx context.Context, id string) (*Source, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/sources/"+id, nil)
	if err != nil {
		return nil, err
	}

	return c.doSource(req)
}

func (c *Client) doSource(req *http.Request) (*Source, error) {
	req.Header.Set("Authorization", "Basic "+basicAuth(c.secretKey))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paymongo request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read paymongo response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Detail:     errorDetail(raw),
		}
	}

	var envelope sourceEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode paymongo response: %w", err)
	}

	return &Source{
		ID:          envelope.Data.ID,
		Status:      envelope.Data.Attributes.Status,
		CheckoutURL: envelope.Data.Attributes.Redirect.CheckoutURL,
	}, nil
}

func basicAuth(secretKey string) string {
	return base64.StdEncoding.EncodeToString([]byte(secretKey + ":"))
}

func errorDetail(raw []byte) string {
	var parsed struct {
		Errors []struct {
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil && len(parsed.Errors) > 0 {
		return parsed.Errors[0].Detail
	}
	return string(raw)
}
