package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/wanderio/concierge/internal/domain"
	"github.com/wanderio/concierge/internal/provider"
)

// Client implements provider.BookingProvider against an HTTP booking API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a new booking provider client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Name returns the provider identifier
func (c *Client) Name() string {
	return "booking"
}

// IsConfigured checks if provider has valid credentials
func (c *Client) IsConfigured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// Search returns offerings matching the filters
func (c *Client) Search(ctx context.Context, filters provider.SearchFilters) ([]provider.Offering, error) {
	q := url.Values{}
	if filters.Query != "" {
		q.Set("q", filters.Query)
	}
	if filters.Date != "" {
		q.Set("date", filters.Date)
	}
	if filters.GuestCount > 0 {
		q.Set("guests", strconv.Itoa(filters.GuestCount))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/offerings?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, domain.NewRetryableProviderError(c.Name(), err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, provider.ClassifyStatus(c.Name(), resp.StatusCode, readBody(resp.Body))
	}

	var out struct {
		Offerings []provider.Offering `json:"offerings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, domain.NewFatalProviderError(c.Name(), "failed to decode response: "+err.Error())
	}
	return out.Offerings, nil
}

// Book creates a booking for an offering. The idempotency key travels as a
// header so the provider can dedupe a retried create.
func (c *Client) Book(ctx context.Context, bookingReq provider.BookingRequest) (*provider.BookingResult, error) {
	body, err := json.Marshal(bookingReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/bookings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if bookingReq.IdempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", bookingReq.IdempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, domain.NewRetryableProviderError(c.Name(), err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, provider.ClassifyStatus(c.Name(), resp.StatusCode, readBody(resp.Body))
	}

	var result provider.BookingResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, domain.NewFatalProviderError(c.Name(), "failed to decode response: "+err.Error())
	}
	return &result, nil
}

func readBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 2<<10))
	return string(bytes.TrimSpace(b))
}
