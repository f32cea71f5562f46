package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/wanderio/concierge/internal/domain"
	"github.com/wanderio/concierge/internal/provider"
)

// Client implements provider.WeatherProvider against an HTTP weather API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a new weather provider client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Name returns the provider identifier
func (c *Client) Name() string {
	return "weather"
}

// IsConfigured checks if provider has valid credentials
func (c *Client) IsConfigured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// Current returns current conditions for a destination or coordinate.
func (c *Client) Current(ctx context.Context, query provider.WeatherQuery) (*provider.WeatherReport, error) {
	q := url.Values{}
	q.Set("key", c.apiKey)
	switch {
	case query.Destination != "":
		q.Set("q", query.Destination)
	case query.Location != nil:
		q.Set("q", formatLatLng(query.Location))
	default:
		return nil, domain.NewValidationError("destination", "weather lookup needs a destination or location")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/current?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, domain.NewRetryableProviderError(c.Name(), err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, provider.ClassifyStatus(c.Name(), resp.StatusCode, "")
	}

	var report provider.WeatherReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, domain.NewFatalProviderError(c.Name(), "failed to decode response: "+err.Error())
	}
	return &report, nil
}

func formatLatLng(loc *domain.Location) string {
	return strconv.FormatFloat(loc.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(loc.Lng, 'f', 6, 64)
}
