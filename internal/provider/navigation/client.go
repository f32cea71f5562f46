package navigation

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

// Client implements provider.NavigationProvider against an HTTP routing API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a new navigation provider client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Name returns the provider identifier
func (c *Client) Name() string {
	return "navigation"
}

// IsConfigured checks if provider has valid credentials
func (c *Client) IsConfigured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// Route returns directions from an origin to a destination.
func (c *Client) Route(ctx context.Context, query provider.RouteQuery) (*provider.Route, error) {
	if query.Destination == "" {
		return nil, domain.NewValidationError("destination", "navigation lookup needs a destination")
	}

	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("destination", query.Destination)
	if query.Origin != nil {
		q.Set("origin", strconv.FormatFloat(query.Origin.Lat, 'f', 6, 64)+","+strconv.FormatFloat(query.Origin.Lng, 'f', 6, 64))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/directions?"+q.Encode(), nil)
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

	var route provider.Route
	if err := json.NewDecoder(resp.Body).Decode(&route); err != nil {
		return nil, domain.NewFatalProviderError(c.Name(), "failed to decode response: "+err.Error())
	}
	return &route, nil
}
