package api

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderio/concierge/internal/config"
	"github.com/wanderio/concierge/internal/observability"
	"github.com/wanderio/concierge/internal/provider"
)

func routerConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Providers.Booking.BaseURL = "http://booking.local"
	cfg.Providers.Booking.APIKey = "bk_key"
	cfg.Providers.Payment.BaseURL = "http://payment.local"
	cfg.Providers.Payment.KeyID = "key_id"
	cfg.Providers.Payment.KeySecret = "key_secret"
	return cfg
}

func TestNewRouter_RequiredProvidersConfigured(t *testing.T) {
	h, err := NewRouter(routerConfig(), nil, nil, observability.NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, err)
	assert.NotNil(t, h)
}

func TestNewRouter_MissingPaymentCredentialsFailStartup(t *testing.T) {
	cfg := routerConfig()
	cfg.Providers.Payment.KeySecret = ""

	_, err := NewRouter(cfg, nil, nil, observability.NewMetrics(prometheus.NewRegistry()))
	var ce *provider.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "payment", ce.Provider)
}

func TestNewRouter_MissingBookingCredentialsFailStartup(t *testing.T) {
	cfg := routerConfig()
	cfg.Providers.Booking.APIKey = ""

	_, err := NewRouter(cfg, nil, nil, observability.NewMetrics(prometheus.NewRegistry()))
	var ce *provider.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "booking", ce.Provider)
}
