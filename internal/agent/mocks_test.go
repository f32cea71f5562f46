package agent

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/wanderio/concierge/internal/domain"
	"github.com/wanderio/concierge/internal/provider"
)

// MockBookingProvider mocks the BookingProvider interface
type MockBookingProvider struct {
	mock.Mock
}

func (m *MockBookingProvider) Name() string       { return "booking" }
func (m *MockBookingProvider) IsConfigured() bool { return true }

func (m *MockBookingProvider) Search(ctx context.Context, filters provider.SearchFilters) ([]provider.Offering, error) {
	args := m.Called(ctx, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]provider.Offering), args.Error(1)
}

func (m *MockBookingProvider) Book(ctx context.Context, req provider.BookingRequest) (*provider.BookingResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.BookingResult), args.Error(1)
}

// MockPaymentProvider mocks the PaymentProvider interface
type MockPaymentProvider struct {
	mock.Mock
}

func (m *MockPaymentProvider) Name() string       { return "payment" }
func (m *MockPaymentProvider) IsConfigured() bool { return true }

func (m *MockPaymentProvider) CreateOrder(ctx context.Context, req provider.OrderRequest) (*provider.Order, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Order), args.Error(1)
}

func (m *MockPaymentProvider) VerifySignature(orderID, paymentID, signature string) bool {
	args := m.Called(orderID, paymentID, signature)
	return args.Bool(0)
}

// MockWeatherProvider mocks the WeatherProvider interface
type MockWeatherProvider struct {
	mock.Mock
}

func (m *MockWeatherProvider) Name() string       { return "weather" }
func (m *MockWeatherProvider) IsConfigured() bool { return true }

func (m *MockWeatherProvider) Current(ctx context.Context, q provider.WeatherQuery) (*provider.WeatherReport, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.WeatherReport), args.Error(1)
}

// MockNavigationProvider mocks the NavigationProvider interface
type MockNavigationProvider struct {
	mock.Mock
}

func (m *MockNavigationProvider) Name() string       { return "navigation" }
func (m *MockNavigationProvider) IsConfigured() bool { return true }

func (m *MockNavigationProvider) Route(ctx context.Context, q provider.RouteQuery) (*provider.Route, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Route), args.Error(1)
}

// memoryCache is an in-process IdempotencyCache for tests.
type memoryCache struct {
	mu    sync.Mutex
	calls map[string]*domain.ToolCall
}

func newMemoryCache() *memoryCache {
	return &memoryCache{calls: make(map[string]*domain.ToolCall)}
}

func (c *memoryCache) Get(_ context.Context, key string) (*domain.ToolCall, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[key], nil
}

func (c *memoryCache) Put(_ context.Context, key string, call *domain.ToolCall) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := *call
	c.calls[key] = &stored
	return nil
}

// stubResolver returns a fixed intent per input text.
type stubResolver struct {
	intents map[string]*domain.Intent
}

func (s *stubResolver) Resolve(_ context.Context, text string, _ ResolveContext) (*domain.Intent, error) {
	if intent, ok := s.intents[text]; ok {
		return intent, nil
	}
	return &domain.Intent{Type: domain.IntentGeneralChat}, nil
}

// newTestDispatcher wires a dispatcher with instant backoff.
func newTestDispatcher(reg *provider.Registry, cache IdempotencyCache) *Dispatcher {
	d := NewDispatcher(reg, cache, DispatcherOptions{MaxAttempts: 3})
	d.sleep = func(context.Context, time.Duration) error { return nil }
	return d
}
