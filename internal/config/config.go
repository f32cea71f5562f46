package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Resolver  ResolverConfig  `mapstructure:"resolver"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Security  SecurityConfig  `mapstructure:"security"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	MiddlewareTimeout time.Duration `mapstructure:"middleware_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type AuthConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	SessionTokenTTL time.Duration `mapstructure:"session_token_ttl"`
}

// AgentConfig tunes the orchestrator core.
type AgentConfig struct {
	DefaultAutonomy  string        `mapstructure:"default_autonomy"`
	DefaultLanguage  string        `mapstructure:"default_language"`
	LockTimeout      time.Duration `mapstructure:"lock_timeout"`
	TurnTimeout      time.Duration `mapstructure:"turn_timeout"`
	MaxAttempts      int           `mapstructure:"max_attempts"`
	BackoffBase      time.Duration `mapstructure:"backoff_base"`
	BackoffCap       time.Duration `mapstructure:"backoff_cap"`
	InactivityWindow time.Duration `mapstructure:"inactivity_window"`
	JanitorInterval  time.Duration `mapstructure:"janitor_interval"`
}

// ResolverConfig selects the intent classifier strategy.
type ResolverConfig struct {
	Mode   string       `mapstructure:"mode"` // "rules" or "gemini"
	Gemini GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// ProvidersConfig holds credentials and endpoints for the downstream
// capability providers. Readiness is checked once at construction.
type ProvidersConfig struct {
	Booking    BookingConfig    `mapstructure:"booking"`
	Payment    PaymentConfig    `mapstructure:"payment"`
	Weather    WeatherConfig    `mapstructure:"weather"`
	Navigation NavigationConfig `mapstructure:"navigation"`
	WhatsApp   WhatsAppConfig   `mapstructure:"whatsapp"`
}

type BookingConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

type PaymentConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	KeyID     string `mapstructure:"key_id"`
	KeySecret string `mapstructure:"key_secret"`
	Currency  string `mapstructure:"currency"`
}

type WeatherConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

type NavigationConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

type WhatsAppConfig struct {
	BaseURL            string `mapstructure:"base_url"`
	Token              string `mapstructure:"token"`
	DefaultCountryCode string `mapstructure:"default_country_code"`
	MaxBodyLength      int    `mapstructure:"max_body_length"`
}

type SecurityConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	// Set config file path
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Set defaults
	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if _, statErr := os.Stat(configPath); statErr == nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
		// Config file not found, use defaults and env vars
	}

	// Override with environment variables
	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.middleware_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "15s")

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "concierge")
	v.SetDefault("database.database", "concierge")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)

	// Redis
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// Auth
	v.SetDefault("auth.session_token_ttl", "24h")

	// Agent
	v.SetDefault("agent.default_autonomy", "assisted")
	v.SetDefault("agent.default_language", "en")
	v.SetDefault("agent.lock_timeout", "3s")
	v.SetDefault("agent.turn_timeout", "30s")
	v.SetDefault("agent.max_attempts", 3)
	v.SetDefault("agent.backoff_base", "200ms")
	v.SetDefault("agent.backoff_cap", "2s")
	v.SetDefault("agent.inactivity_window", "30m")
	v.SetDefault("agent.janitor_interval", "1m")

	// Resolver
	v.SetDefault("resolver.mode", "rules")
	v.SetDefault("resolver.gemini.model", "gemini-2.0-flash")

	// Providers
	v.SetDefault("providers.payment.currency", "INR")
	v.SetDefault("providers.whatsapp.default_country_code", "91")
	v.SetDefault("providers.whatsapp.max_body_length", 4096)

	// Security
	v.SetDefault("security.rate_limit.requests_per_minute", 60)
	v.SetDefault("security.rate_limit.burst", 10)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Metrics
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

func bindEnvVars(v *viper.Viper) {
	// Database
	v.BindEnv("database.password", "POSTGRES_PASSWORD")

	// Redis
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Auth
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")

	// Resolver
	v.BindEnv("resolver.gemini.api_key", "GEMINI_API_KEY")

	// Providers
	v.BindEnv("providers.booking.base_url", "BOOKING_BASE_URL")
	v.BindEnv("providers.booking.api_key", "BOOKING_API_KEY")
	v.BindEnv("providers.payment.base_url", "PAYMENT_BASE_URL")
	v.BindEnv("providers.payment.key_id", "PAYMENT_KEY_ID")
	v.BindEnv("providers.payment.key_secret", "PAYMENT_KEY_SECRET")
	v.BindEnv("providers.weather.base_url", "WEATHER_BASE_URL")
	v.BindEnv("providers.weather.api_key", "WEATHER_API_KEY")
	v.BindEnv("providers.navigation.base_url", "NAVIGATION_BASE_URL")
	v.BindEnv("providers.navigation.api_key", "NAVIGATION_API_KEY")
	v.BindEnv("providers.whatsapp.base_url", "WHATSAPP_BASE_URL")
	v.BindEnv("providers.whatsapp.token", "WHATSAPP_TOKEN")
}
