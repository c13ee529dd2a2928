package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Delivery provider identifiers accepted in DELIVERY_PROVIDER.
const (
	ProviderTwilio = "twilio"
	ProviderSNS    = "sns"
	ProviderLog    = "log"
)

const (
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultTwilioBaseURL  = "https://verify.twilio.com"
	defaultAttemptWindow  = 10 * time.Minute
	defaultCodeTTL        = 10 * time.Minute
	defaultSweepInterval  = time.Hour
	defaultMaxOpenConns   = 100
	defaultRateLimit      = 10
	defaultShutdownPeriod = 10 * time.Second
)

// TwilioConfig holds Twilio Verify credentials.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	ServiceID  string
	BaseURL    string
}

// Config holds the application configuration
type Config struct {
	DatabaseURL    string
	Port           string
	LogLevel       string
	Provider       string
	Twilio         TwilioConfig
	AWSRegion      string
	RedisURL       string
	AttemptWindow  time.Duration
	CodeTTL        time.Duration
	SweepInterval  time.Duration
	MaxOpenConns   int
	RateLimit      int
	TrustProxy     bool
	ShutdownPeriod time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL: DatabaseURL(),
		Port:        getEnv("PORT", defaultPort),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		Provider:    strings.ToLower(getEnv("DELIVERY_PROVIDER", ProviderTwilio)),
		Twilio: TwilioConfig{
			AccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
			ServiceID:  os.Getenv("TWILIO_SERVICES_ID"),
			BaseURL:    getEnv("TWILIO_BASE_URL", defaultTwilioBaseURL),
		},
		AWSRegion: os.Getenv("AWS_REGION"),
		RedisURL:  os.Getenv("REDIS_URL"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	var err error
	if cfg.AttemptWindow, err = getDuration("ATTEMPT_WINDOW", defaultAttemptWindow); err != nil {
		return nil, err
	}
	if cfg.AttemptWindow <= 0 {
		return nil, fmt.Errorf("ATTEMPT_WINDOW must be positive")
	}
	if cfg.CodeTTL, err = getDuration("CODE_TTL", defaultCodeTTL); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = getDuration("SWEEP_INTERVAL", defaultSweepInterval); err != nil {
		return nil, err
	}
	if cfg.ShutdownPeriod, err = getDuration("SHUTDOWN_TIMEOUT", defaultShutdownPeriod); err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns, err = getInt("DB_MAX_OPEN_CONNS", defaultMaxOpenConns); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = getInt("RATE_LIMIT_PER_WINDOW", defaultRateLimit); err != nil {
		return nil, err
	}
	if cfg.TrustProxy, err = getBool("TRUST_PROXY_HEADERS", false); err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case ProviderTwilio:
		if cfg.Twilio.AccountSID == "" || cfg.Twilio.AuthToken == "" || cfg.Twilio.ServiceID == "" {
			return nil, fmt.Errorf("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_SERVICES_ID are required for the twilio provider")
		}
	case ProviderSNS:
		if cfg.AWSRegion == "" {
			return nil, fmt.Errorf("AWS_REGION environment variable is required for the sns provider")
		}
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL environment variable is required for the sns provider")
		}
	case ProviderLog:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL environment variable is required for the log provider")
		}
	default:
		return nil, fmt.Errorf("unknown DELIVERY_PROVIDER %q", cfg.Provider)
	}

	return cfg, nil
}

// DatabaseURL returns DATABASE_URL without the rest of the configuration,
// for commands that only touch the schema.
func DatabaseURL() string {
	return strings.TrimSpace(os.Getenv("DATABASE_URL"))
}

// Address returns the HTTP listen address.
func (c *Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	if v == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return n, nil
}
