package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrConfiguration marks a deployment mistake that must abort startup rather
// than degrade request handling.
var ErrConfiguration = errors.New("config: invalid configuration")

// Config contains runtime configuration values.
type Config struct {
	Environment string
	HTTPPort    string
	ServiceName string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Facebook application credentials and surfaces.
	FacebookAppID     string
	FacebookAppSecret string
	FacebookNamespace string
	CanvasURL         string
	AuthRedirectURL   string
	InitialScope      []string

	// Paths on which request authentication is skipped (DisabledPaths) or
	// exclusively applied (EnabledPaths). Regular expressions, mutually
	// exclusive.
	EnabledPaths  []string
	DisabledPaths []string

	// CacheSignedRequest persists the raw signed request to a cookie so
	// in-canvas navigation keeps its identity between page loads.
	CacheSignedRequest bool

	SessionTTL        time.Duration
	RateLimitRPM      int
	TelemetryEndpoint string
	TelemetryInsecure bool
}

// Secret returns the application secret as HMAC key bytes.
func (c Config) Secret() []byte {
	return []byte(c.FacebookAppSecret)
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	appID := strings.TrimSpace(os.Getenv("FACEBOOK_APPLICATION_ID"))
	if appID == "" {
		return Config{}, fmt.Errorf("%w: FACEBOOK_APPLICATION_ID is required", ErrConfiguration)
	}
	appSecret := strings.TrimSpace(os.Getenv("FACEBOOK_APPLICATION_SECRET"))
	if appSecret == "" {
		return Config{}, fmt.Errorf("%w: FACEBOOK_APPLICATION_SECRET is required", ErrConfiguration)
	}

	cfg := Config{
		Environment:        getEnv("APP_ENV", "development"),
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		ServiceName:        getEnv("SERVICE_NAME", "fandjango"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisAddr:          getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getInt("REDIS_DB", 0),
		FacebookAppID:      appID,
		FacebookAppSecret:  appSecret,
		FacebookNamespace:  os.Getenv("FACEBOOK_APPLICATION_NAMESPACE"),
		CanvasURL:          os.Getenv("FACEBOOK_CANVAS_URL"),
		AuthRedirectURL:    os.Getenv("FACEBOOK_AUTHORIZATION_REDIRECT_URL"),
		InitialScope:       getList("FACEBOOK_INITIAL_SCOPE", nil),
		EnabledPaths:       getList("FANDJANGO_ENABLED_PATHS", nil),
		DisabledPaths:      getList("FANDJANGO_DISABLED_PATHS", nil),
		CacheSignedRequest: getBool("FANDJANGO_CACHE_SIGNED_REQUEST", true),
		SessionTTL:         getDuration("SESSION_TTL", 30*24*time.Hour),
		RateLimitRPM:       getInt("RATE_LIMIT_RPM", 600),
		TelemetryEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:  getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("%w: DATABASE_URL is required", ErrConfiguration)
	}
	if cfg.CanvasURL == "" {
		if cfg.FacebookNamespace == "" {
			return Config{}, fmt.Errorf("%w: FACEBOOK_CANVAS_URL or FACEBOOK_APPLICATION_NAMESPACE is required", ErrConfiguration)
		}
		cfg.CanvasURL = "https://apps.facebook.com/" + cfg.FacebookNamespace
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate rejects contradictory path filters and unparseable patterns.
// Enable and disable lists are mutually exclusive.
func (c Config) Validate() error {
	if len(c.EnabledPaths) > 0 && len(c.DisabledPaths) > 0 {
		return fmt.Errorf("%w: FANDJANGO_ENABLED_PATHS and FANDJANGO_DISABLED_PATHS are mutually exclusive", ErrConfiguration)
	}
	for _, pattern := range append(append([]string{}, c.EnabledPaths...), c.DisabledPaths...) {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("%w: invalid path pattern %q: %v", ErrConfiguration, pattern, err)
		}
	}
	return nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
