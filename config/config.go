package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// APIKeyEnv is the environment variable holding the shared API secret.
const APIKeyEnv = "FETCHGATE_API_KEY"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	Browser   BrowserConfig
	Fetcher   FetcherConfig
	RateLimit RateLimitConfig
	Metrics   MetricsConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8000
	Mode string // "debug", "release", "test"; default: "release"

	// RequestDeadline bounds every engine call. Zero means no deadline:
	// a blocked engine blocks the request.
	RequestDeadline time.Duration // default: 0

	// ShutdownGrace is how long in-flight requests get on shutdown.
	ShutdownGrace time.Duration // default: 5s
}

// AuthConfig controls API key authentication.
//
// Authentication is fail-open: when APIKey is empty every protected route is
// reachable without credentials. This is an explicit deployment choice for
// gateways running inside trusted networks.
type AuthConfig struct {
	APIKey string
}

// Enabled reports whether a secret is configured.
func (a AuthConfig) Enabled() bool { return a.APIKey != "" }

// BrowserConfig controls the rod-managed browsers used by the dynamic and
// stealthy fetch modes.
type BrowserConfig struct {
	// Bin overrides the Chromium binary path.
	Bin string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// MaxPages is the page pool capacity per launched browser.
	MaxPages int // default: 10
}

// FetcherConfig controls the plain HTTP engine.
type FetcherConfig struct {
	// MaxBodyBytes caps how much of a response body is read.
	MaxBodyBytes int64 // default: 10 MiB

	// MaxRedirects is the redirect limit when follow_redirects is on.
	MaxRedirects int // default: 10
}

// RateLimitConfig controls per-identity rate limiting on protected routes.
// A zero RequestsPerSecond disables the limiter.
type RateLimitConfig struct {
	RequestsPerSecond float64 // default: 0 (disabled)
	Burst             int     // default: 10
}

// Enabled reports whether rate limiting should be installed.
func (r RateLimitConfig) Enabled() bool { return r.RequestsPerSecond > 0 }

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   // default: true
	Path    string // default: "/metrics"
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
// A .env file in the working directory is loaded first when present;
// variables already set in the environment win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Host:            envOr("FETCHGATE_HOST", "0.0.0.0"),
			Port:            envIntOr("FETCHGATE_PORT", 8000),
			Mode:            envOr("FETCHGATE_MODE", "release"),
			RequestDeadline: envDurationOr("FETCHGATE_REQUEST_DEADLINE", 0),
			ShutdownGrace:   envDurationOr("FETCHGATE_SHUTDOWN_GRACE", 5*time.Second),
		},
		Auth: AuthConfig{
			APIKey: os.Getenv(APIKeyEnv),
		},
		Browser: BrowserConfig{
			Bin:       os.Getenv("FETCHGATE_BROWSER_BIN"),
			NoSandbox: envBoolOr("FETCHGATE_NO_SANDBOX", false),
			MaxPages:  envIntOr("FETCHGATE_MAX_PAGES", 10),
		},
		Fetcher: FetcherConfig{
			MaxBodyBytes: int64(envIntOr("FETCHGATE_MAX_BODY_BYTES", 10<<20)),
			MaxRedirects: envIntOr("FETCHGATE_MAX_REDIRECTS", 10),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("FETCHGATE_RATE_RPS", 0),
			Burst:             envIntOr("FETCHGATE_RATE_BURST", 10),
		},
		Metrics: MetricsConfig{
			Enabled: envBoolOr("FETCHGATE_METRICS", true),
			Path:    envOr("FETCHGATE_METRICS_PATH", "/metrics"),
		},
		Log: LogConfig{
			Level:  envOr("FETCHGATE_LOG_LEVEL", "info"),
			Format: envOr("FETCHGATE_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
