// Package config defines the runtime settings of the linecast host with their
// defaults, sanitising, environment overrides and TOML file loading.
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/komkom/toml"
	"github.com/pkg/errors"
)

// RateLimitConfig defines the per-observer limit on console submissions.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// NATSConfig enables the NATS relay when URL is set.
type NATSConfig struct {
	URL     string
	Subject string
}

// Config holds every setting of the host. The broadcast port is fixed for the
// lifetime of the process.
type Config struct {
	Port         int
	BindHost     string
	PollInterval time.Duration
	WriteTimeout time.Duration

	ConsoleAddr    string
	MetricsEnabled bool
	AllowedOrigins []string
	MaxMessageSize int64
	RateLimit      RateLimitConfig

	NATS     NATSConfig
	LogLevel string
}

// fileConfig mirrors the TOML layout. Pointers tell absent keys apart from
// zero values.
type fileConfig struct {
	Port           *int     `json:"port"`
	Bind           *string  `json:"bind"`
	PollIntervalMS *int     `json:"poll_interval_ms"`
	WriteTimeoutMS *int     `json:"write_timeout_ms"`
	Console        *string  `json:"console"`
	Metrics        *bool    `json:"metrics"`
	AllowedOrigins []string `json:"allowed_origins"`
	MaxMessageSize *int64   `json:"max_message_size"`
	LogLevel       *string  `json:"log_level"`

	RateLimit struct {
		Burst         *int `json:"burst"`
		RefillSeconds *int `json:"refill_seconds"`
	} `json:"rate_limit"`

	NATS struct {
		URL     *string `json:"url"`
		Subject *string `json:"subject"`
	} `json:"nats"`
}

const (
	defaultPort           = 4444
	defaultSubject        = "linecast.messages"
	defaultMaxMessageSize = 2048
)

// Default returns a Config populated with default values for all settings.
func Default() Config {
	return Config{
		Port:         defaultPort,
		PollInterval: time.Second,
		WriteTimeout: 5 * time.Second,
		ConsoleAddr:  "127.0.0.1:8080",
		AllowedOrigins: []string{
			"http://localhost:8080",
			"http://127.0.0.1:8080",
		},
		MaxMessageSize: defaultMaxMessageSize,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
		NATS:     NATSConfig{Subject: defaultSubject},
		LogLevel: "info",
	}
}

// Sanitize replaces out-of-range values with their defaults.
func (c Config) Sanitize() Config {
	def := Default()

	if c.Port < 0 || c.Port > 65535 {
		c.Port = def.Port
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.WriteTimeout < 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = def.RateLimit.Burst
	}
	if c.RateLimit.RefillInterval <= 0 {
		c.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}
	if c.NATS.Subject == "" {
		c.NATS.Subject = def.NATS.Subject
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = def.LogLevel
	}

	c.AllowedOrigins = append([]string(nil), c.AllowedOrigins...)
	return c
}

// LoadFile overlays the TOML file at path onto c. Only keys present in the
// file replace the current values.
func (c Config) LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return c, errors.Wrapf(err, "config: failed to read %s", path)
	}

	var fc fileConfig
	dec := json.NewDecoder(toml.New(bytes.NewBuffer(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fc); err != nil {
		return c, errors.Wrapf(err, "config: failed to decode %s", path)
	}

	if fc.Port != nil {
		c.Port = *fc.Port
	}
	if fc.Bind != nil {
		c.BindHost = *fc.Bind
	}
	if fc.PollIntervalMS != nil {
		c.PollInterval = time.Duration(*fc.PollIntervalMS) * time.Millisecond
	}
	if fc.WriteTimeoutMS != nil {
		c.WriteTimeout = time.Duration(*fc.WriteTimeoutMS) * time.Millisecond
	}
	if fc.Console != nil {
		c.ConsoleAddr = *fc.Console
	}
	if fc.Metrics != nil {
		c.MetricsEnabled = *fc.Metrics
	}
	if fc.AllowedOrigins != nil {
		c.AllowedOrigins = fc.AllowedOrigins
	}
	if fc.MaxMessageSize != nil {
		c.MaxMessageSize = *fc.MaxMessageSize
	}
	if fc.LogLevel != nil {
		c.LogLevel = *fc.LogLevel
	}
	if fc.RateLimit.Burst != nil {
		c.RateLimit.Burst = *fc.RateLimit.Burst
	}
	if fc.RateLimit.RefillSeconds != nil {
		c.RateLimit.RefillInterval = time.Duration(*fc.RateLimit.RefillSeconds) * time.Second
	}
	if fc.NATS.URL != nil {
		c.NATS.URL = *fc.NATS.URL
	}
	if fc.NATS.Subject != nil {
		c.NATS.Subject = *fc.NATS.Subject
	}
	return c, nil
}

// FromEnv overlays LINECAST_* environment variables onto c. Values that do
// not parse are ignored.
func (c Config) FromEnv() Config {
	if v := os.Getenv("LINECAST_PORT"); v != "" {
		c.Port = parsePort(v, c.Port)
	}
	if v := os.Getenv("LINECAST_BIND"); v != "" {
		c.BindHost = v
	}
	if v := os.Getenv("LINECAST_POLL_INTERVAL"); v != "" {
		c.PollInterval = parseDuration(v, c.PollInterval)
	}
	if v := os.Getenv("LINECAST_WRITE_TIMEOUT"); v != "" {
		c.WriteTimeout = parseTimeout(v, c.WriteTimeout)
	}
	if v := os.Getenv("LINECAST_CONSOLE_ADDR"); v != "" {
		c.ConsoleAddr = v
	}
	if v := os.Getenv("LINECAST_METRICS"); v != "" {
		c.MetricsEnabled = isTrue(v)
	}
	if v := os.Getenv("LINECAST_ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = parseOrigins(v)
	}
	if v := os.Getenv("LINECAST_MAX_MESSAGE_SIZE"); v != "" {
		c.MaxMessageSize = parseInt64(v, c.MaxMessageSize)
	}
	if v := os.Getenv("LINECAST_RATE_LIMIT_BURST"); v != "" {
		c.RateLimit.Burst = int(parseInt64(v, int64(c.RateLimit.Burst)))
	}
	if v := os.Getenv("LINECAST_RATE_LIMIT_REFILL_INTERVAL"); v != "" {
		c.RateLimit.RefillInterval = parseDuration(v, c.RateLimit.RefillInterval)
	}
	if v := os.Getenv("LINECAST_NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("LINECAST_NATS_SUBJECT"); v != "" {
		c.NATS.Subject = v
	}
	if v := os.Getenv("LINECAST_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	return c
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parsePort(value string, defaultValue int) int {
	if port, err := strconv.Atoi(value); err == nil && port >= 0 && port <= 65535 {
		return port
	}
	return defaultValue
}

func parseInt64(value string, defaultValue int64) int64 {
	if n, err := strconv.ParseInt(value, 10, 64); err == nil && n > 0 {
		return n
	}
	return defaultValue
}

// parseDuration accepts Go duration strings and bare seconds.
func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

// parseTimeout is parseDuration that also accepts zero, meaning no deadline.
func parseTimeout(value string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d == 0 {
		return 0
	}
	return parseDuration(value, defaultValue)
}

func isTrue(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
