package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/thatguy/facility-reports/internal/facility"
)

// DefaultEndpoint is the web app the report sheet is served from.
const DefaultEndpoint = "https://script.google.com/macros/s/AKfycbwX1WpKPIgkr-TtbTDK3c8sIA0Uf0eEbUe6QTP09Z7g89L9WlvKay104NCa71u4oYyZ/exec"

// Config holds application configuration loaded from environment variables.
// Precedence: built-in defaults, then FACILITY_PROFILE (YAML), then env.
// Optional: TELEGRAM_TOKEN (bot disabled when empty), FACILITIES_ENDPOINT, FACILITY_VARIANT,
// FALLBACK_LABEL, DB_PATH, UPLOAD_DIR, HTTP_ADDR, METRICS_ADDR, MIRROR_ENABLED, MAX_UPLOAD_MB, LOG_LEVEL

type Config struct {
	Endpoint      string
	FallbackLabel string
	Facilities    map[string]string
	ProfilePath   string

	TelegramToken string
	DBPath        string
	UploadDir     string
	HTTPAddr      string
	MetricsAddr   string
	MirrorEnabled bool
	MaxUploadMB   int
	LogLevel      string
}

func Load() (Config, error) {
	_ = godotenv.Load() // ignore error if .env doesn't exist
	return FromEnv(os.Getenv)
}

// FromEnv builds the configuration from a getenv-like lookup.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Endpoint:    DefaultEndpoint,
		Facilities:  facility.DefaultNames(),
		DBPath:      "/data/reports.db",
		UploadDir:   "/data/uploads",
		HTTPAddr:    ":8080",
		MetricsAddr: ":9090",
		MaxUploadMB: 16,
		LogLevel:    "INFO",
	}

	variant := facility.VariantFacility
	label := ""

	if path := strings.TrimSpace(getenv("FACILITY_PROFILE")); path != "" {
		p, err := facility.LoadProfile(path)
		if err != nil {
			return Config{}, err
		}
		cfg.ProfilePath = path
		if p.Endpoint != "" {
			cfg.Endpoint = p.Endpoint
		}
		if len(p.Facilities) > 0 {
			cfg.Facilities = p.Facilities
		}
		variant, _ = facility.ParseVariant(p.Variant)
		label = p.FallbackLabel
	}

	if v := strings.TrimSpace(getenv("FACILITY_VARIANT")); v != "" {
		parsed, err := facility.ParseVariant(v)
		if err != nil {
			return Config{}, err
		}
		variant = parsed
		label = ""
	}
	if v := getenv("FALLBACK_LABEL"); v != "" {
		label = v
	}
	if label == "" {
		label = variant.Label()
	}
	cfg.FallbackLabel = label

	cfg.Endpoint = firstNonEmpty(strings.TrimSpace(getenv("FACILITIES_ENDPOINT")), cfg.Endpoint)
	cfg.TelegramToken = getenv("TELEGRAM_TOKEN")
	cfg.DBPath = firstNonEmpty(getenv("DB_PATH"), cfg.DBPath)
	cfg.UploadDir = firstNonEmpty(getenv("UPLOAD_DIR"), cfg.UploadDir)
	cfg.HTTPAddr = firstNonEmpty(getenv("HTTP_ADDR"), cfg.HTTPAddr)
	cfg.MetricsAddr = firstNonEmpty(getenv("METRICS_ADDR"), cfg.MetricsAddr)
	cfg.LogLevel = firstNonEmpty(getenv("LOG_LEVEL"), cfg.LogLevel)

	if s := strings.TrimSpace(getenv("MIRROR_ENABLED")); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Config{}, fmt.Errorf("invalid MIRROR_ENABLED %q: %w", s, err)
		}
		cfg.MirrorEnabled = b
	}

	if s := strings.TrimSpace(getenv("MAX_UPLOAD_MB")); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid MAX_UPLOAD_MB %q", s)
		}
		cfg.MaxUploadMB = n
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("FACILITIES_ENDPOINT must be an absolute http(s) URL, got %q", c.Endpoint)
	}
	if len(c.Facilities) == 0 {
		return errors.New("facility registry is empty")
	}
	if _, err := c.Registry(); err != nil {
		return err
	}
	return nil
}

// Registry builds the facility registry described by the configuration.
func (c Config) Registry() (*facility.Registry, error) {
	return facility.New(c.Facilities, c.FallbackLabel)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (c Config) String() string {
	// mask tokens for logs
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		if len(s) <= 6 {
			return "***"
		}
		return s[:3] + "***" + s[len(s)-3:]
	}
	return fmt.Sprintf("Config{Endpoint:%s, FallbackLabel:%s, Facilities:%d, Profile:%s, Telegram:%s, DB:%s, Uploads:%s, HTTP:%s, Metrics:%s, Mirror:%t, MaxUploadMB:%d, LogLevel:%s}",
		c.Endpoint, c.FallbackLabel, len(c.Facilities), c.ProfilePath, mask(c.TelegramToken), c.DBPath, c.UploadDir, c.HTTPAddr, c.MetricsAddr, c.MirrorEnabled, c.MaxUploadMB, c.LogLevel,
	)
}
