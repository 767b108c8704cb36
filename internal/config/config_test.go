package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thatguy/facility-reports/internal/facility"
)

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaults(t *testing.T) {
	cfg, err := FromEnv(envFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, DefaultEndpoint, cfg.Endpoint)
	assert.Equal(t, facility.LabelFacility, cfg.FallbackLabel)
	assert.Len(t, cfg.Facilities, 12)
	assert.Equal(t, "/data/reports.db", cfg.DBPath)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, 16, cfg.MaxUploadMB)
	assert.False(t, cfg.MirrorEnabled)

	reg, err := cfg.Registry()
	require.NoError(t, err)
	assert.Equal(t, "מתקן 99", reg.Resolve("99"))
}

func TestEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(envFrom(map[string]string{
		"FACILITIES_ENDPOINT": "https://example.org/exec",
		"FACILITY_VARIANT":    "apartment",
		"TELEGRAM_TOKEN":      "123456:ABCDEF",
		"DB_PATH":             "/tmp/r.db",
		"MIRROR_ENABLED":      "true",
		"MAX_UPLOAD_MB":       "4",
		"LOG_LEVEL":           "debug",
	}))
	require.NoError(t, err)

	assert.Equal(t, "https://example.org/exec", cfg.Endpoint)
	assert.Equal(t, facility.LabelApartment, cfg.FallbackLabel)
	assert.Equal(t, "/tmp/r.db", cfg.DBPath)
	assert.True(t, cfg.MirrorEnabled)
	assert.Equal(t, 4, cfg.MaxUploadMB)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestExplicitFallbackLabelWins(t *testing.T) {
	cfg, err := FromEnv(envFrom(map[string]string{
		"FACILITY_VARIANT": "apartment",
		"FALLBACK_LABEL":   "יחידה",
	}))
	require.NoError(t, err)
	assert.Equal(t, "יחידה", cfg.FallbackLabel)
}

func TestProfileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`endpoint: https://profile.example/exec
variant: apartment
facilities:
  "1": "רותם"
`), 0o600))

	cfg, err := FromEnv(envFrom(map[string]string{"FACILITY_PROFILE": path}))
	require.NoError(t, err)
	assert.Equal(t, "https://profile.example/exec", cfg.Endpoint)
	assert.Equal(t, facility.LabelApartment, cfg.FallbackLabel)
	assert.Equal(t, map[string]string{"1": "רותם"}, cfg.Facilities)
	assert.Equal(t, path, cfg.ProfilePath)

	cfg, err = FromEnv(envFrom(map[string]string{
		"FACILITY_PROFILE":    path,
		"FACILITIES_ENDPOINT": "https://env.example/exec",
		"FACILITY_VARIANT":    "facility",
	}))
	require.NoError(t, err)
	assert.Equal(t, "https://env.example/exec", cfg.Endpoint)
	assert.Equal(t, facility.LabelFacility, cfg.FallbackLabel)
}

func TestInvalidValues(t *testing.T) {
	tests := map[string]map[string]string{
		"relative endpoint": {"FACILITIES_ENDPOINT": "/exec"},
		"bad variant":       {"FACILITY_VARIANT": "castle"},
		"bad mirror flag":   {"MIRROR_ENABLED": "sometimes"},
		"bad upload size":   {"MAX_UPLOAD_MB": "0"},
		"missing profile":   {"FACILITY_PROFILE": "/nonexistent/profile.yaml"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnv(envFrom(env))
			assert.Error(t, err)
		})
	}
}

func TestStringMasksToken(t *testing.T) {
	cfg, err := FromEnv(envFrom(map[string]string{"TELEGRAM_TOKEN": "123456:SECRETTOKEN"}))
	require.NoError(t, err)

	s := cfg.String()
	assert.NotContains(t, s, "SECRETTOKEN")
	assert.Contains(t, s, "123***KEN")
}
