package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// production skips .env so tests only see what they set.
func setProduction(t *testing.T) {
	t.Helper()
	t.Setenv("GO_ENV", "production")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setProduction(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "default", cfg.Facility.ID)
	assert.Equal(t, time.UTC, cfg.Facility.Location)
	assert.Equal(t, 100, cfg.Facility.CapacityLimit)
	assert.InDelta(t, 0.8, cfg.Facility.WarnAt, 1e-9)
	assert.Equal(t, 150*time.Millisecond, cfg.ScanInterval)
	assert.Equal(t, 10*time.Second, cfg.CameraOpenTimeout)
	assert.Equal(t, []string{"native", "library"}, cfg.Decoders)
	assert.Equal(t, "postgres", cfg.DirectorySource)
	assert.Equal(t, "noop", cfg.EmailProvider)
}

func TestLoad_FromEnv(t *testing.T) {
	setProduction(t)
	t.Setenv("PORT", "9090")
	t.Setenv("FACILITY_ID", "downtown")
	t.Setenv("FACILITY_TZ", "Europe/Berlin")
	t.Setenv("CAPACITY_LIMIT", "80")
	t.Setenv("CAPACITY_WARN_AT", "0.9")
	t.Setenv("CAPACITY_ALERT_TO", "owner@gym.test, desk@gym.test ,")
	t.Setenv("SCAN_INTERVAL", "250ms")
	t.Setenv("DECODERS", "library")
	t.Setenv("DIRECTORY_SOURCE", "http")
	t.Setenv("DIRECTORY_URL", "http://members.internal")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000")
	t.Setenv("SES_INSECURE_SKIP_VERIFY", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "downtown", cfg.Facility.ID)
	assert.Equal(t, "Europe/Berlin", cfg.Facility.Location.String())
	assert.Equal(t, 80, cfg.Facility.CapacityLimit)
	assert.InDelta(t, 0.9, cfg.Facility.WarnAt, 1e-9)
	assert.Equal(t, []string{"owner@gym.test", "desk@gym.test"}, cfg.Facility.AlertTo)
	assert.Equal(t, 250*time.Millisecond, cfg.ScanInterval)
	assert.Equal(t, []string{"library"}, cfg.Decoders)
	assert.Equal(t, "http://members.internal", cfg.DirectoryURL)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	assert.True(t, cfg.SESInsecureSkipVerify)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"non numeric limit", "CAPACITY_LIMIT", "lots"},
		{"zero limit", "CAPACITY_LIMIT", "0"},
		{"warn above one", "CAPACITY_WARN_AT", "1.5"},
		{"bad interval", "SCAN_INTERVAL", "fast"},
		{"bad timezone", "FACILITY_TZ", "Mars/Olympus"},
		{"http directory without url", "DIRECTORY_SOURCE", "http"},
		{"unknown directory", "DIRECTORY_SOURCE", "ldap"},
		{"bad bool", "SES_INSECURE_SKIP_VERIFY", "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setProduction(t)
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("GO_ENV", "production")
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_FacilitiesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facilities.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
facilities:
  downtown:
    capacity_limit: 40
    timezone: America/New_York
    alert_to:
      - manager@gym.test
  uptown:
    capacity_limit: 200
`), 0o600))

	setProduction(t)
	t.Setenv("FACILITY_ID", "downtown")
	t.Setenv("CAPACITY_WARN_AT", "0.75")
	t.Setenv("FACILITIES_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Facility.CapacityLimit)
	assert.InDelta(t, 0.75, cfg.Facility.WarnAt, 1e-9)
	assert.Equal(t, "America/New_York", cfg.Facility.Location.String())
	assert.Equal(t, []string{"manager@gym.test"}, cfg.Facility.AlertTo)
}

func TestLoadFacilities_Errors(t *testing.T) {
	_, err := LoadFacilities(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("facilities: [::"), 0o600))
	_, err = LoadFacilities(path)
	require.Error(t, err)
}
