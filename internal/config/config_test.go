package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcity/signalctl/internal/config"
	"github.com/smartcity/signalctl/internal/domain"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "JOURNAL_BACKEND", "SPEED_UNIT", "GREEN_WAVE_DURATION",
		"PEAK_GREEN_DURATION", "OFFPEAK_GREEN_DURATION", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}

	cfg, err := config.FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, config.JournalMemory, cfg.JournalBackend)
	assert.Equal(t, domain.SpeedPerSecond, cfg.SpeedUnit)
	assert.Equal(t, 30, cfg.GreenWaveDuration)
	assert.Equal(t, 45, cfg.PeakGreenDuration)
	assert.Equal(t, 30, cfg.OffPeakGreenDuration)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("JOURNAL_BACKEND", "Mongo")
	t.Setenv("SPEED_UNIT", "kmh")
	t.Setenv("PEAK_GREEN_DURATION", "50")

	cfg, err := config.FromEnv()
	require.NoError(t, err)
	assert.Equal(t, config.JournalMongo, cfg.JournalBackend)
	assert.Equal(t, domain.SpeedKmh, cfg.SpeedUnit)
	assert.Equal(t, 50, cfg.PeakGreenDuration)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"JOURNAL_BACKEND":     "redis",
		"SPEED_UNIT":          "knots",
		"GREEN_WAVE_DURATION": "abc",
		"PEAK_GREEN_DURATION": "-1",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := config.FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestParseSeed(t *testing.T) {
	seed, err := config.ParseSeed([]byte(`
signals:
  - id: J1-N
    x: 0
    y: 10
    phase: green
    duration: 40
  - id: J1-S
    x: 0
    y: -10
    confined: true
    online: false
incidents:
  - type: ACCIDENT
    x: 5
    y: 5
    severity: 3
`))
	require.NoError(t, err)
	require.Len(t, seed.Signals, 2)
	assert.Equal(t, "green", seed.Signals[0].Phase)
	assert.Nil(t, seed.Signals[0].Online)
	require.NotNil(t, seed.Signals[1].Online)
	assert.False(t, *seed.Signals[1].Online)
	assert.True(t, seed.Signals[1].Confined)
	require.Len(t, seed.Incidents, 1)
	assert.Equal(t, 3, seed.Incidents[0].Severity)
}

func TestParseSeedStrict(t *testing.T) {
	_, err := config.ParseSeed([]byte("signals:\n  - id: A\n    colour: red\n"))
	assert.Error(t, err)
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("signals:\n  - id: A\n    x: 1\n    y: 2\n"), 0o600))

	seed, err := config.LoadSeed(path)
	require.NoError(t, err)
	assert.Equal(t, "A", seed.Signals[0].ID)

	_, err = config.LoadSeed(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
