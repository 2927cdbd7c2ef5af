package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	t.Parallel()
	cfg := EmptyTuningConfig()

	assert.Equal(t, 30.0, cfg.GetPublishRateHz())
	assert.Equal(t, 100, cfg.GetLookaheadCount())
	assert.Equal(t, 0.5, cfg.GetMaxDecel())
	assert.Equal(t, 4, cfg.GetStopLineMargin())
	assert.Equal(t, 1.0, cfg.GetCreepSpeed())
	assert.Equal(t, time.Second, cfg.GetRecordInterval())
	assert.Equal(t, "mps", cfg.GetUnits())
}

func TestLoadTuningConfig(t *testing.T) {
	t.Parallel()

	t.Run("partial config overrides only named fields", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, `{"lookahead_count": 50, "units": "mph"}`)

		cfg, err := LoadTuningConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 50, cfg.GetLookaheadCount())
		assert.Equal(t, "mph", cfg.GetUnits())
		assert.Equal(t, 30.0, cfg.GetPublishRateHz())
	})

	t.Run("full config", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, `{
			"publish_rate_hz": 10,
			"lookahead_count": 20,
			"max_decel": 1.5,
			"stop_line_margin": 2,
			"creep_speed": 0.5,
			"record_interval": "250ms",
			"units": "kph"
		}`)

		cfg, err := LoadTuningConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 10.0, cfg.GetPublishRateHz())
		assert.Equal(t, 20, cfg.GetLookaheadCount())
		assert.Equal(t, 1.5, cfg.GetMaxDecel())
		assert.Equal(t, 2, cfg.GetStopLineMargin())
		assert.Equal(t, 0.5, cfg.GetCreepSpeed())
		assert.Equal(t, 250*time.Millisecond, cfg.GetRecordInterval())
	})

	t.Run("rejects non-json extension", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "tuning.yaml")
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
		_, err := LoadTuningConfig(path)
		assert.Error(t, err)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		t.Parallel()
		_, err := LoadTuningConfig(writeConfig(t, `{oops`))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		content string
	}{
		{"zero publish rate", `{"publish_rate_hz": 0}`},
		{"negative lookahead", `{"lookahead_count": -5}`},
		{"zero lookahead", `{"lookahead_count": 0}`},
		{"negative max decel", `{"max_decel": -0.5}`},
		{"negative margin", `{"stop_line_margin": -1}`},
		{"bad record interval", `{"record_interval": "fast"}`},
		{"bad units", `{"units": "furlongs"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadTuningConfig(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}
