package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, 10, cfg.Batch.Size)
	assert.Equal(t, 1000, cfg.Batch.DelayMS)
	assert.Equal(t, 70, cfg.Interpret.ConfidenceThreshold)
	assert.Equal(t, 3, cfg.Extract.ColumnCount)
	assert.Equal(t, 20000, cfg.Extract.MaxDocChars)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("VPAT_AI_PROVIDER", "gemini")
	t.Setenv("VPAT_BATCH_SIZE", "0")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.AI.Provider)
	assert.Equal(t, 0, cfg.Batch.Size)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Interpret: InterpretConfig{ConfidenceThreshold: 70},
			Extract:   ExtractConfig{ColumnCount: 3},
			Batch:     BatchConfig{Size: 10, DelayMS: 1000},
		}
	}

	assert.NoError(t, base().Validate())

	cfg := base()
	cfg.Interpret.ConfidenceThreshold = 101
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Interpret.ConfidenceThreshold = -1
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Extract.ColumnCount = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Batch.Size = -5
	assert.Error(t, cfg.Validate())
}
