package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 4, cfg.Ingest.MaxConcurrentSources)
	assert.Equal(t, 0.5, cfg.Title.ConfidenceThreshold)
	assert.Equal(t, 0.88, cfg.Resolve.FuzzyThreshold)
	assert.Equal(t, 2.0, cfg.Infer.Existence.NegativeRatio)
	assert.Equal(t, 50, cfg.Infer.Headcount.TemplateMinCompanies)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("ATLAS_STORE_DRIVER", "postgres")
	t.Setenv("ATLAS_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestInitLogger_BadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	assert.Error(t, err)
}

func TestInitLogger_Console(t *testing.T) {
	err := InitLogger(LogConfig{Level: "warn", Format: "console"})
	assert.NoError(t, err)
}
