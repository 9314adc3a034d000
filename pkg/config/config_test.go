package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FASTHTML_APP_URL", "")
	t.Setenv("RESTACK_ENGINE_API_ADDRESS", "")

	cfg := Load()

	assert.Equal(t, "http://localhost:5001", cfg.FastHTMLAppURL)
	assert.Equal(t, 8081, cfg.HealthPort)
	assert.Empty(t, cfg.EngineAPIAddress)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("LIVEKIT_URL", "wss://lk.example.com")
	t.Setenv("DEEPGRAM_API_KEY", "dg-key")
	t.Setenv("RESTACK_ENGINE_API_ADDRESS", "api.example.com")
	t.Setenv("FASTHTML_APP_URL", "http://web:5001")

	cfg := Load()

	assert.Equal(t, "wss://lk.example.com", cfg.LiveKitURL)
	assert.Equal(t, "dg-key", cfg.DeepgramAPIKey)
	assert.Equal(t, "api.example.com", cfg.EngineAPIAddress)
	assert.Equal(t, "http://web:5001", cfg.FastHTMLAppURL)
}

func TestValidateEnvsReportsMissing(t *testing.T) {
	for key := range requiredEnvs {
		t.Setenv(key, "")
	}
	t.Setenv("LIVEKIT_URL", "wss://lk.example.com")

	missing := ValidateEnvs()

	require.Len(t, missing, len(requiredEnvs)-1)
	assert.NotContains(t, missing, "LIVEKIT_URL")
	assert.Contains(t, missing, "DEEPGRAM_API_KEY")
}

func TestValidateEnvsAllPresent(t *testing.T) {
	for key := range requiredEnvs {
		t.Setenv(key, "value")
	}

	assert.Empty(t, ValidateEnvs())
}
