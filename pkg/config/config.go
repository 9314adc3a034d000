// Package config loads the worker configuration from the environment.
package config

import (
	"os"
	"sort"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// requiredEnvs maps each required environment variable to a short description
// used in the startup warning. Absence is never fatal: the worker still
// starts and the affected feature degrades at runtime.
var requiredEnvs = map[string]string{
	"LIVEKIT_URL":        "LiveKit server URL",
	"LIVEKIT_API_KEY":    "API key for LiveKit",
	"LIVEKIT_API_SECRET": "API secret for LiveKit",
	"DEEPGRAM_API_KEY":   "API key for Deepgram (used for STT)",
	"ELEVEN_API_KEY":     "API key for ElevenLabs (used for TTS)",
}

// Config holds every setting the worker reads from its environment.
type Config struct {
	LiveKitURL       string
	LiveKitAPIKey    string
	LiveKitAPISecret string

	DeepgramAPIKey   string
	AssemblyAIAPIKey string

	ElevenAPIKey  string
	ElevenVoiceID string
	ElevenModelID string

	// EngineAPIAddress drives the conversational-agent backend URL. Empty
	// means the local default backend.
	EngineAPIAddress string

	// FastHTMLAppURL is the base URL of the companion web app receiving
	// transcript lines.
	FastHTMLAppURL string

	HealthPort int
}

// Load reads .env.local (best effort, unset variables only), then the
// process environment.
func Load() *Config {
	_ = godotenv.Load(".env.local")

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("FASTHTML_APP_URL", "http://localhost:5001")
	v.SetDefault("HEALTH_PORT", 8081)

	return &Config{
		LiveKitURL:       v.GetString("LIVEKIT_URL"),
		LiveKitAPIKey:    v.GetString("LIVEKIT_API_KEY"),
		LiveKitAPISecret: v.GetString("LIVEKIT_API_SECRET"),
		DeepgramAPIKey:   v.GetString("DEEPGRAM_API_KEY"),
		AssemblyAIAPIKey: v.GetString("ASSEMBLYAI_API_KEY"),
		ElevenAPIKey:     v.GetString("ELEVEN_API_KEY"),
		ElevenVoiceID:    v.GetString("ELEVEN_VOICE_ID"),
		ElevenModelID:    v.GetString("ELEVEN_MODEL_ID"),
		EngineAPIAddress: v.GetString("RESTACK_ENGINE_API_ADDRESS"),
		FastHTMLAppURL:   v.GetString("FASTHTML_APP_URL"),
		HealthPort:       v.GetInt("HEALTH_PORT"),
	}
}

// ValidateEnvs warns about missing required environment variables. It never
// fails; a worker with missing credentials runs in a degraded mode.
func ValidateEnvs() []string {
	keys := make([]string, 0, len(requiredEnvs))
	for key := range requiredEnvs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var missing []string
	for _, key := range keys {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
			log.Warn().
				Str("variable", key).
				Str("purpose", requiredEnvs[key]).
				Msg("environment variable is not set")
		}
	}
	return missing
}
