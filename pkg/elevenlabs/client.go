// Package elevenlabs implements text-to-speech over the ElevenLabs HTTP API.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultAPIURL = "https://api.elevenlabs.io/v1"

// SampleRate is the PCM rate requested from the service (pcm_22050).
const SampleRate = 22050

// Client is an ElevenLabs TTS client.
type Client struct {
	apiKey  string
	voiceID string
	model   string
	apiURL  string
	client  *http.Client
	log     zerolog.Logger
}

// Config holds ElevenLabs client configuration.
type Config struct {
	APIKey  string
	VoiceID string // e.g. "21m00Tcm4TlvDq8ikWAM" (Rachel)
	Model   string // e.g. "eleven_turbo_v2_5"
	// APIURL overrides the service endpoint, for tests.
	APIURL string
}

// AudioCallback is called with PCM audio chunks.
type AudioCallback func(pcmData []byte)

// NewClient creates a new ElevenLabs client.
func NewClient(config Config) *Client {
	if config.VoiceID == "" {
		config.VoiceID = "21m00Tcm4TlvDq8ikWAM" // Rachel
	}
	if config.Model == "" {
		config.Model = "eleven_turbo_v2_5"
	}
	if config.APIURL == "" {
		config.APIURL = defaultAPIURL
	}

	return &Client{
		apiKey:  config.APIKey,
		voiceID: config.VoiceID,
		model:   config.Model,
		apiURL:  strings.TrimSuffix(config.APIURL, "/"),
		client:  &http.Client{},
		log:     log.With().Str("component", "elevenlabs").Logger(),
	}
}

// ttsRequest is the request body for text-to-speech.
type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed"`
}

func (c *Client) newRequest(ctx context.Context, url, text string) (*http.Request, error) {
	reqBody := ttsRequest{
		Text:    text,
		ModelID: c.model,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Speed:           1.0,
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)
	return req, nil
}

// Synthesize converts text to speech and returns PCM audio
// (signed 16-bit LE, 22050Hz mono).
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	// output_format must be a query parameter, not in the body.
	url := fmt.Sprintf("%s/text-to-speech/%s?output_format=pcm_22050", c.apiURL, c.voiceID)

	req, err := c.newRequest(ctx, url, text)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	pcmData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debug().Int("pcm_bytes", len(pcmData)).Msg("synthesized speech")
	return pcmData, nil
}

// SynthesizeStream converts text to speech and streams PCM audio chunks to
// the callback as they arrive.
func (c *Client) SynthesizeStream(ctx context.Context, text string, callback AudioCallback) error {
	url := fmt.Sprintf("%s/text-to-speech/%s/stream?output_format=pcm_22050", c.apiURL, c.voiceID)

	req, err := c.newRequest(ctx, url, text)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			callback(chunk)
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("read error: %w", err)
		}
	}

	return nil
}
