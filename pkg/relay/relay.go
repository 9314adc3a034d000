// Package relay forwards transcript lines to the companion web application.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"example.com/voice_pipeline/pkg/metrics"
)

const (
	// DefaultBaseURL is used when FASTHTML_APP_URL is not configured.
	DefaultBaseURL = "http://localhost:5001"

	transcriptPath = "/api/transcript"
	requestTimeout = 10 * time.Second
)

// Relay posts speaker/text pairs to the web app. Delivery is strictly best
// effort: one attempt, bounded timeout, every failure swallowed. Lines are
// never buffered and concurrent posts carry no ordering guarantee.
type Relay struct {
	baseURL string
	client  *http.Client
}

// New creates a relay for the given base URL. An empty URL falls back to the
// local default.
func New(baseURL string) *Relay {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Relay{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: requestTimeout},
	}
}

type transcriptLine struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Post delivers one transcript line. The caller never observes an error:
// network failures, timeouts, and non-success statuses are logged and
// dropped so the audio session is never stalled by the relay.
func (r *Relay) Post(ctx context.Context, speaker, text string) {
	body, err := json.Marshal(transcriptLine{Speaker: speaker, Text: text})
	if err != nil {
		log.Warn().Err(err).Msg("transcript marshal failed")
		metrics.TranscriptRelays.WithLabelValues("error").Inc()
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+transcriptPath, bytes.NewReader(body))
	if err != nil {
		log.Warn().Err(err).Msg("transcript request build failed")
		metrics.TranscriptRelays.WithLabelValues("error").Inc()
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("speaker", speaker).Msg("transcript relay failed")
		metrics.TranscriptRelays.WithLabelValues("error").Inc()
		return
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= http.StatusMultipleChoices {
		log.Warn().
			Int("status", resp.StatusCode).
			Str("body", string(respBody)).
			Msg("transcript relay rejected")
		metrics.TranscriptRelays.WithLabelValues("rejected").Inc()
		return
	}

	log.Debug().
		Int("status", resp.StatusCode).
		Str("speaker", speaker).
		Str("body", string(respBody)).
		Msg("transcript relayed")
	metrics.TranscriptRelays.WithLabelValues("ok").Inc()
}
