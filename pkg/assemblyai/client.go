// Package assemblyai implements streaming speech-to-text over AssemblyAI's
// Universal Streaming API. It is the alternate STT provider, selected when
// an AssemblyAI key is configured.
package assemblyai

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"example.com/voice_pipeline/pkg/audio"
	"example.com/voice_pipeline/pkg/stt"
)

const defaultWSURL = "wss://streaming.assemblyai.com/v3/ws"

// The service wants chunks between 50ms and 1000ms; 100ms at 16kHz mono PCM16.
const minAudioBytes = 3200

// targetSampleRate is what Universal Streaming expects on the wire.
const targetSampleRate = 16000

// Client is an AssemblyAI Universal Streaming STT client.
type Client struct {
	apiKey         string
	wsURL          string
	callback       stt.TranscriptCallback
	utteranceEndCb stt.UtteranceEndCallback
	sampleRate     int
	channels       int

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	done      chan struct{}

	// lastTranscript tracks the immutable turn transcript so only new text
	// is surfaced.
	lastTranscript string

	// audioBuffer accumulates resampled PCM until a sendable chunk exists.
	audioBuffer []byte

	log zerolog.Logger
}

// Config holds AssemblyAI connection settings.
type Config struct {
	APIKey     string
	SampleRate int // input rate, resampled to 16kHz on send
	Channels   int // 1 or 2; stereo is downmixed
	// WSURL overrides the service endpoint, for tests.
	WSURL string
}

// sessionBegins is sent by the service when the session starts.
type sessionBegins struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// turnMessage is the Universal Streaming transcript response.
type turnMessage struct {
	Type                string  `json:"type"`
	Transcript          string  `json:"transcript"`
	EndOfTurn           bool    `json:"end_of_turn"`
	EndOfTurnConfidence float64 `json:"end_of_turn_confidence"`
}

// NewClient creates a new AssemblyAI client.
func NewClient(config Config) *Client {
	if config.SampleRate == 0 {
		config.SampleRate = 48000
	}
	if config.Channels == 0 {
		config.Channels = 1
	}
	if config.WSURL == "" {
		config.WSURL = defaultWSURL
	}

	return &Client{
		apiKey:      config.APIKey,
		wsURL:       config.WSURL,
		sampleRate:  config.SampleRate,
		channels:    config.Channels,
		done:        make(chan struct{}),
		audioBuffer: make([]byte, 0, minAudioBytes*2),
		log:         log.With().Str("component", "assemblyai").Logger(),
	}
}

// Name identifies the provider.
func (c *Client) Name() string { return "assemblyai" }

// OnTranscript sets the callback for transcriptions.
func (c *Client) OnTranscript(callback stt.TranscriptCallback) {
	c.callback = callback
}

// OnUtteranceEnd sets the callback for utterance boundaries.
func (c *Client) OnUtteranceEnd(callback stt.UtteranceEndCallback) {
	c.utteranceEndCb = callback
}

// Connect establishes the WebSocket connection to AssemblyAI.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	// format_turns=true is required to receive Turn messages.
	url := fmt.Sprintf("%s?sample_rate=%d&format_turns=true", c.wsURL, targetSampleRate)

	// AssemblyAI takes the bare key, no scheme prefix.
	header := map[string][]string{
		"Authorization": {c.apiKey},
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(url, header)
	if err != nil {
		return fmt.Errorf("assemblyai connection failed: %w", err)
	}

	c.conn = conn
	c.connected = true
	c.done = make(chan struct{})
	c.lastTranscript = ""
	c.audioBuffer = c.audioBuffer[:0]

	go c.readResponses()

	c.log.Info().Msg("connected to speech-to-text service")
	return nil
}

func (c *Client) readResponses() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return
			}
			c.log.Warn().Err(err).Msg("read error")
			return
		}

		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(message, &envelope); err != nil {
			continue
		}

		switch envelope.Type {
		case "SessionBegins":
			var session sessionBegins
			if err := json.Unmarshal(message, &session); err == nil {
				c.log.Info().Str("session_id", session.SessionID).Msg("session started")
			}

		case "Turn":
			var turn turnMessage
			if err := json.Unmarshal(message, &turn); err != nil {
				continue
			}
			c.handleTurn(turn)

		case "SessionTerminated":
			c.log.Info().Msg("session terminated")
			return

		case "Error":
			c.log.Warn().RawJSON("message", message).Msg("service error")
		}
	}
}

// handleTurn surfaces only the new suffix of the immutable turn transcript
// and maps end-of-turn onto the utterance boundary callback.
func (c *Client) handleTurn(turn turnMessage) {
	if turn.Transcript != "" && c.callback != nil && turn.Transcript != c.lastTranscript {
		newText := turn.Transcript
		if len(c.lastTranscript) > 0 && len(turn.Transcript) > len(c.lastTranscript) {
			newText = turn.Transcript[len(c.lastTranscript):]
		}
		c.lastTranscript = turn.Transcript

		// Universal Streaming transcripts are immutable, so always final.
		c.callback(newText, true)
	}

	if turn.EndOfTurn {
		c.log.Debug().Float64("confidence", turn.EndOfTurnConfidence).Msg("end of turn")
		if c.utteranceEndCb != nil {
			c.utteranceEndCb()
		}
		c.lastTranscript = ""
	}
}

// SendAudio accepts PCM16 at the configured rate/channels, downmixes and
// resamples it to 16kHz mono, and ships it in chunks of at least 100ms.
func (c *Client) SendAudio(pcmData []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.conn == nil {
		return fmt.Errorf("not connected")
	}

	samples := audio.BytesToSamples(pcmData)
	if c.channels == 2 {
		samples = audio.StereoToMono(samples)
	}
	resampled := audio.ResampleSamples(samples, c.sampleRate, targetSampleRate)

	c.audioBuffer = append(c.audioBuffer, audio.SamplesToBytes(resampled)...)

	if len(c.audioBuffer) >= minAudioBytes {
		err := c.conn.WriteMessage(websocket.BinaryMessage, c.audioBuffer)
		c.audioBuffer = c.audioBuffer[:0]
		return err
	}
	return nil
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}

	close(c.done)

	if c.conn != nil {
		_ = c.conn.WriteMessage(websocket.TextMessage, []byte(`{"terminate_session": true}`))
		_ = c.conn.Close()
	}

	c.connected = false
	c.log.Info().Msg("disconnected")
	return nil
}

// IsConnected returns connection status.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
