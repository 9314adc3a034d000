// Package deepgram implements streaming speech-to-text over Deepgram's
// real-time WebSocket API.
package deepgram

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"example.com/voice_pipeline/pkg/stt"
)

const defaultWSURL = "wss://api.deepgram.com/v1/listen"

// Client is a Deepgram real-time STT client.
type Client struct {
	apiKey         string
	wsURL          string
	callback       stt.TranscriptCallback
	utteranceEndCb stt.UtteranceEndCallback
	sampleRate     int
	channels       int
	utteranceEndMs int
	model          string

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	done      chan struct{}

	log zerolog.Logger
}

// Config holds Deepgram connection settings.
type Config struct {
	APIKey         string
	SampleRate     int    // e.g. 48000
	Channels       int    // 1 or 2
	UtteranceEndMs int    // silence before utterance end (default 1000)
	Model          string // default "nova-2"
	// WSURL overrides the service endpoint, for tests.
	WSURL string
}

// messageType picks apart Deepgram's message envelope.
type messageType struct {
	Type string `json:"type"`
}

// transcriptResponse represents Deepgram's transcript message.
type transcriptResponse struct {
	Type    string `json:"type"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
	IsFinal bool `json:"is_final"`
}

// NewClient creates a new Deepgram client.
func NewClient(config Config) *Client {
	if config.SampleRate == 0 {
		config.SampleRate = 48000
	}
	if config.Channels == 0 {
		config.Channels = 1
	}
	if config.UtteranceEndMs == 0 {
		config.UtteranceEndMs = 1000
	}
	if config.Model == "" {
		config.Model = "nova-2"
	}
	if config.WSURL == "" {
		config.WSURL = defaultWSURL
	}

	return &Client{
		apiKey:         config.APIKey,
		wsURL:          config.WSURL,
		sampleRate:     config.SampleRate,
		channels:       config.Channels,
		utteranceEndMs: config.UtteranceEndMs,
		model:          config.Model,
		done:           make(chan struct{}),
		log:            log.With().Str("component", "deepgram").Logger(),
	}
}

// Name identifies the provider.
func (c *Client) Name() string { return "deepgram" }

// OnTranscript sets the callback for transcriptions.
func (c *Client) OnTranscript(callback stt.TranscriptCallback) {
	c.callback = callback
}

// OnUtteranceEnd sets the callback for utterance boundaries.
func (c *Client) OnUtteranceEnd(callback stt.UtteranceEndCallback) {
	c.utteranceEndCb = callback
}

// Connect establishes the WebSocket connection to Deepgram.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	url := fmt.Sprintf("%s?encoding=linear16&sample_rate=%d&channels=%d&model=%s&punctuate=true&interim_results=true&utterance_end_ms=%d",
		c.wsURL, c.sampleRate, c.channels, c.model, c.utteranceEndMs)

	header := map[string][]string{
		"Authorization": {"Token " + c.apiKey},
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(url, header)
	if err != nil {
		return fmt.Errorf("deepgram connection failed: %w", err)
	}

	c.conn = conn
	c.connected = true
	c.done = make(chan struct{})

	go c.readResponses()

	c.log.Info().Int("sample_rate", c.sampleRate).Str("model", c.model).Msg("connected to speech-to-text service")
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

		var msgType messageType
		if err := json.Unmarshal(message, &msgType); err != nil {
			continue
		}

		switch msgType.Type {
		case "UtteranceEnd":
			c.log.Debug().Msg("utterance end detected")
			if c.utteranceEndCb != nil {
				c.utteranceEndCb()
			}

		case "Results":
			var resp transcriptResponse
			if err := json.Unmarshal(message, &resp); err != nil {
				continue
			}
			if len(resp.Channel.Alternatives) == 0 {
				continue
			}
			transcript := resp.Channel.Alternatives[0].Transcript
			if transcript != "" && c.callback != nil {
				c.callback(transcript, resp.IsFinal)
			}
		}
	}
}

// SendAudio sends PCM audio to Deepgram.
func (c *Client) SendAudio(pcmData []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.conn == nil {
		return fmt.Errorf("not connected")
	}

	return c.conn.WriteMessage(websocket.BinaryMessage, pcmData)
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
		_ = c.conn.WriteMessage(websocket.TextMessage, []byte(`{"type": "CloseStream"}`))
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
