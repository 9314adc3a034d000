package elevenlabs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesize(t *testing.T) {
	var gotPath, gotFormat, gotKey string
	var gotBody ttsRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFormat = r.URL.Query().Get("output_format")
		gotKey = r.Header.Get("xi-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte{0x01, 0x02, 0x03, 0x04})
	}))
	defer server.Close()

	client := NewClient(Config{
		APIKey:  "test-key",
		VoiceID: "voice-123",
		APIURL:  server.URL,
	})

	pcm, err := client.Synthesize(context.Background(), "hello there")
	require.NoError(t, err)

	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, pcm)
	assert.Equal(t, "/text-to-speech/voice-123", gotPath)
	assert.Equal(t, "pcm_22050", gotFormat)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "hello there", gotBody.Text)
	assert.Equal(t, "eleven_turbo_v2_5", gotBody.ModelID)
}

func TestSynthesizeAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", APIURL: server.URL})

	_, err := client.Synthesize(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestSynthesizeStreamDeliversChunks(t *testing.T) {
	payload := make([]byte, 10000)
	for i := range payload {
		payload[i] = byte(i)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/text-to-speech/21m00Tcm4TlvDq8ikWAM/stream", r.URL.Path)
		w.Write(payload)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test-key", APIURL: server.URL})

	var received []byte
	err := client.SynthesizeStream(context.Background(), "stream me", func(chunk []byte) {
		received = append(received, chunk...)
	})
	require.NoError(t, err)
	assert.Equal(t, payload, received)
}

func TestDefaults(t *testing.T) {
	client := NewClient(Config{APIKey: "k"})
	assert.Equal(t, "21m00Tcm4TlvDq8ikWAM", client.voiceID)
	assert.Equal(t, "eleven_turbo_v2_5", client.model)
	assert.Equal(t, defaultAPIURL, client.apiURL)
}
