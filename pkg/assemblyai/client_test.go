package assemblyai

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService upgrades connections and replays canned JSON messages.
func fakeService(t *testing.T, messages []string, gotAudio chan []byte) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "16000", r.URL.Query().Get("sample_rate"))
		assert.Equal(t, "key", r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		for _, msg := range messages {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
		}

		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind == websocket.BinaryMessage && gotAudio != nil {
				gotAudio <- data
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestTurnCallbacks(t *testing.T) {
	srv := fakeService(t, []string{
		`{"type":"SessionBegins","session_id":"sess-1"}`,
		`{"type":"Turn","transcript":"hello","end_of_turn":false}`,
		`{"type":"Turn","transcript":"hello world","end_of_turn":false}`,
		`{"type":"Turn","transcript":"hello world","end_of_turn":true,"end_of_turn_confidence":0.9}`,
	}, nil)
	defer srv.Close()

	c := NewClient(Config{APIKey: "key", WSURL: wsURL(srv)})

	var mu sync.Mutex
	var texts []string
	ended := make(chan struct{})

	c.OnTranscript(func(text string, isFinal bool) {
		assert.True(t, isFinal)
		mu.Lock()
		texts = append(texts, text)
		mu.Unlock()
	})
	c.OnUtteranceEnd(func() { close(ended) })

	require.NoError(t, c.Connect())
	defer c.Close()

	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("end of turn not delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	// Only the new suffix of the growing turn transcript is surfaced.
	assert.Equal(t, []string{"hello", " world"}, texts)
}

func TestSendAudioBuffersUntilChunkSize(t *testing.T) {
	gotAudio := make(chan []byte, 4)
	srv := fakeService(t, nil, gotAudio)
	defer srv.Close()

	c := NewClient(Config{APIKey: "key", SampleRate: 16000, Channels: 1, WSURL: wsURL(srv)})
	require.NoError(t, c.Connect())
	defer c.Close()

	small := make([]byte, 1000)
	require.NoError(t, c.SendAudio(small))

	select {
	case <-gotAudio:
		t.Fatal("audio flushed before chunk threshold")
	case <-time.After(100 * time.Millisecond):
	}

	// Crossing minAudioBytes flushes the buffer.
	require.NoError(t, c.SendAudio(make([]byte, minAudioBytes)))

	select {
	case chunk := <-gotAudio:
		assert.GreaterOrEqual(t, len(chunk), minAudioBytes)
	case <-time.After(2 * time.Second):
		t.Fatal("audio not received")
	}
}

func TestSendAudioNotConnected(t *testing.T) {
	c := NewClient(Config{APIKey: "key"})
	assert.Error(t, c.SendAudio([]byte{0, 0}))
	assert.False(t, c.IsConnected())
}

func TestCloseSendsTerminate(t *testing.T) {
	terminated := make(chan struct{})
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg map[string]any
			if json.Unmarshal(data, &msg) == nil && msg["terminate_session"] == true {
				close(terminated)
				return
			}
		}
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "key", WSURL: wsURL(srv)})
	require.NoError(t, c.Connect())
	require.NoError(t, c.Close())

	select {
	case <-terminated:
	case <-time.After(2 * time.Second):
		t.Fatal("terminate message not received")
	}
}
