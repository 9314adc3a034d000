package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseHandler(t *testing.T, chunks []string, capture *chatRequest) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fl := w.(http.Flusher)
		for _, chunk := range chunks {
			payload, _ := json.Marshal(map[string]any{
				"choices": []map[string]any{{"delta": map[string]string{"content": chunk}}},
			})
			fmt.Fprintf(w, "data: %s\n\n", payload)
			fl.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		fl.Flush()
	}
}

func TestChatStream(t *testing.T) {
	var req chatRequest
	var authHeader, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		path = r.URL.Path
		sseHandler(t, []string{"Hello", " there"}, &req)(w, r)
	}))
	defer srv.Close()

	c := NewClient(Config{
		APIKey:  "agent-7-livekit",
		BaseURL: srv.URL + "/stream/agents/a/b/c",
	})

	var chunks []string
	var final string
	err := c.ChatStream(context.Background(), "hi", func(chunk string, done bool) {
		if done {
			final = chunk
			return
		}
		chunks = append(chunks, chunk)
	})
	require.NoError(t, err)

	assert.Equal(t, "/stream/agents/a/b/c/chat/completions", path)
	assert.Equal(t, "Bearer agent-7-livekit", authHeader)
	assert.Equal(t, []string{"Hello", " there"}, chunks)
	assert.Equal(t, "Hello there", final)
	assert.True(t, req.Stream)

	// System prompt leads, then the user turn.
	require.NotEmpty(t, req.Messages)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "user", req.Messages[1].Role)
	assert.Equal(t, "hi", req.Messages[1].Content)

	// History recorded both sides of the turn.
	assert.Equal(t, 2, c.MessageCount())
}

func TestChatKeepsHistoryAcrossTurns(t *testing.T) {
	var req chatRequest
	srv := httptest.NewServer(sseHandler(t, []string{"ok"}, &req))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})

	_, err := c.Chat(context.Background(), "first")
	require.NoError(t, err)
	_, err = c.Chat(context.Background(), "second")
	require.NoError(t, err)

	// system + first/ok + second
	assert.Len(t, req.Messages, 4)
	assert.Equal(t, "assistant", req.Messages[2].Role)

	c.ClearHistory()
	assert.Zero(t, c.MessageCount())
}

func TestChatStreamBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	err := c.ChatStream(context.Background(), "hi", func(string, bool) {})
	assert.ErrorContains(t, err, "backend error 502")
}

func TestEndpointJoining(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://localhost:9233/stream/agents/a/b/c/"})
	assert.Equal(t, "http://localhost:9233/stream/agents/a/b/c/chat/completions", c.Endpoint())
}
