// Package llm streams chat completions from the conversational-agent
// backend. The backend speaks the OpenAI-compatible streaming protocol; its
// semantics beyond that are owned by the backend itself.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// DefaultTimeout bounds one full completion round-trip.
const DefaultTimeout = 60 * time.Second

const defaultSystemPrompt = "You are a helpful voice assistant. Keep responses concise and conversational since they will be spoken aloud. Respond in 1-2 sentences."

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is a streaming chat-completions client bound to one backend
// endpoint for the lifetime of a job.
type Client struct {
	apiKey       string
	baseURL      string
	model        string
	systemPrompt string
	httpClient   *http.Client

	mu       sync.Mutex
	messages []Message // conversation history
}

// Config holds client configuration.
type Config struct {
	// APIKey is the per-run synthetic credential, e.g. "{agent_id}-livekit".
	APIKey string
	// BaseURL is the resolved per-run streaming endpoint; the client appends
	// the chat-completions path.
	BaseURL      string
	Model        string
	SystemPrompt string
	Timeout      time.Duration
}

// StreamCallback is called for each chunk of the streaming response, then
// once more with the full text and done=true.
type StreamCallback func(chunk string, done bool)

// NewClient creates a client for the given backend.
func NewClient(config Config) *Client {
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}
	if config.SystemPrompt == "" {
		config.SystemPrompt = defaultSystemPrompt
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	return &Client{
		apiKey:       config.APIKey,
		baseURL:      strings.TrimRight(config.BaseURL, "/"),
		model:        config.Model,
		systemPrompt: config.SystemPrompt,
		httpClient:   &http.Client{Timeout: config.Timeout},
	}
}

// Endpoint returns the full chat-completions URL the client posts to.
func (c *Client) Endpoint() string {
	return c.baseURL + "/chat/completions"
}

// chatRequest is the request body for chat completions.
type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// streamResponse represents a streaming response chunk.
type streamResponse struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// ChatStream sends a user message and streams the response, maintaining
// conversation history across turns.
func (c *Client) ChatStream(ctx context.Context, userMessage string, callback StreamCallback) error {
	c.mu.Lock()
	c.messages = append(c.messages, Message{Role: "user", Content: userMessage})
	messages := make([]Message, 0, len(c.messages)+1)
	messages = append(messages, Message{Role: "system", Content: c.systemPrompt})
	messages = append(messages, c.messages...)
	c.mu.Unlock()

	reqBody := chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("backend error %d: %s", resp.StatusCode, string(body))
	}

	fullResponse, err := c.readStream(ctx, resp.Body, callback)
	if err != nil {
		return err
	}

	if fullResponse != "" {
		c.mu.Lock()
		c.messages = append(c.messages, Message{Role: "assistant", Content: fullResponse})
		c.mu.Unlock()
	}
	return nil
}

// readStream consumes the SSE response body, invoking callback per chunk.
func (c *Client) readStream(ctx context.Context, body io.Reader, callback StreamCallback) (string, error) {
	reader := bufio.NewReader(body)
	var fullResponse strings.Builder

	for {
		select {
		case <-ctx.Done():
			return fullResponse.String(), ctx.Err()
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return fullResponse.String(), fmt.Errorf("read error: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			callback(fullResponse.String(), true)
			break
		}

		var streamResp streamResponse
		if err := json.Unmarshal([]byte(data), &streamResp); err != nil {
			continue
		}

		if len(streamResp.Choices) > 0 {
			content := streamResp.Choices[0].Delta.Content
			if content != "" {
				fullResponse.WriteString(content)
				callback(content, false)
			}
		}
	}

	return fullResponse.String(), nil
}

// Chat sends a message and returns the complete response (non-streaming).
func (c *Client) Chat(ctx context.Context, userMessage string) (string, error) {
	var response string
	err := c.ChatStream(ctx, userMessage, func(chunk string, done bool) {
		if done {
			response = chunk
		}
	})
	if err != nil {
		return "", err
	}
	return response, nil
}

// ClearHistory clears the conversation history.
func (c *Client) ClearHistory() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
}

// MessageCount returns the number of messages in history.
func (c *Client) MessageCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}
