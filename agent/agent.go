// Package agent runs the voice session for one room job: it subscribes to the
// participant's audio, gates it through voice activity detection, streams it
// to speech-to-text, feeds completed utterances to the language model, and
// speaks replies back into the room while relaying both sides of the
// conversation to the web app.
package agent

import "example.com/voice_pipeline/pkg/llm"

// DefaultInstructions is the system prompt used when a job supplies none.
const DefaultInstructions = "You are a helpful voice AI assistant."

// Agent pairs conversation instructions with the language model that
// generates replies.
type Agent struct {
	Instructions string
	LLM          *llm.Client
}

// New creates an agent. Empty instructions fall back to the default prompt.
func New(instructions string, llmClient *llm.Client) *Agent {
	if instructions == "" {
		instructions = DefaultInstructions
	}
	return &Agent{
		Instructions: instructions,
		LLM:          llmClient,
	}
}
