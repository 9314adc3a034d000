// Package stt defines the interface shared by streaming speech-to-text
// providers.
package stt

// TranscriptCallback is called when a transcript is received.
type TranscriptCallback func(transcript string, isFinal bool)

// UtteranceEndCallback is called when the speaker finishes an utterance.
type UtteranceEndCallback func()

// Client is a streaming speech-to-text connection. Callbacks must be set
// before Connect; they are invoked from the provider's read loop.
type Client interface {
	// Name identifies the provider in logs.
	Name() string

	// OnTranscript sets the callback for transcriptions.
	OnTranscript(callback TranscriptCallback)

	// OnUtteranceEnd sets the callback for utterance boundaries.
	OnUtteranceEnd(callback UtteranceEndCallback)

	// Connect establishes the connection to the STT service.
	Connect() error

	// SendAudio sends little-endian PCM16 audio to the STT service.
	SendAudio(pcmData []byte) error

	// Close closes the connection.
	Close() error

	// IsConnected returns connection status.
	IsConnected() bool
}
