// Package vad implements energy-based voice activity detection. The model is
// loaded once per worker process and shared across jobs; each audio track gets
// its own detector.
package vad

import (
	"math"
	"sync"

	"github.com/rs/zerolog/log"
)

// Event marks a speech boundary in the audio stream.
type Event int

const (
	// EventNone means no boundary was crossed by this frame.
	EventNone Event = iota
	// EventSpeechStart fires when sustained speech begins.
	EventSpeechStart
	// EventSpeechEnd fires after speech stops and the hangover elapses.
	EventSpeechEnd
)

// Model holds detection parameters shared by all detectors. Loading is cheap
// today but kept behind Load so per-process prewarming has a single hook.
type Model struct {
	// energyThreshold is the RMS level above which a frame counts as speech.
	energyThreshold float64
	// minSpeechFrames is how many consecutive speech frames open an utterance.
	minSpeechFrames int
	// hangoverFrames is how many silent frames close an utterance.
	hangoverFrames int
}

var (
	loadOnce sync.Once
	model    *Model
)

// Load returns the process-wide detection model, initializing it on first use.
func Load() *Model {
	loadOnce.Do(func() {
		model = &Model{
			energyThreshold: 500,
			minSpeechFrames: 3,
			hangoverFrames:  25, // ~500ms of 20ms frames
		}
		log.Info().Msg("voice activity model loaded")
	})
	return model
}

// NewDetector creates a fresh detector state for one audio stream.
func (m *Model) NewDetector() *Detector {
	return &Detector{model: m}
}

// Detector tracks speech state for a single stream. Not safe for concurrent
// use; feed it from one goroutine.
type Detector struct {
	model        *Model
	speaking     bool
	speechCount  int
	silenceCount int
}

// Process classifies one PCM16 frame and returns any boundary event.
func (d *Detector) Process(samples []int16) Event {
	if len(samples) == 0 {
		return EventNone
	}

	if rms(samples) >= d.model.energyThreshold {
		d.silenceCount = 0
		d.speechCount++
		if !d.speaking && d.speechCount >= d.model.minSpeechFrames {
			d.speaking = true
			return EventSpeechStart
		}
		return EventNone
	}

	d.speechCount = 0
	if d.speaking {
		d.silenceCount++
		if d.silenceCount >= d.model.hangoverFrames {
			d.speaking = false
			d.silenceCount = 0
			return EventSpeechEnd
		}
	}
	return EventNone
}

// Speaking reports whether the stream is currently inside an utterance.
func (d *Detector) Speaking() bool { return d.speaking }

// Reset clears detector state, e.g. when a track is re-subscribed.
func (d *Detector) Reset() {
	d.speaking = false
	d.speechCount = 0
	d.silenceCount = 0
}

func rms(samples []int16) float64 {
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}
