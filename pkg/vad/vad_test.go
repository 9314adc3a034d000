package vad

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func loudFrame() []int16 {
	frame := make([]int16, 320)
	for i := range frame {
		frame[i] = 4000
	}
	return frame
}

func quietFrame() []int16 {
	return make([]int16, 320)
}

func TestLoadReturnsSameModel(t *testing.T) {
	assert.Same(t, Load(), Load())
}

func TestSpeechStartAfterMinFrames(t *testing.T) {
	d := Load().NewDetector()

	assert.Equal(t, EventNone, d.Process(loudFrame()))
	assert.Equal(t, EventNone, d.Process(loudFrame()))
	assert.Equal(t, EventSpeechStart, d.Process(loudFrame()))
	assert.True(t, d.Speaking())

	// Already speaking, no repeated start event.
	assert.Equal(t, EventNone, d.Process(loudFrame()))
}

func TestSpeechEndAfterHangover(t *testing.T) {
	m := Load()
	d := m.NewDetector()

	for i := 0; i < m.minSpeechFrames; i++ {
		d.Process(loudFrame())
	}
	assert.True(t, d.Speaking())

	for i := 0; i < m.hangoverFrames-1; i++ {
		assert.Equal(t, EventNone, d.Process(quietFrame()))
	}
	assert.Equal(t, EventSpeechEnd, d.Process(quietFrame()))
	assert.False(t, d.Speaking())
}

func TestShortBurstDoesNotTrigger(t *testing.T) {
	d := Load().NewDetector()

	d.Process(loudFrame())
	d.Process(quietFrame())
	d.Process(loudFrame())
	d.Process(quietFrame())

	assert.False(t, d.Speaking())
}

func TestSilenceWhileIdleProducesNothing(t *testing.T) {
	d := Load().NewDetector()
	for i := 0; i < 100; i++ {
		assert.Equal(t, EventNone, d.Process(quietFrame()))
	}
}

func TestEmptyFrame(t *testing.T) {
	d := Load().NewDetector()
	assert.Equal(t, EventNone, d.Process(nil))
}

func TestReset(t *testing.T) {
	m := Load()
	d := m.NewDetector()
	for i := 0; i < m.minSpeechFrames; i++ {
		d.Process(loudFrame())
	}
	assert.True(t, d.Speaking())

	d.Reset()
	assert.False(t, d.Speaking())
}
