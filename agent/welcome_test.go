package agent

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsSystemIdentity(t *testing.T) {
	assert.True(t, IsSystemIdentity("agent-42"))
	assert.True(t, IsSystemIdentity("agent-"))
	assert.True(t, IsSystemIdentity("transcript-listener"))
	assert.False(t, IsSystemIdentity("user-1"))
	assert.False(t, IsSystemIdentity("my-agent-1"))
	assert.False(t, IsSystemIdentity(""))
}

func TestScheduleWelcomeGreetsUser(t *testing.T) {
	s := NewSession(SessionConfig{})
	s.welcomeDelay = 10 * time.Millisecond

	spoken := make(chan string, 1)
	s.say = func(text string) error {
		spoken <- text
		return nil
	}

	start := time.Now()
	s.ScheduleWelcome("user-1")

	select {
	case text := <-spoken:
		assert.Equal(t, DefaultWelcomeMessage, text)
		assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("welcome was never spoken")
	}
}

func TestScheduleWelcomeSkipsSystemIdentities(t *testing.T) {
	s := NewSession(SessionConfig{})
	s.welcomeDelay = time.Millisecond

	var calls atomic.Int32
	s.say = func(text string) error {
		calls.Add(1)
		return nil
	}

	s.ScheduleWelcome("agent-42")
	s.ScheduleWelcome("transcript-listener")

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestScheduleWelcomeDoesNotBlockCaller(t *testing.T) {
	s := NewSession(SessionConfig{})
	s.welcomeDelay = time.Second
	s.say = func(text string) error { return nil }

	start := time.Now()
	s.ScheduleWelcome("user-1")
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	s.Close()
}

func TestWelcomeCanceledByClose(t *testing.T) {
	s := NewSession(SessionConfig{})
	s.welcomeDelay = 100 * time.Millisecond

	var calls atomic.Int32
	s.say = func(text string) error {
		calls.Add(1)
		return nil
	}

	s.ScheduleWelcome("user-1")
	s.Close()

	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestWelcomeFailureIsSwallowed(t *testing.T) {
	s := NewSession(SessionConfig{})
	s.welcomeDelay = time.Millisecond
	s.say = func(text string) error {
		return assert.AnError
	}

	s.ScheduleWelcome("user-1")
	time.Sleep(50 * time.Millisecond)
	// No panic, nothing propagated.
}
