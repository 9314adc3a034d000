package agent

import (
	"strings"
	"time"

	"example.com/voice_pipeline/pkg/metrics"
)

// DefaultWelcomeMessage is spoken when a real participant joins.
const DefaultWelcomeMessage = "Hi! I'm your AI assistant. How can I help you today?"

// welcomeDelay gives the participant's client time to finish subscribing to
// the agent's audio track before the greeting plays.
const welcomeDelay = 2 * time.Second

// transcriptListenerIdentity is the web app's silent listener participant.
const transcriptListenerIdentity = "transcript-listener"

// IsSystemIdentity reports whether a participant identity belongs to
// infrastructure (other agents, the transcript listener) rather than a user.
func IsSystemIdentity(identity string) bool {
	return strings.HasPrefix(identity, "agent-") || identity == transcriptListenerIdentity
}

// ScheduleWelcome greets a newly joined participant after a short delay.
// System participants are ignored. The greeting runs in the background and
// never blocks the caller; a failed greeting is logged and dropped.
func (s *Session) ScheduleWelcome(identity string) {
	if IsSystemIdentity(identity) {
		s.log.Debug().Str("identity", identity).Msg("skipping welcome for system participant")
		return
	}

	s.log.Info().Str("identity", identity).Msg("scheduling welcome")
	go func() {
		select {
		case <-time.After(s.welcomeDelay):
		case <-s.closed:
			return
		}

		if err := s.say(s.welcomeMessage); err != nil {
			metrics.Welcomes.WithLabelValues("error").Inc()
			s.log.Warn().Err(err).Msg("welcome greeting failed")
			return
		}
		metrics.Welcomes.WithLabelValues("ok").Inc()
	}()
}
