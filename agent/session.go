package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"example.com/voice_pipeline/pkg/audio"
	"example.com/voice_pipeline/pkg/elevenlabs"
	"example.com/voice_pipeline/pkg/relay"
	"example.com/voice_pipeline/pkg/stt"
	"example.com/voice_pipeline/pkg/vad"
)

// Remote audio tracks arrive as 48kHz opus; decoded mono for detection and
// transcription.
const trackSampleRate = 48000

// SessionConfig wires the external providers into a session.
type SessionConfig struct {
	VAD   *vad.Model
	STT   stt.Client
	TTS   *elevenlabs.Client
	Relay *relay.Relay
}

// Session drives one conversation: inbound audio through VAD and STT, turns
// through the LLM, replies through TTS onto a published track.
type Session struct {
	cfg   SessionConfig
	agent *Agent
	room  *lksdk.Room

	ctx        context.Context
	localTrack *lksdk.LocalSampleTrack

	// say speaks a line into the room. Replaceable in tests.
	say            func(text string) error
	welcomeDelay   time.Duration
	welcomeMessage string

	mu         sync.Mutex
	turnBuffer strings.Builder
	pipeline   *audio.Pipeline

	speakMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}

	log zerolog.Logger
}

// NewSession creates a session. Start must be called before audio flows.
func NewSession(cfg SessionConfig) *Session {
	s := &Session{
		cfg:            cfg,
		ctx:            context.Background(),
		welcomeDelay:   welcomeDelay,
		welcomeMessage: DefaultWelcomeMessage,
		closed:         make(chan struct{}),
		log:            log.With().Str("component", "session").Logger(),
	}
	s.say = s.speak
	return s
}

// Start binds the session to an agent and a connected room: publishes the
// agent's audio track and opens the speech-to-text stream.
func (s *Session) Start(ctx context.Context, ag *Agent, room *lksdk.Room) error {
	s.ctx = ctx
	s.agent = ag
	s.room = room

	track, err := lksdk.NewLocalSampleTrack(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeOpus,
		ClockRate: 48000,
		Channels:  2,
	})
	if err != nil {
		return fmt.Errorf("failed to create audio track: %w", err)
	}
	if _, err := room.LocalParticipant.PublishTrack(track, &lksdk.TrackPublicationOptions{
		Name: "agent-voice",
	}); err != nil {
		return fmt.Errorf("failed to publish audio track: %w", err)
	}
	s.localTrack = track

	if s.cfg.STT != nil {
		s.cfg.STT.OnTranscript(s.handleTranscript)
		s.cfg.STT.OnUtteranceEnd(s.handleUtteranceEnd)
		if err := s.cfg.STT.Connect(); err != nil {
			return fmt.Errorf("failed to connect speech-to-text: %w", err)
		}
	}

	s.log.Info().Str("room", room.Name()).Msg("session started")
	return nil
}

// HandleTrack consumes a subscribed remote audio track until it ends or the
// session closes. Run it on its own goroutine per track.
func (s *Session) HandleTrack(track *webrtc.TrackRemote, rp *lksdk.RemoteParticipant) {
	if IsSystemIdentity(rp.Identity()) {
		s.log.Debug().Str("identity", rp.Identity()).Msg("ignoring system participant track")
		return
	}

	decoder, err := audio.NewOpusDecoder(trackSampleRate, 1)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to create decoder")
		return
	}

	var detector *vad.Detector
	if s.cfg.VAD != nil {
		detector = s.cfg.VAD.NewDetector()
	}

	s.log.Info().Str("identity", rp.Identity()).Msg("listening to participant audio")

	for {
		select {
		case <-s.closed:
			return
		default:
		}

		pkt, _, err := track.ReadRTP()
		if err != nil {
			s.log.Debug().Err(err).Msg("track ended")
			return
		}
		if len(pkt.Payload) == 0 {
			continue
		}

		samples, err := decoder.Decode(pkt.Payload)
		if err != nil {
			continue
		}

		s.processFrame(samples, detector)
	}
}

// processFrame gates a decoded frame through voice activity detection and
// forwards speech to the transcription stream.
func (s *Session) processFrame(samples []int16, detector *vad.Detector) {
	if detector != nil {
		switch detector.Process(samples) {
		case vad.EventSpeechStart:
			s.log.Debug().Msg("speech started")
		case vad.EventSpeechEnd:
			s.log.Debug().Msg("speech ended")
		}
		if !detector.Speaking() {
			return
		}
	}

	if s.cfg.STT == nil {
		return
	}
	if err := s.cfg.STT.SendAudio(audio.SamplesToBytes(samples)); err != nil {
		s.log.Debug().Err(err).Msg("failed to send audio to transcription")
	}
}

// handleTranscript accumulates final transcript fragments for the current
// turn. Interim results are ignored; the streaming provider refines them
// until they finalize.
func (s *Session) handleTranscript(transcript string, isFinal bool) {
	if !isFinal || strings.TrimSpace(transcript) == "" {
		return
	}

	s.mu.Lock()
	if s.turnBuffer.Len() > 0 {
		s.turnBuffer.WriteByte(' ')
	}
	s.turnBuffer.WriteString(strings.TrimSpace(transcript))
	s.mu.Unlock()

	s.log.Debug().Str("transcript", transcript).Msg("final transcript")
}

// handleUtteranceEnd closes the current turn and processes it.
func (s *Session) handleUtteranceEnd() {
	s.mu.Lock()
	text := s.turnBuffer.String()
	s.turnBuffer.Reset()
	s.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		return
	}

	go s.processTurn(text)
}

// processTurn runs one conversation turn: relay the user line, generate a
// reply, relay it, and speak it. Turns are serialized by the speak lock.
func (s *Session) processTurn(userText string) {
	s.log.Info().Str("text", userText).Msg("user turn")

	if s.cfg.Relay != nil {
		s.cfg.Relay.Post(s.ctx, "user", userText)
	}

	reply, err := s.agent.LLM.Chat(s.ctx, userText)
	if err != nil {
		s.log.Warn().Err(err).Msg("language model request failed")
		return
	}
	if strings.TrimSpace(reply) == "" {
		return
	}

	if s.cfg.Relay != nil {
		s.cfg.Relay.Post(s.ctx, "agent", reply)
	}

	if err := s.say(reply); err != nil {
		s.log.Warn().Err(err).Msg("failed to speak reply")
	}
}

// speak synthesizes text and writes it to the published track as paced 20ms
// opus frames. Concurrent calls are serialized so utterances do not overlap.
func (s *Session) speak(text string) error {
	if s.cfg.TTS == nil || s.localTrack == nil {
		return fmt.Errorf("speech output not configured")
	}

	s.speakMu.Lock()
	defer s.speakMu.Unlock()

	pcm, err := s.cfg.TTS.Synthesize(s.ctx, text)
	if err != nil {
		return fmt.Errorf("synthesis failed: %w", err)
	}

	if s.pipeline == nil {
		p, err := audio.NewPipeline(elevenlabs.SampleRate)
		if err != nil {
			return fmt.Errorf("failed to create audio pipeline: %w", err)
		}
		s.pipeline = p
	}
	s.pipeline.Reset()

	frames, err := s.pipeline.ProcessChunk(pcm)
	if err != nil {
		return fmt.Errorf("encoding failed: %w", err)
	}
	tail, err := s.pipeline.Flush()
	if err != nil {
		return fmt.Errorf("encoding failed: %w", err)
	}
	frames = append(frames, tail...)

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for _, frame := range frames {
		select {
		case <-s.closed:
			return nil
		case <-s.ctx.Done():
			return s.ctx.Err()
		case <-ticker.C:
		}

		if err := s.localTrack.WriteSample(media.Sample{
			Data:     frame,
			Duration: 20 * time.Millisecond,
		}, nil); err != nil {
			return fmt.Errorf("failed to write audio sample: %w", err)
		}
	}

	s.log.Debug().Int("frames", len(frames)).Msg("spoke reply")
	return nil
}

// Say speaks an arbitrary line into the room.
func (s *Session) Say(text string) error {
	return s.say(text)
}

// Close tears down the session. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		if s.cfg.STT != nil {
			if err := s.cfg.STT.Close(); err != nil {
				s.log.Debug().Err(err).Msg("error closing transcription stream")
			}
		}
		s.log.Info().Msg("session closed")
	})
}
