// Command agent runs the voice pipeline worker: it registers with the room
// server's agent service and, for each assigned job, connects to the room,
// waits for a participant, and runs a VAD/STT/LLM/TTS conversation session
// that relays transcripts to the web app.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"example.com/voice_pipeline/agent"
	"example.com/voice_pipeline/pkg/assemblyai"
	"example.com/voice_pipeline/pkg/backend"
	"example.com/voice_pipeline/pkg/config"
	"example.com/voice_pipeline/pkg/deepgram"
	"example.com/voice_pipeline/pkg/elevenlabs"
	"example.com/voice_pipeline/pkg/health"
	"example.com/voice_pipeline/pkg/llm"
	"example.com/voice_pipeline/pkg/metadata"
	"example.com/voice_pipeline/pkg/relay"
	"example.com/voice_pipeline/pkg/stt"
	"example.com/voice_pipeline/pkg/vad"
	"example.com/voice_pipeline/worker"
)

const agentName = "AgentVoice"

// vadKey is where the prewarm hook stores the shared detection model.
const vadKey = "vad"

func main() {
	setupLogging()

	cfg := config.Load()
	config.ValidateEnvs()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	healthSrv := health.New(cfg.HealthPort)
	go func() {
		if err := healthSrv.ListenAndServe(ctx); err != nil {
			log.Error().Err(err).Msg("health server stopped")
		}
	}()

	w := worker.New(worker.Options{
		AgentName: agentName,
		ServerURL: cfg.LiveKitURL,
		APIKey:    cfg.LiveKitAPIKey,
		APISecret: cfg.LiveKitAPISecret,
		Prewarm: func(proc *worker.Process) {
			proc.Store(vadKey, vad.Load())
		},
		Entrypoint: func(ctx context.Context, job *worker.JobContext) error {
			return runJob(ctx, cfg, job)
		},
	})

	healthSrv.SetReady(true)
	log.Info().Str("agent_name", agentName).Msg("starting worker")

	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("worker exited")
	}
	log.Info().Msg("shutting down")
}

func setupLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// runJob handles one assigned room job end to end.
func runJob(ctx context.Context, cfg *config.Config, job *worker.JobContext) error {
	meta := metadata.Normalize(job.Job.GetMetadata())
	agentNameMeta := metadata.String(meta, metadata.KeyAgentName)
	agentID := metadata.String(meta, metadata.KeyAgentID)
	runID := metadata.String(meta, metadata.KeyRunID)

	host := backend.ResolveHost(cfg.EngineAPIAddress)
	endpoint := backend.StreamEndpoint(host, agentNameMeta, agentID, runID)
	log.Info().
		Str("job_id", job.Job.GetId()).
		Str("endpoint", endpoint).
		Msg("resolved backend endpoint")

	if err := job.Connect(ctx); err != nil {
		return err
	}

	first, err := job.WaitForParticipant(ctx)
	if err != nil {
		return err
	}
	log.Info().Str("identity", first.Identity()).Msg("participant present")

	llmClient := llm.NewClient(llm.Config{
		// The backend authenticates streams by run, not by user key.
		APIKey:  agentID + "-livekit",
		BaseURL: endpoint,
	})

	vadModel, _ := job.Proc.Value(vadKey).(*vad.Model)
	if vadModel == nil {
		vadModel = vad.Load()
	}

	sess := agent.NewSession(agent.SessionConfig{
		VAD: vadModel,
		STT: newSTTClient(cfg),
		TTS: elevenlabs.NewClient(elevenlabs.Config{
			APIKey:  cfg.ElevenAPIKey,
			VoiceID: cfg.ElevenVoiceID,
			Model:   cfg.ElevenModelID,
		}),
		Relay: relay.New(cfg.FastHTMLAppURL),
	})
	defer sess.Close()

	job.OnParticipantConnected(func(rp *lksdk.RemoteParticipant) {
		sess.ScheduleWelcome(rp.Identity())
	})
	job.OnTrackSubscribed(sess.HandleTrack)

	if err := sess.Start(ctx, agent.New("", llmClient), job.Room()); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	sess.ScheduleWelcome(first.Identity())

	select {
	case <-ctx.Done():
	case <-job.Done():
	}
	return nil
}

// newSTTClient picks the transcription provider: AssemblyAI when its key is
// configured, Deepgram otherwise.
func newSTTClient(cfg *config.Config) stt.Client {
	if cfg.AssemblyAIAPIKey != "" {
		return assemblyai.NewClient(assemblyai.Config{
			APIKey:     cfg.AssemblyAIAPIKey,
			SampleRate: 48000,
			Channels:   1,
		})
	}
	return deepgram.NewClient(deepgram.Config{
		APIKey:     cfg.DeepgramAPIKey,
		SampleRate: 48000,
		Channels:   1,
	})
}
