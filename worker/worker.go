// Package worker registers with the room server's agent service and runs an
// entrypoint for each job it is assigned. It holds one WebSocket to the
// server, answers availability checks, reports job status, and reconnects
// with backoff when the connection drops.
package worker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/proto"

	"example.com/voice_pipeline/pkg/metrics"
)

const (
	pingInterval     = 10 * time.Second
	handshakeTimeout = 10 * time.Second
	maxBackoff       = 30 * time.Second
)

// EntrypointFunc handles one assigned job. Returning an error marks the job
// failed; returning nil marks it successful.
type EntrypointFunc func(ctx context.Context, job *JobContext) error

// PrewarmFunc runs once per process before any job, loading models or other
// state into the shared Process.
type PrewarmFunc func(proc *Process)

// Options configures a worker.
type Options struct {
	// AgentName is the job-name identifier this worker registers under.
	AgentName string
	ServerURL string
	APIKey    string
	APISecret string
	Version   string

	Entrypoint EntrypointFunc
	Prewarm    PrewarmFunc
}

// Worker is an agent worker bound to one server.
type Worker struct {
	opts Options
	proc *Process

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	jobsMu sync.Mutex
	jobs   map[string]context.CancelFunc

	log zerolog.Logger
}

// New creates a worker. Run starts it.
func New(opts Options) *Worker {
	if opts.Version == "" {
		opts.Version = "0.1.0"
	}
	return &Worker{
		opts: opts,
		proc: newProcess(),
		jobs: make(map[string]context.CancelFunc),
		log:  log.With().Str("component", "worker").Logger(),
	}
}

// Run prewarms the process, then keeps a registration alive until ctx is
// canceled, reconnecting with backoff on failure.
func (w *Worker) Run(ctx context.Context) error {
	if w.opts.Prewarm != nil {
		w.opts.Prewarm(w.proc)
	}

	backoff := time.Second
	for {
		err := w.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.log.Warn().Err(err).Dur("retry_in", backoff).Msg("worker connection lost")

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// agentEndpoint converts a server URL into the agent service WebSocket URL.
func agentEndpoint(serverURL string) string {
	url := strings.TrimSuffix(serverURL, "/")
	url = strings.Replace(url, "http://", "ws://", 1)
	url = strings.Replace(url, "https://", "wss://", 1)
	return url + "/agent"
}

func (w *Worker) authToken() (string, error) {
	at := auth.NewAccessToken(w.opts.APIKey, w.opts.APISecret).
		SetVideoGrant(&auth.VideoGrant{Agent: true}).
		SetValidFor(time.Hour)
	return at.ToJWT()
}

func (w *Worker) runOnce(ctx context.Context) error {
	token, err := w.authToken()
	if err != nil {
		return fmt.Errorf("failed to create auth token: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	header := map[string][]string{
		"Authorization": {"Bearer " + token},
	}
	conn, _, err := dialer.DialContext(ctx, agentEndpoint(w.opts.ServerURL), header)
	if err != nil {
		return fmt.Errorf("failed to dial agent service: %w", err)
	}
	defer conn.Close()

	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()

	register := &livekit.WorkerMessage{
		Message: &livekit.WorkerMessage_Register{
			Register: &livekit.RegisterWorkerRequest{
				Type:      livekit.JobType_JT_ROOM,
				AgentName: w.opts.AgentName,
				Version:   w.opts.Version,
			},
		},
	}
	if err := w.send(register); err != nil {
		return fmt.Errorf("failed to register: %w", err)
	}

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go w.pingLoop(connCtx)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read failed: %w", err)
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		var msg livekit.ServerMessage
		if err := proto.Unmarshal(data, &msg); err != nil {
			w.log.Warn().Err(err).Msg("failed to decode server message")
			continue
		}

		w.handleServerMessage(connCtx, &msg)
	}
}

func (w *Worker) handleServerMessage(ctx context.Context, msg *livekit.ServerMessage) {
	switch m := msg.Message.(type) {
	case *livekit.ServerMessage_Register:
		w.log.Info().
			Str("worker_id", m.Register.GetWorkerId()).
			Str("agent_name", w.opts.AgentName).
			Msg("registered with server")

	case *livekit.ServerMessage_Availability:
		w.handleAvailability(m.Availability)

	case *livekit.ServerMessage_Assignment:
		go w.handleAssignment(ctx, m.Assignment)

	case *livekit.ServerMessage_Pong:
		// Keepalive acknowledged.

	case *livekit.ServerMessage_Termination:
		w.terminateJob(m.Termination.GetJobId())
	}
}

// handleAvailability accepts every offered job. The participant identity uses
// the reserved agent prefix so the session can tell itself apart from users.
func (w *Worker) handleAvailability(req *livekit.AvailabilityRequest) {
	identity := "agent-" + uuid.NewString()[:8]

	resp := &livekit.WorkerMessage{
		Message: &livekit.WorkerMessage_Availability{
			Availability: &livekit.AvailabilityResponse{
				JobId:               req.GetJob().GetId(),
				Available:           true,
				ParticipantIdentity: identity,
				ParticipantName:     w.opts.AgentName,
			},
		},
	}
	if err := w.send(resp); err != nil {
		w.log.Warn().Err(err).Msg("failed to send availability response")
	}
}

func (w *Worker) handleAssignment(ctx context.Context, assignment *livekit.JobAssignment) {
	job := assignment.GetJob()
	w.log.Info().
		Str("job_id", job.GetId()).
		Str("room", job.GetRoom().GetName()).
		Msg("job assigned")
	metrics.JobsAccepted.Inc()

	jobCtx, cancel := context.WithCancel(ctx)
	w.jobsMu.Lock()
	w.jobs[job.GetId()] = cancel
	w.jobsMu.Unlock()
	defer func() {
		cancel()
		w.jobsMu.Lock()
		delete(w.jobs, job.GetId())
		w.jobsMu.Unlock()
	}()

	roomURL := assignment.GetUrl()
	if roomURL == "" {
		roomURL = w.opts.ServerURL
	}
	jc := newJobContext(job, w.proc, roomURL, assignment.GetToken())
	defer jc.Close()

	w.updateJobStatus(job.GetId(), livekit.JobStatus_JS_RUNNING, "")

	err := w.opts.Entrypoint(jobCtx, jc)
	if err != nil {
		w.log.Error().Err(err).Str("job_id", job.GetId()).Msg("job failed")
		w.updateJobStatus(job.GetId(), livekit.JobStatus_JS_FAILED, err.Error())
		metrics.JobsCompleted.WithLabelValues("failed").Inc()
		return
	}

	w.updateJobStatus(job.GetId(), livekit.JobStatus_JS_SUCCESS, "")
	metrics.JobsCompleted.WithLabelValues("success").Inc()
	w.log.Info().Str("job_id", job.GetId()).Msg("job completed")
}

func (w *Worker) terminateJob(jobID string) {
	w.jobsMu.Lock()
	cancel, ok := w.jobs[jobID]
	w.jobsMu.Unlock()
	if ok {
		w.log.Info().Str("job_id", jobID).Msg("job terminated by server")
		cancel()
	}
}

func (w *Worker) updateJobStatus(jobID string, status livekit.JobStatus, errMsg string) {
	msg := &livekit.WorkerMessage{
		Message: &livekit.WorkerMessage_UpdateJob{
			UpdateJob: &livekit.UpdateJobStatus{
				JobId:  jobID,
				Status: status,
				Error:  errMsg,
			},
		},
	}
	if err := w.send(msg); err != nil {
		w.log.Warn().Err(err).Str("job_id", jobID).Msg("failed to update job status")
	}
}

func (w *Worker) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ping := &livekit.WorkerMessage{
				Message: &livekit.WorkerMessage_Ping{
					Ping: &livekit.WorkerPing{Timestamp: time.Now().UnixMilli()},
				},
			}
			if err := w.send(ping); err != nil {
				return
			}
		}
	}
}

func (w *Worker) send(msg *livekit.WorkerMessage) error {
	data, err := proto.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return conn.WriteMessage(websocket.BinaryMessage, data)
}
