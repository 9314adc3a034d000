package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// JobContext carries everything an entrypoint needs to handle one assigned
// job: the job description, process-wide state, and the room connection.
type JobContext struct {
	Job  *livekit.Job
	Proc *Process

	url   string
	token string

	mu                     sync.Mutex
	room                   *lksdk.Room
	onParticipantConnected func(rp *lksdk.RemoteParticipant)
	onTrackSubscribed      func(track *webrtc.TrackRemote, rp *lksdk.RemoteParticipant)

	participantCh chan *lksdk.RemoteParticipant
	done          chan struct{}
	doneOnce      sync.Once

	log zerolog.Logger
}

func newJobContext(job *livekit.Job, proc *Process, url, token string) *JobContext {
	return &JobContext{
		Job:           job,
		Proc:          proc,
		url:           url,
		token:         token,
		participantCh: make(chan *lksdk.RemoteParticipant, 16),
		done:          make(chan struct{}),
		log:           log.With().Str("component", "job").Str("job_id", job.GetId()).Logger(),
	}
}

// Room returns the connected room, or nil before Connect.
func (j *JobContext) Room() *lksdk.Room {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.room
}

// OnParticipantConnected registers a handler for participants joining the
// room. Can be set before or after Connect.
func (j *JobContext) OnParticipantConnected(f func(rp *lksdk.RemoteParticipant)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.onParticipantConnected = f
}

// OnTrackSubscribed registers a handler for subscribed audio tracks.
func (j *JobContext) OnTrackSubscribed(f func(track *webrtc.TrackRemote, rp *lksdk.RemoteParticipant)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.onTrackSubscribed = f
}

// Connect joins the assigned room with auto-subscribe off, then subscribes
// to audio tracks only as they are published.
func (j *JobContext) Connect(ctx context.Context) error {
	callback := &lksdk.RoomCallback{
		OnParticipantConnected: j.handleParticipantConnected,
		OnDisconnected: func() {
			j.log.Info().Msg("room disconnected")
			j.doneOnce.Do(func() { close(j.done) })
		},
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackPublished:  j.handleTrackPublished,
			OnTrackSubscribed: j.handleTrackSubscribed,
		},
	}

	room, err := lksdk.ConnectToRoomWithToken(j.url, j.token, callback, lksdk.WithAutoSubscribe(false))
	if err != nil {
		return fmt.Errorf("failed to connect to room: %w", err)
	}

	j.mu.Lock()
	j.room = room
	j.mu.Unlock()

	// Participants may already be in the room; surface them and subscribe to
	// their audio as if they had just joined.
	for _, rp := range room.GetRemoteParticipants() {
		for _, pub := range rp.TrackPublications() {
			if remote, ok := pub.(*lksdk.RemoteTrackPublication); ok {
				j.handleTrackPublished(remote, rp)
			}
		}
		select {
		case j.participantCh <- rp:
		default:
		}
	}

	j.log.Info().Str("room", room.Name()).Msg("connected to room")
	return nil
}

// WaitForParticipant blocks until a remote participant is present.
func (j *JobContext) WaitForParticipant(ctx context.Context) (*lksdk.RemoteParticipant, error) {
	select {
	case rp := <-j.participantCh:
		return rp, nil
	case <-j.done:
		return nil, fmt.Errorf("room closed while waiting for participant")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed when the room disconnects or the job shuts down.
func (j *JobContext) Done() <-chan struct{} {
	return j.done
}

// Close disconnects from the room.
func (j *JobContext) Close() {
	j.doneOnce.Do(func() { close(j.done) })
	j.mu.Lock()
	room := j.room
	j.mu.Unlock()
	if room != nil {
		room.Disconnect()
	}
}

func (j *JobContext) handleParticipantConnected(rp *lksdk.RemoteParticipant) {
	j.log.Info().Str("identity", rp.Identity()).Msg("participant connected")

	select {
	case j.participantCh <- rp:
	default:
	}

	j.mu.Lock()
	handler := j.onParticipantConnected
	j.mu.Unlock()
	if handler != nil {
		handler(rp)
	}
}

// handleTrackPublished keeps the subscription audio-only.
func (j *JobContext) handleTrackPublished(publication *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	if publication.Kind() != lksdk.TrackKindAudio {
		return
	}
	if err := publication.SetSubscribed(true); err != nil {
		j.log.Warn().Err(err).Str("identity", rp.Identity()).Msg("failed to subscribe to audio track")
	}
}

func (j *JobContext) handleTrackSubscribed(track *webrtc.TrackRemote, publication *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	j.log.Debug().Str("identity", rp.Identity()).Str("track", publication.SID()).Msg("track subscribed")

	j.mu.Lock()
	handler := j.onTrackSubscribed
	j.mu.Unlock()
	if handler != nil {
		handler(track, rp)
	}
}
