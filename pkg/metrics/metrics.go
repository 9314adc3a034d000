// Package metrics exposes Prometheus counters for the worker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsAccepted counts jobs this worker accepted from the server.
	JobsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_pipeline_jobs_accepted_total",
		Help: "Number of agent jobs accepted by this worker.",
	})

	// JobsCompleted counts finished jobs by terminal status.
	JobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_pipeline_jobs_completed_total",
		Help: "Number of agent jobs completed, by status.",
	}, []string{"status"})

	// TranscriptRelays counts outbound transcript posts by outcome.
	TranscriptRelays = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_pipeline_transcript_relay_total",
		Help: "Number of transcript lines relayed to the web app, by outcome.",
	}, []string{"outcome"})

	// Welcomes counts welcome utterances by outcome.
	Welcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_pipeline_welcome_total",
		Help: "Number of welcome utterances attempted, by outcome.",
	}, []string{"outcome"})
)
