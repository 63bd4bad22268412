package verifier

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the verification pipeline.
var (
	verificationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_verifications_total",
			Help: "Total number of agent request verifications, by result.",
		},
		[]string{"result"}, // success, invalid_signature, replay, resolution_failed, missing_did, no_verification_method
	)

	replayDetectionCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signature_replays_detected_total",
			Help: "Total number of replayed signatures rejected.",
		},
	)
)
