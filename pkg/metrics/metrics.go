// Package metrics registers the process-wide Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StageDuration observes wall time per pipeline stage.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "critique",
		Name:      "stage_duration_seconds",
		Help:      "Wall time per review pipeline stage.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"stage"})

	// LLMCalls counts provider calls by provider and outcome.
	LLMCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "critique",
		Name:      "llm_calls_total",
		Help:      "LLM provider calls by provider and outcome.",
	}, []string{"provider", "outcome"})

	// RetrievalCalls counts retrieval-service calls by operation and outcome.
	RetrievalCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "critique",
		Name:      "retrieval_calls_total",
		Help:      "Retrieval service calls by operation and outcome.",
	}, []string{"operation", "outcome"})

	// IssuesFound counts final issues by severity.
	IssuesFound = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "critique",
		Name:      "issues_found_total",
		Help:      "Issues in final review results, by severity.",
	}, []string{"severity"})

	// Reviews counts completed reviews by terminal state.
	Reviews = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "critique",
		Name:      "reviews_total",
		Help:      "Review requests by terminal state (final, error, cancelled).",
	}, []string{"state"})
)

// ObserveStage records one stage's duration.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
