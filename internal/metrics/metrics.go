// Package metrics holds the prometheus collectors shared by the pipelines.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LLMRequests counts completions by pipeline role and outcome (ok, invalid, error).
	LLMRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_llm_requests_total",
		Help: "LLM completions by role and outcome",
	}, []string{"role", "outcome"})

	// LLMRetries counts corrective re-prompts.
	LLMRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_llm_retries_total",
		Help: "Corrective LLM re-prompts by role",
	}, []string{"role"})

	// Fallbacks counts deterministic fallbacks taken by stage.
	Fallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_fallbacks_total",
		Help: "Heuristic fallbacks by pipeline stage",
	}, []string{"stage"})

	// SyncEntries counts sync-lock classifications.
	SyncEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_sync_entries_total",
		Help: "Sync-lock entries classified by status",
	}, []string{"status"})

	BuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "atlas_build_duration_seconds",
		Help:    "Wall time of a full graph construction run",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
