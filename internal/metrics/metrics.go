// Package metrics counts pipeline outcomes so a batch run can be audited
// afterwards. Counters live on a private registry and are exported as a
// Prometheus textfile at the end of a run.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "casefile"

// Recorder holds the counters of one run
type Recorder struct {
	registry *prometheus.Registry

	urls      *prometheus.CounterVec
	tiers     *prometheus.CounterVec
	queries   *prometheus.CounterVec
	retries   *prometheus.CounterVec
	entities  *prometheus.CounterVec
	loadTries prometheus.Counter
}

// New creates a Recorder with all counters registered
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		urls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "urls_total",
			Help:      "URLs that reached a terminal state, by outcome.",
		}, []string{"outcome"}),
		tiers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_tier_total",
			Help:      "Extraction tier attempts, by tier and result.",
		}, []string{"tier", "result"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_queries_total",
			Help:      "Validated model queries, by prompt and outcome.",
		}, []string{"prompt", "outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_rate_limit_retries_total",
			Help:      "Backoff sleeps caused by rate limiting, by prompt.",
		}, []string{"prompt"}),
		entities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_total",
			Help:      "Candidate persons and forms, by kind and result.",
		}, []string{"kind", "result"}),
		loadTries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_load_attempts_total",
			Help:      "Browser navigation attempts on the long-lived session.",
		}),
	}

	r.registry.MustRegister(r.urls, r.tiers, r.queries, r.retries, r.entities, r.loadTries)
	return r
}

// URL counts a URL that finished with the given outcome
func (r *Recorder) URL(outcome string) {
	if r == nil {
		return
	}
	r.urls.WithLabelValues(outcome).Inc()
}

// Tier counts one extraction tier attempt
func (r *Recorder) Tier(tier, result string) {
	if r == nil {
		return
	}
	r.tiers.WithLabelValues(tier, result).Inc()
}

// Query counts one validated model query
func (r *Recorder) Query(prompt, outcome string) {
	if r == nil {
		return
	}
	r.queries.WithLabelValues(prompt, outcome).Inc()
}

// Retry counts one rate-limit backoff
func (r *Recorder) Retry(prompt string) {
	if r == nil {
		return
	}
	r.retries.WithLabelValues(prompt).Inc()
}

// Entity counts a candidate person or form result (stored, rejected, duplicate, failed)
func (r *Recorder) Entity(kind, result string) {
	if r == nil {
		return
	}
	r.entities.WithLabelValues(kind, result).Inc()
}

// LoadAttempt counts one navigation on the long-lived browser session
func (r *Recorder) LoadAttempt() {
	if r == nil {
		return
	}
	r.loadTries.Inc()
}

// Registry exposes the underlying registry (tests, custom exporters)
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes all counters in the node_exporter textfile format
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
