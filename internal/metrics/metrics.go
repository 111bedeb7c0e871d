// Package metrics exposes Prometheus instrumentation for pipeline runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "policy_scanner"

// Source outcomes.
const (
	OutcomeProcessed = "processed"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// Pipeline holds run-level collectors.
type Pipeline struct {
	Runs            *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	Sources         *prometheus.CounterVec
	Decisions       *prometheus.CounterVec
	PoliciesStored  prometheus.Counter
	InsertFailures  prometheus.Counter
	AuditWriteFails prometheus.Counter
}

// NewPipeline registers collectors on reg. A nil reg leaves them unregistered.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	m := &Pipeline{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by result.",
		}, []string{"result"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a full pipeline run.",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		Sources: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sources_total",
			Help:      "Sources visited by outcome.",
		}, []string{"source", "outcome"}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidate_decisions_total",
			Help:      "Dedup decisions by source, stage and result.",
		}, []string{"source", "stage", "duplicate"}),
		PoliciesStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policies_inserted_total",
			Help:      "Policies committed to the store.",
		}),
		InsertFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_insert_failures_total",
			Help:      "Policies rejected by the store.",
		}),
		AuditWriteFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_write_failures_total",
			Help:      "Decision records that failed to reach at least one sink.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Runs, m.RunDuration, m.Sources, m.Decisions, m.PoliciesStored, m.InsertFailures, m.AuditWriteFails)
	}
	return m
}

// ObserveRun records the result and duration of a run.
func (m *Pipeline) ObserveRun(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(result).Inc()
	m.RunDuration.Observe(elapsed.Seconds())
}

// ObserveSource counts a visited source.
func (m *Pipeline) ObserveSource(source, outcome string) {
	if m == nil {
		return
	}
	m.Sources.WithLabelValues(source, outcome).Inc()
}

// ObserveDecision counts a dedup decision.
func (m *Pipeline) ObserveDecision(source, stage string, duplicate bool) {
	if m == nil {
		return
	}
	dup := "false"
	if duplicate {
		dup = "true"
	}
	m.Decisions.WithLabelValues(source, stage, dup).Inc()
}

// ObserveInsert counts batch insert results.
func (m *Pipeline) ObserveInsert(inserted, failed int) {
	if m == nil {
		return
	}
	m.PoliciesStored.Add(float64(inserted))
	m.InsertFailures.Add(float64(failed))
}

// ObserveAuditFailure counts a decision that did not reach every sink.
func (m *Pipeline) ObserveAuditFailure() {
	if m == nil {
		return
	}
	m.AuditWriteFails.Inc()
}
