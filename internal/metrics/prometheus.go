// Package metrics provides a Prometheus metrics registry for the oracle
// node.
//
// All metrics are scoped to a private registry (not the global default) so
// they don't interfere with host-level metrics when embedded elsewhere.
// Handler() exposes them over plain net/http for an operator to scrape;
// spec.md does not require HTTP exposition, but this is ambient
// observability carried regardless, in the teacher's idiom.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all exported metrics.
type Registry struct {
	reg *prometheus.Registry

	// oracle_tasks_total{outcome} — terminal pipeline task outcomes
	// (done, cancelled, unauthorized, stale, request_absent, config_missing,
	// config_invalid, model_unspecified, error).
	tasksTotal *prometheus.CounterVec

	// oracle_task_duration_seconds{outcome}
	taskDuration *prometheus.HistogramVec

	// oracle_provider_requests_total{platform,outcome}
	providerRequestsTotal *prometheus.CounterVec

	// oracle_provider_request_duration_seconds{platform}
	providerDuration *prometheus.HistogramVec

	// oracle_submissions_total{outcome}
	submissionsTotal *prometheus.CounterVec

	// oracle_ingest_events_total{kind}
	ingestEventsTotal *prometheus.CounterVec

	// oracle_ingest_errors_total
	ingestErrorsTotal prometheus.Counter

	// oracle_cursor_block — last persisted cursor block number
	cursorBlock prometheus.Gauge

	// oracle_node_count / oracle_my_index — last refreshed node-set view
	nodeCount prometheus.Gauge
	myIndex   prometheus.Gauge

	// oracle_build_info{version}
	buildInfo *prometheus.GaugeVec
}

// New builds a private Prometheus registry with Go/process baseline
// collectors plus the node-domain metrics above.
func New(version string) *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	r := &Registry{
		reg: reg,

		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oracle_tasks_total",
			Help: "Total pipeline tasks by terminal outcome",
		}, []string{"outcome"}),

		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "oracle_task_duration_seconds",
			Help:    "Pipeline task duration from Received to terminal state",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"outcome"}),

		providerRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oracle_provider_requests_total",
			Help: "Total LLM provider invocations by platform and outcome",
		}, []string{"platform", "outcome"}),

		providerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "oracle_provider_request_duration_seconds",
			Help:    "LLM provider invocation duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"platform"}),

		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oracle_submissions_total",
			Help: "Total sendResult submissions by outcome",
		}, []string{"outcome"}),

		ingestEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oracle_ingest_events_total",
			Help: "Total decoded chain events delivered by kind",
		}, []string{"kind"}),

		ingestErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oracle_ingest_errors_total",
			Help: "Total catch-up query failures",
		}),

		cursorBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oracle_cursor_block",
			Help: "Last persisted cursor block number",
		}),

		nodeCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oracle_node_count",
			Help: "Authorized node set size as of the last refresh",
		}),

		myIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oracle_my_index",
			Help: "This node's index in the authorized set, or -1 if unauthorized",
		}),

		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "oracle_build_info",
			Help: "Static build metadata",
		}, []string{"version"}),
	}

	reg.MustRegister(
		r.tasksTotal,
		r.taskDuration,
		r.providerRequestsTotal,
		r.providerDuration,
		r.submissionsTotal,
		r.ingestEventsTotal,
		r.ingestErrorsTotal,
		r.cursorBlock,
		r.nodeCount,
		r.myIndex,
		r.buildInfo,
	)

	r.buildInfo.WithLabelValues(version).Set(1)

	return r
}

// RecordTask records a terminal pipeline task outcome and its duration.
func (r *Registry) RecordTask(outcome string, seconds float64) {
	r.tasksTotal.WithLabelValues(outcome).Inc()
	r.taskDuration.WithLabelValues(outcome).Observe(seconds)
}

// RecordProviderRequest records one LLM invocation outcome and latency.
func (r *Registry) RecordProviderRequest(platform, outcome string, seconds float64) {
	r.providerRequestsTotal.WithLabelValues(platform, outcome).Inc()
	r.providerDuration.WithLabelValues(platform).Observe(seconds)
}

// RecordSubmission records one sendResult outcome.
func (r *Registry) RecordSubmission(outcome string) {
	r.submissionsTotal.WithLabelValues(outcome).Inc()
}

// RecordIngestEvent increments the delivered-event counter for kind.
func (r *Registry) RecordIngestEvent(kind string) {
	r.ingestEventsTotal.WithLabelValues(kind).Inc()
}

// RecordIngestError increments the catch-up failure counter.
func (r *Registry) RecordIngestError() {
	r.ingestErrorsTotal.Inc()
}

// SetCursorBlock reports the last persisted cursor block number.
func (r *Registry) SetCursorBlock(block uint64) {
	r.cursorBlock.Set(float64(block))
}

// SetNodeSet reports the last refreshed (myIndex, nodeCount) view.
func (r *Registry) SetNodeSet(myIndex, nodeCount int) {
	r.myIndex.Set(float64(myIndex))
	r.nodeCount.Set(float64(nodeCount))
}

// Handler exposes the private registry for scraping.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
