// Package metrics provides the Prometheus collectors for the league. All
// methods are safe on a nil *Metrics so callers can run without metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mentionleague"

// Metrics holds every league collector and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	refreshes          *prometheus.CounterVec
	gatewayLatency     *prometheus.HistogramVec
	snapshotsAppended  prometheus.Counter
	picksLocked        prometheus.Counter
	picksCleared       prometheus.Counter
	validationFailures prometheus.Counter
	backfilled         prometheus.Counter
	resolutions        prometheus.Counter
	resolveDuration    prometheus.Histogram
	pickOutcomes       *prometheus.GaugeVec
	participants       prometheus.Gauge
	divergences        prometheus.Counter
	httpRequests       *prometheus.CounterVec
}

// New creates the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	auto := promauto.With(reg)

	return &Metrics{
		registry: reg,
		refreshes: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "market_refreshes_total",
			Help:      "Market refreshes by outcome (ok, gateway_fault, error).",
		}, []string{"outcome"}),
		gatewayLatency: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Latency of market gateway requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "outcome"}),
		snapshotsAppended: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_appended_total",
			Help:      "Market snapshot rows appended.",
		}),
		picksLocked: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "picks_locked_total",
			Help:      "Picks written to the ledger.",
		}),
		picksCleared: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "picks_cleared_total",
			Help:      "Picks removed by administrative clears.",
		}),
		validationFailures: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pick_validation_failures_total",
			Help:      "Uploaded pick cells that did not match a known option.",
		}),
		backfilled: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "picks_backfilled_total",
			Help:      "Picks linked to an instrument after lock-in.",
		}),
		resolutions: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Completed resolution runs.",
		}),
		resolveDuration: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolve_duration_seconds",
			Help:      "Duration of resolution runs including persistence.",
			Buckets:   prometheus.DefBuckets,
		}),
		pickOutcomes: auto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pick_outcomes",
			Help:      "Picks per outcome at the last resolution.",
		}, []string{"outcome"}),
		participants: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "participants",
			Help:      "Participants on the leaderboard at the last resolution.",
		}),
		divergences: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "join_divergence_total",
			Help:      "Linked picks whose option title points at a different instrument.",
		}),
		httpRequests: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status code.",
		}, []string{"route", "method", "code"}),
	}
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Refresh counts one market refresh with its outcome label.
func (m *Metrics) Refresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

// GatewayRequest observes one gateway call.
func (m *Metrics) GatewayRequest(op string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.gatewayLatency.WithLabelValues(op, outcome).Observe(elapsed.Seconds())
}

// SnapshotsAppended adds n appended snapshot rows.
func (m *Metrics) SnapshotsAppended(n int) {
	if m == nil {
		return
	}
	m.snapshotsAppended.Add(float64(n))
}

// PicksLocked adds n locked picks.
func (m *Metrics) PicksLocked(n int) {
	if m == nil {
		return
	}
	m.picksLocked.Add(float64(n))
}

// PicksCleared adds n cleared picks.
func (m *Metrics) PicksCleared(n int64) {
	if m == nil {
		return
	}
	m.picksCleared.Add(float64(n))
}

// ValidationFailures adds n rejected cells.
func (m *Metrics) ValidationFailures(n int) {
	if m == nil {
		return
	}
	m.validationFailures.Add(float64(n))
}

// Backfilled adds n newly linked picks.
func (m *Metrics) Backfilled(n int) {
	if m == nil {
		return
	}
	m.backfilled.Add(float64(n))
}

// Resolved records a resolution run: per-outcome pick counts, participant
// count, divergent joins and duration.
func (m *Metrics) Resolved(outcomes map[string]int, participants, divergent int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.resolutions.Inc()
	m.resolveDuration.Observe(elapsed.Seconds())
	m.pickOutcomes.Reset()
	for outcome, n := range outcomes {
		m.pickOutcomes.WithLabelValues(outcome).Set(float64(n))
	}
	m.participants.Set(float64(participants))
	m.divergences.Add(float64(divergent))
}

// HTTPRequest counts one served request.
func (m *Metrics) HTTPRequest(route, method string, code int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
}
