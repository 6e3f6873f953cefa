// Package metrics exposes the arena's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors groups the arena metrics on a dedicated registry.
// A nil *Collectors is valid and records nothing.
type Collectors struct {
	registry        *prometheus.Registry
	queueDepth      prometheus.Gauge
	activeSessions  prometheus.Gauge
	matchesResolved *prometheus.CounterVec
	commitFailures  prometheus.Counter
	soloRuns        prometheus.Counter
}

func New() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "typeduel_queue_depth",
			Help: "Players waiting for an opponent.",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "typeduel_active_sessions",
			Help: "Sessions registered and not yet resolved.",
		}),
		matchesResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "typeduel_matches_resolved_total",
			Help: "Resolved sessions by resolution reason.",
		}, []string{"reason"}),
		commitFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "typeduel_commit_failures_total",
			Help: "Outcome commits that failed and were queued for retry.",
		}),
		soloRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "typeduel_solo_runs_total",
			Help: "Solo runs recorded.",
		}),
	}
	c.registry.MustRegister(
		c.queueDepth,
		c.activeSessions,
		c.matchesResolved,
		c.commitFailures,
		c.soloRuns,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collectors) SetQueueDepth(n int) {
	if c == nil {
		return
	}
	c.queueDepth.Set(float64(n))
}

func (c *Collectors) SetActiveSessions(n int) {
	if c == nil {
		return
	}
	c.activeSessions.Set(float64(n))
}

func (c *Collectors) MatchResolved(reason string) {
	if c == nil {
		return
	}
	c.matchesResolved.WithLabelValues(reason).Inc()
}

func (c *Collectors) CommitFailed() {
	if c == nil {
		return
	}
	c.commitFailures.Inc()
}

func (c *Collectors) SoloRunRecorded() {
	if c == nil {
		return
	}
	c.soloRuns.Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collectors) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
