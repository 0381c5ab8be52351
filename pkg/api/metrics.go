package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/4sgupta828/oats/pkg/models"
	"github.com/4sgupta828/oats/pkg/services"
)

// Metrics holds the control plane's Prometheus instruments.
type Metrics struct {
	registry *prometheus.Registry

	investigationsCreated prometheus.Counter
	investigationsDone    *prometheus.CounterVec
	activeStreams         prometheus.Gauge
	workerTurns           prometheus.Histogram
}

// NewMetrics builds and registers the instruments on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		investigationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oats_investigations_created_total",
			Help: "Investigations accepted by the control plane.",
		}),
		investigationsDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oats_investigations_terminal_total",
			Help: "Investigations reaching a terminal state, by state.",
		}, []string{"state"}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oats_active_streams",
			Help: "Currently attached streaming clients.",
		}),
		workerTurns: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "oats_worker_turns",
			Help:    "Turns used by successfully finished investigations.",
			Buckets: prometheus.LinearBuckets(1, 2, 15),
		}),
	}
	reg.MustRegister(m.investigationsCreated, m.investigationsDone, m.activeStreams, m.workerTurns)
	return m
}

// Hooks adapts the metrics to the service's lifecycle hooks.
func (m *Metrics) Hooks() services.MetricsHooks {
	return services.MetricsHooks{
		InvestigationCreated: m.investigationsCreated.Inc,
		InvestigationTerminal: func(state models.InvestigationState) {
			m.investigationsDone.WithLabelValues(string(state)).Inc()
		},
		TurnsUsed: func(turns int) { m.workerTurns.Observe(float64(turns)) },
	}
}

// StreamAttached records a streaming client attach.
func (m *Metrics) StreamAttached() { m.activeStreams.Inc() }

// StreamDetached records a streaming client detach.
func (m *Metrics) StreamDetached() { m.activeStreams.Dec() }

// Handler serves the scrape endpoint.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) { h.ServeHTTP(c.Writer, c.Request) }
}
