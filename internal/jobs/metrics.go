package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts job runs.
type Metrics struct {
	Started  *prometheus.CounterVec
	Finished *prometheus.CounterVec
	Running  prometheus.Gauge
}

// NewMetrics registers the job metrics with reg. A nil reg registers them
// nowhere, which suits tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Started: f.NewCounterVec(prometheus.CounterOpts{
			Name: "jmigrate_jobs_started_total",
			Help: "Jobs handed to a worker, by kind.",
		}, []string{"kind"}),
		Finished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "jmigrate_jobs_finished_total",
			Help: "Jobs that reached a terminal status, by kind and status.",
		}, []string{"kind", "status"}),
		Running: f.NewGauge(prometheus.GaugeOpts{
			Name: "jmigrate_jobs_running",
			Help: "Jobs currently executing.",
		}),
	}
}
