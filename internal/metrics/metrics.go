package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	Runs             *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
	PostsHarvested   prometheus.Counter
	MalformedRecords prometheus.Counter
	LoadJobs         *prometheus.CounterVec
	OutreachSent     *prometheus.CounterVec
	CommitFailures   prometheus.Counter
}

// NewMetrics creates Prometheus metrics registered with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ruok_relay_runs_total",
			Help: "Total number of pipeline runs by pipeline and final status",
		}, []string{"pipeline", "status"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ruok_relay_run_duration_seconds",
			Help:    "Time spent in a pipeline run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"pipeline"}),
		PostsHarvested: factory.NewCounter(prometheus.CounterOpts{
			Name: "ruok_relay_posts_harvested_total",
			Help: "Total number of normalized posts submitted for loading",
		}),
		MalformedRecords: factory.NewCounter(prometheus.CounterOpts{
			Name: "ruok_relay_malformed_records_total",
			Help: "Total number of fetched posts rejected by the normalizer",
		}),
		LoadJobs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ruok_relay_load_jobs_total",
			Help: "Total number of warehouse load jobs by table and result",
		}, []string{"table", "result"}),
		OutreachSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ruok_relay_outreach_sent_total",
			Help: "Total number of outreach messages sent, by mode (live or dry_run)",
		}, []string{"mode"}),
		CommitFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ruok_relay_commit_failures_total",
			Help: "Total number of failed actioned-flag updates",
		}),
	}
}
