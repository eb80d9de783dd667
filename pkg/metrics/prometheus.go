package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	jobsSubmitted    *prometheus.CounterVec
	jobsFinished     *prometheus.CounterVec
	jobDuration      *prometheus.HistogramVec
	solveDuration    *prometheus.HistogramVec
	solverIterations *prometheus.HistogramVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
}

// New creates a Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		jobsSubmitted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strateq_jobs_submitted_total",
				Help: "Total number of jobs submitted",
			},
			[]string{"kind"},
		),
		jobsFinished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strateq_jobs_finished_total",
				Help: "Total number of jobs reaching a terminal state",
			},
			[]string{"kind", "status"},
		),
		jobDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "strateq_job_duration_seconds",
				Help:    "Wall time of finished jobs",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"kind"},
		),
		solveDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "strateq_solve_duration_seconds",
				Help:    "Duration of single equilibrium solves",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"equilibrium_type"},
		),
		solverIterations: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "strateq_solver_iterations",
				Help:    "Fixed-point iterations per solve",
				Buckets: prometheus.ExponentialBuckets(10, 2, 10),
			},
			[]string{"equilibrium_type"},
		),
		cacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strateq_cache_hits_total",
				Help: "Market feature cache hits",
			},
			[]string{"kind"},
		),
		cacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strateq_cache_misses_total",
				Help: "Market feature cache misses",
			},
			[]string{"kind"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strateq_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

func (r *Recorder) RecordJobSubmitted(kind string) {
	r.jobsSubmitted.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordJobFinished(kind, status string, seconds float64) {
	r.jobsFinished.WithLabelValues(kind, status).Inc()
	r.jobDuration.WithLabelValues(kind).Observe(seconds)
}

func (r *Recorder) RecordSolve(eqType string, iterations int, seconds float64) {
	r.solveDuration.WithLabelValues(eqType).Observe(seconds)
	r.solverIterations.WithLabelValues(eqType).Observe(float64(iterations))
}

func (r *Recorder) RecordCacheHit(kind string)  { r.cacheHits.WithLabelValues(kind).Inc() }
func (r *Recorder) RecordCacheMiss(kind string) { r.cacheMisses.WithLabelValues(kind).Inc() }
func (r *Recorder) RecordError(kind string)     { r.errorsTotal.WithLabelValues(kind).Inc() }

// Noop discards every measurement; used in tests and when metrics are off.
type Noop struct{}

func (Noop) RecordJobSubmitted(string)              {}
func (Noop) RecordJobFinished(string, string, float64) {}
func (Noop) RecordSolve(string, int, float64)       {}
func (Noop) RecordCacheHit(string)                  {}
func (Noop) RecordCacheMiss(string)                 {}
func (Noop) RecordError(string)                     {}
