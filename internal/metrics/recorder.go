// Package metrics exposes merge counters and timings as Prometheus metrics,
// plus point-in-time runtime memory readings.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Merge strategies used as label values.
const (
	StrategyDirect   = "direct"
	StrategyParallel = "parallel"
)

// Recorder owns a private registry with the merge metrics. A nil *Recorder is
// valid and records nothing.
type Recorder struct {
	registry       *prometheus.Registry
	merges         *prometheus.CounterVec
	mergeBytes     prometheus.Counter
	duration       *prometheus.HistogramVec
	chunks         prometheus.Counter
	workerFailures prometheus.Counter
}

// NewRecorder creates a Recorder with Go runtime collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blobmerge_merges_total",
			Help: "Number of merge calls by strategy and outcome.",
		}, []string{"strategy", "status"}),
		mergeBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blobmerge_merged_bytes_total",
			Help: "Total bytes produced by successful merges.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "blobmerge_merge_duration_seconds",
			Help:    "Wall time of merge calls.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"strategy"}),
		chunks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blobmerge_chunks_processed_total",
			Help: "Work units returned successfully by workers.",
		}),
		workerFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blobmerge_worker_failures_total",
			Help: "Work units that came back with an error.",
		}),
	}
	r.registry.MustRegister(
		r.merges, r.mergeBytes, r.duration, r.chunks, r.workerFailures,
		collectors.NewGoCollector(),
	)
	return r
}

// ObserveMerge records the outcome of one merge call.
func (r *Recorder) ObserveMerge(strategy string, size int, elapsed time.Duration, err error) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	} else {
		r.mergeBytes.Add(float64(size))
	}
	r.merges.WithLabelValues(strategy, status).Inc()
	r.duration.WithLabelValues(strategy).Observe(elapsed.Seconds())
}

// ChunkProcessed counts a successful work unit.
func (r *Recorder) ChunkProcessed() {
	if r == nil {
		return
	}
	r.chunks.Inc()
}

// WorkerFailed counts a failed work unit.
func (r *Recorder) WorkerFailed() {
	if r == nil {
		return
	}
	r.workerFailures.Inc()
}

// Registry returns the underlying registry for exposition.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// WriteTextfile writes all metrics in the text exposition format to path,
// for pickup by a node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
