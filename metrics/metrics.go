// Package metrics holds the Prometheus collectors for the document pipeline.
package metrics

import (
	"time"

	"github.com/poiesic/docpipe/queue"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "docpipe"

var (
	QueueEnqueued = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Subsystem: "queue", Name: "enqueued_total", Help: "Number of work items admitted to the queue."},
	)
	QueueSaturated = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Subsystem: "queue", Name: "saturated_total", Help: "Number of enqueue attempts rejected by backpressure."},
	)
	QueueCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Subsystem: "queue", Name: "completed_total", Help: "Number of work items finished by final status."},
		[]string{"status"},
	)
	QueueRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Subsystem: "queue", Name: "running", Help: "Number of handlers currently running."},
	)
	QueueWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{Namespace: namespace, Subsystem: "queue", Name: "wait_seconds", Help: "Time items spent pending before a worker picked them up.", Buckets: prometheus.DefBuckets},
	)
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: namespace, Subsystem: "pipeline", Name: "stage_duration_seconds", Help: "Duration of pipeline stage executions.", Buckets: prometheus.ExponentialBuckets(0.05, 2, 12)},
		[]string{"stage", "result"},
	)
	DocumentOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Subsystem: "pipeline", Name: "documents_total", Help: "Number of pipeline runs by final document status."},
		[]string{"status"},
	)
	PollOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Subsystem: "poller", Name: "outcomes_total", Help: "Number of index status waits by outcome."},
		[]string{"outcome"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(QueueEnqueued)
	reg.MustRegister(QueueSaturated)
	reg.MustRegister(QueueCompleted)
	reg.MustRegister(QueueRunning)
	reg.MustRegister(QueueWait)
	reg.MustRegister(StageDuration)
	reg.MustRegister(DocumentOutcomes)
	reg.MustRegister(PollOutcomes)
}

// ObserveStage records one stage execution.
func ObserveStage(stage string, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	StageDuration.WithLabelValues(stage, result).Observe(elapsed.Seconds())
}

// QueueObserver feeds queue lifecycle events into the queue collectors.
type QueueObserver struct{}

var _ queue.Observer = QueueObserver{}

func (QueueObserver) Enqueued() {
	QueueEnqueued.Inc()
}

func (QueueObserver) Saturated() {
	QueueSaturated.Inc()
}

func (QueueObserver) Started(wait time.Duration) {
	QueueRunning.Inc()
	QueueWait.Observe(wait.Seconds())
}

func (QueueObserver) Finished(status queue.Status, _ time.Duration) {
	QueueRunning.Dec()
	QueueCompleted.WithLabelValues(string(status)).Inc()
}

func (QueueObserver) Dropped(status queue.Status) {
	QueueCompleted.WithLabelValues(string(status)).Inc()
}
