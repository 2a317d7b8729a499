// Package metrics exposes Prometheus collectors for copy runs.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Task outcomes used as the "outcome" label.
const (
	OutcomeSuccess = "success"
	OutcomeFail    = "fail"
	OutcomeSkipped = "skipped"
)

// Copy modes used as the "mode" label.
const (
	ModeSingle    = "single"
	ModeMultipart = "multipart"
)

// Recorder owns the collectors of one registry. A nil *Recorder records
// nothing.
type Recorder struct {
	tasks    *prometheus.CounterVec
	copies   *prometheus.CounterVec
	bytes    prometheus.Counter
	deletes  prometheus.Counter
	inFlight prometheus.Gauge
	runs     *prometheus.CounterVec
}

// New builds a Recorder and registers it with reg. Collectors that are
// already registered on reg are reused, so several orchestrators can share
// one registry. A nil reg leaves the collectors unregistered.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		tasks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3copy_tasks_total",
				Help: "Total number of finished object tasks by outcome.",
			},
			[]string{"outcome"},
		),
		copies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3copy_copies_total",
				Help: "Total number of object copies by mode.",
			},
			[]string{"mode"},
		),
		bytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "s3copy_bytes_copied_total",
				Help: "Total number of source bytes copied.",
			},
		),
		deletes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "s3copy_source_deletes_total",
				Help: "Total number of sources deleted after a verified copy.",
			},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "s3copy_tasks_in_flight",
				Help: "Number of object tasks currently running.",
			},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3copy_runs_total",
				Help: "Total number of runs by final state.",
			},
			[]string{"state"},
		),
	}

	if reg != nil {
		r.tasks = register(reg, r.tasks)
		r.copies = register(reg, r.copies)
		r.bytes = register(reg, r.bytes)
		r.deletes = register(reg, r.deletes)
		r.inFlight = register(reg, r.inFlight)
		r.runs = register(reg, r.runs)
	}
	return r
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// RecordTask counts a finished object task.
func (r *Recorder) RecordTask(outcome string) {
	if r == nil {
		return
	}
	r.tasks.WithLabelValues(outcome).Inc()
}

// RecordCopy counts a copy and the bytes it moved.
func (r *Recorder) RecordCopy(mode string, bytes int64) {
	if r == nil {
		return
	}
	r.copies.WithLabelValues(mode).Inc()
	if bytes > 0 {
		r.bytes.Add(float64(bytes))
	}
}

// RecordDelete counts a deleted source.
func (r *Recorder) RecordDelete() {
	if r == nil {
		return
	}
	r.deletes.Inc()
}

// TaskStarted increments the in-flight gauge. Call TaskDone when it ends.
func (r *Recorder) TaskStarted() {
	if r == nil {
		return
	}
	r.inFlight.Inc()
}

// TaskDone decrements the in-flight gauge.
func (r *Recorder) TaskDone() {
	if r == nil {
		return
	}
	r.inFlight.Dec()
}

// RecordRun counts a finished run by its final state.
func (r *Recorder) RecordRun(state string) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(state).Inc()
}
