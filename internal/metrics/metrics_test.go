package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordTask(OutcomeSuccess)
	r.RecordCopy(ModeSingle, 10)
	r.RecordDelete()
	r.TaskStarted()
	r.RecordRun("completed")

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"s3copy_tasks_total",
		"s3copy_copies_total",
		"s3copy_bytes_copied_total",
		"s3copy_source_deletes_total",
		"s3copy_tasks_in_flight",
		"s3copy_runs_total",
	} {
		assert.True(t, names[want], "missing metric %s", want)
	}
}

func TestNew_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := New(reg)
	second := New(reg)

	first.RecordTask(OutcomeFail)
	second.RecordTask(OutcomeFail)

	assert.Equal(t, float64(2), testutil.ToFloat64(first.tasks.WithLabelValues(OutcomeFail)))
}

func TestRecorder_Values(t *testing.T) {
	r := New(nil)

	r.RecordCopy(ModeMultipart, 100)
	r.RecordCopy(ModeSingle, 0)
	r.TaskStarted()
	r.TaskStarted()
	r.TaskDone()

	assert.Equal(t, float64(1), testutil.ToFloat64(r.copies.WithLabelValues(ModeMultipart)))
	assert.Equal(t, float64(100), testutil.ToFloat64(r.bytes))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.inFlight))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.RecordTask(OutcomeSuccess)
		r.RecordCopy(ModeSingle, 1)
		r.RecordDelete()
		r.TaskStarted()
		r.TaskDone()
		r.RecordRun("failed")
	})
}
