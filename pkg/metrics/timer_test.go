package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func histogramSampleCount(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, h.Write(&m))
	return m.GetHistogram().GetSampleCount()
}

func TestTimer_DurationCoversElapsedTime(t *testing.T) {
	timer := NewTimer()
	time.Sleep(20 * time.Millisecond)

	d := timer.Duration()
	assert.GreaterOrEqual(t, d, 20*time.Millisecond)
}

func TestTimer_ObserveDurationRecordsOneSample(t *testing.T) {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_apply_duration_seconds",
		Help:    "test histogram",
		Buckets: prometheus.DefBuckets,
	})

	timer := NewTimer()
	time.Sleep(5 * time.Millisecond)
	timer.ObserveDuration(h)

	assert.EqualValues(t, 1, histogramSampleCount(t, h))
}

func TestTimer_ObserveDurationVecRecordsUnderLabel(t *testing.T) {
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "test_op_duration_seconds",
		Help:    "test labeled histogram",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	timer := NewTimer()
	timer.ObserveDurationVec(vec, "snapshot")

	h, err := vec.GetMetricWithLabelValues("snapshot")
	require.NoError(t, err)
	assert.EqualValues(t, 1, histogramSampleCount(t, h.(prometheus.Histogram)))
}

func TestTimer_SuccessiveDurationsAreMonotonic(t *testing.T) {
	timer := NewTimer()
	first := timer.Duration()
	time.Sleep(time.Millisecond)
	second := timer.Duration()
	assert.Greater(t, second, first)
}
