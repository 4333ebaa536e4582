package factmetrics_test

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factline/factrt/factmetrics"
)

func TestObserveFetchDurationRecordsAgainstTheClassLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := factmetrics.New("factrt_test", reg)

	h.ObserveFetchDuration("widget", 250*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.True(t, sampleCountWithLabel(families, "factrt_test_fetch_duration_seconds", "class", "widget") > 0, "expected a sample for the fetch duration histogram under class=widget")
}

func TestObserveUpdateDurationTagsLockedState(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := factmetrics.New("factrt_test", reg)

	h.ObserveUpdateDuration("widget", false, 10*time.Millisecond)
	h.ObserveUpdateDuration("widget", true, 20*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Equal(t, 1, sampleCountWithLabel(families, "factrt_test_managed_projection_update_duration_seconds", "locked", "false"))
	assert.Equal(t, 1, sampleCountWithLabel(families, "factrt_test_managed_projection_update_duration_seconds", "locked", "true"))
}

func TestSetFetchSizeIsGaugeLike(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := factmetrics.New("factrt_test", reg)

	h.SetFetchSize("widget", 1024)
	h.SetFetchSize("widget", 512)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Equal(t, float64(512), gaugeValue(families, "factrt_test_fetch_size_bytes"))
}

func TestNilHooksAreInfallible(t *testing.T) {
	var h *factmetrics.Hooks
	assert.NotPanics(t, func() {
		h.ObserveFetchDuration("x", time.Second)
		h.ObserveFindDuration("x", time.Second)
		h.ObserveUpdateDuration("x", false, time.Second)
		h.ObserveEventLatency("x", time.Second)
		h.SetFetchSize("x", 1)
	})
}

func TestObserveEventLatencyIgnoresNegativeAge(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := factmetrics.New("factrt_test", reg)

	h.ObserveEventLatency("widget", -time.Second)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Equal(t, 0, sampleCount(families, "factrt_test_event_processing_latency_seconds"))
}

func sampleCount(families []*dto.MetricFamily, name string) int {
	for _, f := range families {
		if f.GetName() == name {
			n := 0
			for _, m := range f.Metric {
				n += int(m.GetHistogram().GetSampleCount())
			}
			return n
		}
	}
	return 0
}

func sampleCountWithLabel(families []*dto.MetricFamily, name, labelName, labelValue string) int {
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		n := 0
		for _, m := range f.Metric {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == labelName && lp.GetValue() == labelValue {
					n += int(m.GetHistogram().GetSampleCount())
				}
			}
		}
		return n
	}
	return 0
}

func gaugeValue(families []*dto.MetricFamily, name string) float64 {
	for _, f := range families {
		if f.GetName() == name {
			for _, m := range f.Metric {
				return m.GetGauge().GetValue()
			}
		}
	}
	return 0
}
