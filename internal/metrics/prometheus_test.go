package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorderRegistersAndCounts(t *testing.T) {
	reg := prom.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.ObserveBuildDuration(120 * time.Millisecond)
	rec.ObserveStageDuration("minify", 5*time.Millisecond)
	rec.IncPageResult(PageBuilt)
	rec.IncPageResult(PageBuilt)
	rec.IncPageResult(PageFailed)
	rec.IncBuildOutcome("partial")
	rec.SetWorkerCount(4)

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := map[string]bool{}
	for _, f := range families {
		byName[f.GetName()] = true
	}
	for _, name := range []string{
		"nitro_build_duration_seconds",
		"nitro_stage_duration_seconds",
		"nitro_page_results_total",
		"nitro_build_outcomes_total",
		"nitro_build_workers",
	} {
		assert.True(t, byName[name], "missing metric %s", name)
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var rec *PrometheusRecorder
	rec.ObserveBuildDuration(time.Second)
	rec.ObserveStageDuration("write", time.Second)
	rec.IncPageResult(PageSkipped)
	rec.IncBuildOutcome("success")
	rec.SetWorkerCount(1)
}

func TestNoopRecorderSatisfiesInterface(t *testing.T) {
	var _ Recorder = NoopRecorder{}
	var _ Recorder = NewPrometheusRecorder(nil)
}
