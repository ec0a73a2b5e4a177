// Package metrics defines observability hooks for site builds.
package metrics

import "time"

// PageResultLabel enumerates per-page outcome categories for counters.
type PageResultLabel string

const (
	PageBuilt   PageResultLabel = "built"
	PageSkipped PageResultLabel = "skipped"
	PageFailed  PageResultLabel = "failed"
)

// Recorder defines observability hooks for build and pipeline metrics.
// Implementations may forward to Prometheus, OpenTelemetry, etc.
type Recorder interface {
	ObserveBuildDuration(d time.Duration)
	ObserveStageDuration(stage string, d time.Duration)
	IncPageResult(result PageResultLabel)
	IncBuildOutcome(outcome string) // outcome: success|partial|failed|canceled
	SetWorkerCount(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not
// configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncPageResult(PageResultLabel)              {}
func (NoopRecorder) IncBuildOutcome(string)                     {}
func (NoopRecorder) SetWorkerCount(int)                         {}
