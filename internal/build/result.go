package build

import "time"

// Status is a per-unit build outcome.
type Status string

const (
	StatusBuilt   Status = "built"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// PageResult is the outcome of one page unit.
type PageResult struct {
	Unit     PageUnit
	Status   Status
	Err      error
	Duration time.Duration
}

// Result summarizes one build invocation.
type Result struct {
	BuildID  string
	Pages    []PageResult
	Built    int
	Skipped  int
	Failed   int
	Canceled bool
	Duration time.Duration
}

// Outcome classifies the run: success, partial (some units failed),
// failed (nothing produced), or canceled.
func (r *Result) Outcome() string {
	switch {
	case r.Canceled:
		return "canceled"
	case r.Failed == 0:
		return "success"
	case r.Built+r.Skipped > 0:
		return "partial"
	default:
		return "failed"
	}
}

// Errors returns the unit errors of all failed pages.
func (r *Result) Errors() []error {
	var errs []error
	for _, p := range r.Pages {
		if p.Status == StatusFailed && p.Err != nil {
			errs = append(errs, p.Err)
		}
	}
	return errs
}
