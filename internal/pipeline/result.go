package pipeline

import (
	"errors"
	"time"

	"karaokeprep/internal/stage"
)

// Kind discriminates Result.
type Kind int

const (
	KindSkipped Kind = iota + 1
	KindSucceeded
	KindFailed
	KindPlanned
)

func (k Kind) String() string {
	switch k {
	case KindSkipped:
		return "skipped"
	case KindSucceeded:
		return "succeeded"
	case KindFailed:
		return "failed"
	case KindPlanned:
		return "planned"
	default:
		return "unknown"
	}
}

// Result is the outcome of one stage. Outputs is set for Skipped and
// Succeeded, Err only for Failed.
type Result struct {
	Stage    string
	Kind     Kind
	Outputs  []string
	Err      error
	Duration time.Duration
	// StaleLockRecovered marks an exclusive stage whose lock acquisition
	// removed a record left by a crashed process.
	StaleLockRecovered bool
}

func Skipped(name string, outputs []string) Result {
	return Result{Stage: name, Kind: KindSkipped, Outputs: outputs}
}

func Succeeded(name string, outputs []string) Result {
	return Result{Stage: name, Kind: KindSucceeded, Outputs: outputs}
}

func Failed(name string, err error) Result {
	return Result{Stage: name, Kind: KindFailed, Err: err}
}

func Planned(name string) Result {
	return Result{Stage: name, Kind: KindPlanned}
}

// Track aggregates one pipeline run. It is not persisted.
type Track struct {
	Job       *stage.Job
	Stages    []string
	RequestID string
	Started   time.Time
	Finished  time.Time

	results []Result
	index   map[string]int
}

// NewTrack prepares a Track for job.
func NewTrack(job *stage.Job) *Track {
	return &Track{Job: job, index: make(map[string]int)}
}

func (t *Track) record(r Result) {
	if t.index == nil {
		t.index = make(map[string]int)
	}
	if i, ok := t.index[r.Stage]; ok {
		t.results[i] = r
		return
	}
	t.index[r.Stage] = len(t.results)
	t.results = append(t.results, r)
}

// Result returns the outcome recorded for stage name.
func (t *Track) Result(name string) (Result, bool) {
	i, ok := t.index[name]
	if !ok {
		return Result{}, false
	}
	return t.results[i], true
}

// Summary returns results in execution order.
func (t *Track) Summary() []Result {
	out := make([]Result, len(t.results))
	copy(out, t.results)
	return out
}

// Failed reports whether any stage failed.
func (t *Track) Failed() bool {
	for _, r := range t.results {
		if r.Kind == KindFailed {
			return true
		}
	}
	return false
}

// FailedStages lists failed stage names in order.
func (t *Track) FailedStages() []string {
	var names []string
	for _, r := range t.results {
		if r.Kind == KindFailed {
			names = append(names, r.Stage)
		}
	}
	return names
}

// Err joins every stage error, or returns nil when nothing failed.
func (t *Track) Err() error {
	var errs []error
	for _, r := range t.results {
		if r.Kind == KindFailed && r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}

// Counts tallies results by kind.
func (t *Track) Counts() map[Kind]int {
	counts := make(map[Kind]int, 4)
	for _, r := range t.results {
		counts[r.Kind]++
	}
	return counts
}
