package ingest

import (
	"errors"
	"fmt"
)

// FailureKind classifies a non-fatal collection failure.
type FailureKind string

const (
	FailureTransientSource    FailureKind = "transient_source"
	FailureCacheIO            FailureKind = "cache_io"
	FailureMalformedCandidate FailureKind = "malformed_candidate"
)

var (
	ErrMissingTitle = errors.New("candidate has no title")
	ErrNoCandidates = errors.New("no candidate regions matched")
)

// Failure is a typed, loggable record of something that degraded a run.
type Failure struct {
	Kind   FailureKind
	Source string
	URL    string
	Err    error
}

func (f Failure) Error() string {
	if f.URL != "" {
		return fmt.Sprintf("%s [%s] %s: %v", f.Kind, f.Source, f.URL, f.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", f.Kind, f.Source, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// CollectReport aggregates the per-source results of one collection run.
type CollectReport struct {
	Sources    []SourceResult
	FromCache  bool
	Duplicates int
	Failures   []Failure
}

// Failed returns the failures of the given kind.
func (r CollectReport) Failed(kind FailureKind) []Failure {
	var out []Failure
	for _, f := range r.Failures {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}
