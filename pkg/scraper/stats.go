package scraper

import (
	"time"

	"github.com/google/uuid"
)

// TargetState is the lifecycle position of one target's harvest.
type TargetState string

const (
	StateNotStarted     TargetState = "not_started"
	StateAuthenticating TargetState = "authenticating"
	StateCollecting     TargetState = "collecting"
	StateCompleted      TargetState = "completed"
	StateFailed         TargetState = "failed"
)

// TargetResult summarizes one target after the run.
type TargetResult struct {
	Target    string
	State     TargetState
	Collected int
	Persisted int
	Err       error
}

// RunStats aggregates counters across all targets of one run. Counters only
// grow; a failed item never rolls back a count that already happened.
type RunStats struct {
	RunID          string
	ItemsCollected int
	ItemsPersisted int
	MediaFetched   int
	Errors         int
	AuthFailures   int
	StartedAt      time.Time
	FinishedAt     time.Time
	Targets        []TargetResult
}

// newRunStats starts the counters for a fresh run.
func newRunStats() *RunStats {
	return &RunStats{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
	}
}

// Duration returns the wall time of the run.
func (s *RunStats) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// AllTargetsFailed reports whether every target ended in StateFailed.
func (s *RunStats) AllTargetsFailed() bool {
	if len(s.Targets) == 0 {
		return false
	}
	for _, t := range s.Targets {
		if t.State != StateFailed {
			return false
		}
	}
	return true
}
