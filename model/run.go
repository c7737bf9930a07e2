package model

import "time"

// RunStatus is the lifecycle state of a recorded sweep run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// SweepRun is the bookkeeping record of one sweep. LastInstant is the last
// instant whose step was fully committed; it is zero until the first commit.
type SweepRun struct {
	ID          string
	Window      SweepWindow
	ObjectCount int
	Status      RunStatus
	StartedAt   time.Time
	FinishedAt  time.Time
	LastInstant time.Time
}

// Committed reports whether at least one step of the run has been committed.
func (r SweepRun) Committed() bool {
	return !r.LastInstant.IsZero()
}
