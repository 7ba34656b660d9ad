package types

import "time"

// JobState is the lifecycle state of a background index job.
// Queued -> Processing -> {Completed, Failed, Cancelled}; the three
// right-hand states are terminal.
type JobState string

const (
	JobQueued     JobState = "queued"
	JobProcessing JobState = "processing"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
	JobCancelled  JobState = "cancelled"
)

// Terminal reports whether the state is final.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// IndexJob tracks one background indexing run. The record is created
// synchronously at enqueue time so callers can poll immediately, and is
// mutated only by the worker that owns the job. A job with some per-file
// failures still completes as JobCompleted with FailedItems > 0; JobFailed
// is reserved for whole-job failures.
type IndexJob struct {
	JobID          string
	Source         string
	State          JobState
	TotalItems     int
	ProcessedItems int
	FailedItems    int
	StartedAt      time.Time
	CompletedAt    time.Time
	Error          string
}

// ProgressPercent returns processed*100/total, or 0 before discovery has
// recorded a total.
func (j *IndexJob) ProgressPercent() int {
	if j.TotalItems == 0 {
		return 0
	}
	return j.ProcessedItems * 100 / j.TotalItems
}

// Clone returns a copy safe to hand to pollers while the worker keeps
// mutating the original.
func (j *IndexJob) Clone() *IndexJob {
	c := *j
	return &c
}
