// Package jobs runs background indexing work through a bounded queue and
// a fixed worker pool.
//
// Callers enqueue either a single content item (QueueContent, non-blocking,
// rejected with a false return when the queue is full) or a whole directory
// (QueueDirectory, which blocks until a queue slot frees up). Every enqueue
// creates an IndexJob record synchronously, so the returned job id can be
// polled with GetJobStatus before any worker has touched the job.
//
// Directory jobs discover their file set first, so TotalItems is known from
// the first processed file onward. Individual file failures are counted and
// logged but never abort the job; a run with failures still finishes as
// JobCompleted with FailedItems > 0. JobFailed is reserved for whole-job
// failures such as an unreadable root directory.
//
// Cancellation is cooperative at file granularity: CancelJob trips a
// per-job context created at enqueue time, so cancelling a job that is
// still queued takes effect the moment a worker picks it up.
package jobs
