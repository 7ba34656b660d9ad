package jobs

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/codeatlas/internal/graph"
	"github.com/dshills/codeatlas/internal/rag"
	"github.com/dshills/codeatlas/pkg/types"
)

const (
	// DefaultWorkers is the worker-pool size when the caller doesn't say.
	DefaultWorkers = 2

	// DefaultQueueSize bounds the shared work queue. A full queue blocks
	// directory enqueues and rejects non-blocking content enqueues: this
	// is deliberate backpressure, not a failure.
	DefaultQueueSize = 100
)

// Status is the process-wide aggregate, safe to poll frequently.
type Status struct {
	QueuedItems    int
	ProcessedItems int64
	FailedItems    int64
	IsProcessing   bool
	ActiveJobs     int
}

// Options configure an Indexer.
type Options struct {
	Workers   int
	QueueSize int
	Directory rag.DirectoryOptions // Walk options applied to every directory job
}

type workItem struct {
	jobID   string
	dir     string
	content *types.Content
}

// jobHandle pairs a job's cancellation context with its cancel func. The
// context is created at enqueue time so a cancel issued before any worker
// picks the job up is already observable when processing starts.
type jobHandle struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Indexer is the background indexing service: a bounded work queue read by
// N worker goroutines, with per-job progress records that callers can
// poll the moment an enqueue returns.
type Indexer struct {
	rag    *rag.Store
	graph  *graph.Service // Optional sink for ingester graph output
	opts   Options
	logger *log.Logger

	queue chan workItem

	jobsMu  sync.RWMutex
	jobs    map[string]*types.IndexJob
	handles map[string]*jobHandle

	processed  atomic.Int64
	failed     atomic.Int64
	activeJobs atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// New creates an Indexer. graphSvc may be nil when structural output
// should be discarded.
func New(ragStore *rag.Store, graphSvc *graph.Service, opts Options) *Indexer {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Indexer{
		rag:     ragStore,
		graph:   graphSvc,
		opts:    opts,
		logger:  log.New(os.Stderr, "[jobs] ", log.LstdFlags),
		queue:   make(chan workItem, opts.QueueSize),
		jobs:    make(map[string]*types.IndexJob),
		handles: make(map[string]*jobHandle),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the worker pool. Safe to call once; later calls are
// no-ops.
func (ix *Indexer) Start() {
	ix.once.Do(func() {
		for i := 0; i < ix.opts.Workers; i++ {
			ix.wg.Add(1)
			go ix.worker()
		}
	})
}

// Stop cancels all in-flight work and waits for the workers to exit.
// Queued items that never reached a worker stay in their Queued state.
func (ix *Indexer) Stop() {
	ix.cancel()
	ix.wg.Wait()
}

// QueueContent enqueues a single content item without blocking. Returns
// the job id and true, or "" and false when the queue is full. A full
// queue is a routine backpressure condition, not an error.
func (ix *Indexer) QueueContent(content types.Content) (string, bool) {
	job := ix.newJob(content.ID)
	job.TotalItems = 1
	c := content

	select {
	case ix.queue <- workItem{jobID: job.JobID, content: &c}:
		return job.JobID, true
	default:
		ix.dropJob(job.JobID)
		return "", false
	}
}

// QueueDirectory enqueues a whole-directory indexing job and returns its
// id. The job record exists, state Queued, before this returns, so the id
// is immediately pollable. Blocks when the queue is full until a worker
// drains an item or the indexer shuts down.
func (ix *Indexer) QueueDirectory(path string) (string, error) {
	job := ix.newJob(path)

	select {
	case ix.queue <- workItem{jobID: job.JobID, dir: path}:
		return job.JobID, nil
	case <-ix.ctx.Done():
		ix.dropJob(job.JobID)
		return "", fmt.Errorf("indexer is shut down: %w", ix.ctx.Err())
	}
}

// GetStatus returns the process-wide aggregate counters.
func (ix *Indexer) GetStatus() Status {
	active := int(ix.activeJobs.Load())
	return Status{
		QueuedItems:    len(ix.queue),
		ProcessedItems: ix.processed.Load(),
		FailedItems:    ix.failed.Load(),
		IsProcessing:   active > 0,
		ActiveJobs:     active,
	}
}

// GetJobStatus returns a snapshot of one job, or nil for an unknown id.
// Unknown ids are a routine polling condition, not an error.
func (ix *Indexer) GetJobStatus(jobID string) *types.IndexJob {
	ix.jobsMu.RLock()
	defer ix.jobsMu.RUnlock()
	job, ok := ix.jobs[jobID]
	if !ok {
		return nil
	}
	return job.Clone()
}

// CancelJob requests cooperative cancellation of a job. Returns false for
// unknown ids and jobs already in a terminal state. Cancellation is
// checked at file granularity, so a long directory job stops after the
// file it is currently processing.
func (ix *Indexer) CancelJob(jobID string) bool {
	ix.jobsMu.Lock()
	defer ix.jobsMu.Unlock()

	job, ok := ix.jobs[jobID]
	if !ok || job.State.Terminal() {
		return false
	}
	if handle, ok := ix.handles[jobID]; ok {
		handle.cancel()
	}
	return true
}

func (ix *Indexer) newJob(source string) *types.IndexJob {
	job := &types.IndexJob{
		JobID:  uuid.NewString(),
		Source: source,
		State:  types.JobQueued,
	}
	jobCtx, cancel := context.WithCancel(ix.ctx)

	ix.jobsMu.Lock()
	ix.jobs[job.JobID] = job
	ix.handles[job.JobID] = &jobHandle{ctx: jobCtx, cancel: cancel}
	ix.jobsMu.Unlock()
	return job
}

func (ix *Indexer) dropJob(jobID string) {
	ix.jobsMu.Lock()
	if handle, ok := ix.handles[jobID]; ok {
		handle.cancel()
		delete(ix.handles, jobID)
	}
	delete(ix.jobs, jobID)
	ix.jobsMu.Unlock()
}

func (ix *Indexer) worker() {
	defer ix.wg.Done()
	for {
		select {
		case <-ix.ctx.Done():
			return
		case item := <-ix.queue:
			ix.process(item)
		}
	}
}

func (ix *Indexer) process(item workItem) {
	jobCtx := ix.jobContext(item.jobID)

	ix.activeJobs.Add(1)
	defer ix.activeJobs.Add(-1)

	if item.content != nil {
		ix.processContent(jobCtx, item.jobID, *item.content)
	} else {
		ix.processDirectory(jobCtx, item.jobID, item.dir)
	}
}

// jobContext returns the cancellation context created for the job at
// enqueue time, so a cancel issued before a worker picked the job up is
// already observable.
func (ix *Indexer) jobContext(jobID string) context.Context {
	ix.jobsMu.RLock()
	defer ix.jobsMu.RUnlock()
	if handle, ok := ix.handles[jobID]; ok {
		return handle.ctx
	}
	return ix.ctx
}

func (ix *Indexer) processContent(ctx context.Context, jobID string, content types.Content) {
	ix.updateJob(jobID, func(job *types.IndexJob) {
		job.State = types.JobProcessing
		job.StartedAt = time.Now()
	})

	if err := ctx.Err(); err != nil {
		ix.finishJob(jobID, types.JobCancelled, "")
		return
	}

	if err := ix.rag.Index(ctx, content); err != nil {
		ix.failed.Add(1)
		ix.updateJob(jobID, func(job *types.IndexJob) { job.FailedItems = 1 })
		ix.finishJob(jobID, types.JobFailed, err.Error())
		ix.logger.Printf("failed to index content %s: %v", content.ID, err)
		return
	}

	ix.processed.Add(1)
	ix.updateJob(jobID, func(job *types.IndexJob) { job.ProcessedItems = 1 })
	ix.finishJob(jobID, types.JobCompleted, "")
}

func (ix *Indexer) processDirectory(ctx context.Context, jobID, dir string) {
	ix.updateJob(jobID, func(job *types.IndexJob) {
		job.State = types.JobProcessing
		job.StartedAt = time.Now()
	})

	// Discover first so progress has a denominator from the first file
	files, err := ix.rag.DiscoverFiles(dir, ix.opts.Directory)
	if err != nil {
		ix.finishJob(jobID, types.JobFailed, err.Error())
		ix.logger.Printf("directory job %s failed: %v", jobID, err)
		return
	}
	ix.updateJob(jobID, func(job *types.IndexJob) { job.TotalItems = len(files) })

	for _, file := range files {
		if ctx.Err() != nil {
			ix.finishJob(jobID, types.JobCancelled, "")
			return
		}

		if err := ix.indexFile(ctx, file, dir); err != nil {
			// Cancellation surfacing through an in-flight file is not a
			// file failure
			if ctx.Err() != nil {
				ix.finishJob(jobID, types.JobCancelled, "")
				return
			}
			// One bad file never aborts the job
			ix.failed.Add(1)
			ix.updateJob(jobID, func(job *types.IndexJob) { job.FailedItems++ })
			ix.logger.Printf("failed to index %s: %v", file, err)
			continue
		}
		ix.processed.Add(1)
		ix.updateJob(jobID, func(job *types.IndexJob) { job.ProcessedItems++ })
	}

	if ix.graph != nil {
		if err := ix.graph.SaveChanges(ctx); err != nil {
			ix.logger.Printf("failed to save graph for job %s: %v", jobID, err)
		}
	}

	ix.finishJob(jobID, types.JobCompleted, "")
}

func (ix *Indexer) indexFile(ctx context.Context, path, root string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	result, err := ix.rag.IndexFileContent(ctx, path, data, root)
	if err != nil {
		return err
	}
	if ix.graph != nil && result != nil {
		ix.graph.AddResult(result.Nodes, result.Edges)
	}
	return nil
}

func (ix *Indexer) updateJob(jobID string, fn func(*types.IndexJob)) {
	ix.jobsMu.Lock()
	defer ix.jobsMu.Unlock()
	if job, ok := ix.jobs[jobID]; ok {
		fn(job)
	}
}

func (ix *Indexer) finishJob(jobID string, state types.JobState, errMsg string) {
	ix.jobsMu.Lock()
	defer ix.jobsMu.Unlock()

	job, ok := ix.jobs[jobID]
	if !ok {
		return
	}
	job.State = state
	job.CompletedAt = time.Now()
	if errMsg != "" {
		job.Error = errMsg
	}
	if handle, ok := ix.handles[jobID]; ok {
		handle.cancel()
		delete(ix.handles, jobID)
	}
}
