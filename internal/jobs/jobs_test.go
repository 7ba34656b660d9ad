package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codeatlas/internal/embedder"
	"github.com/dshills/codeatlas/internal/graph"
	"github.com/dshills/codeatlas/internal/ingest"
	"github.com/dshills/codeatlas/internal/rag"
	"github.com/dshills/codeatlas/internal/storage"
	"github.com/dshills/codeatlas/pkg/types"
)

func newTestIndexer(t *testing.T, opts Options) (*Indexer, *storage.Store, *graph.Service) {
	t.Helper()

	db, err := storage.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	emb, err := embedder.New(embedder.Config{Provider: embedder.ProviderLocal})
	require.NoError(t, err)

	ragStore := rag.New(db, emb, ingest.DefaultRegistry())
	graphSvc := graph.New(db)

	ix := New(ragStore, graphSvc, opts)
	t.Cleanup(ix.Stop)
	return ix, db, graphSvc
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, body := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return root
}

func waitTerminal(t *testing.T, ix *Indexer, jobID string) *types.IndexJob {
	t.Helper()
	require.Eventually(t, func() bool {
		job := ix.GetJobStatus(jobID)
		return job != nil && job.State.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
	return ix.GetJobStatus(jobID)
}

func TestQueueDirectory_JobObservableBeforeWorkerStarts(t *testing.T) {
	ix, _, _ := newTestIndexer(t, Options{})

	// No Start(): nothing will dequeue
	jobID, err := ix.QueueDirectory(t.TempDir())
	require.NoError(t, err)

	job := ix.GetJobStatus(jobID)
	require.NotNil(t, job)
	assert.Equal(t, types.JobQueued, job.State)
	assert.Equal(t, 0, job.ProgressPercent())
}

func TestGetJobStatus_UnknownIDIsNil(t *testing.T) {
	ix, _, _ := newTestIndexer(t, Options{})
	assert.Nil(t, ix.GetJobStatus("no-such-job"))
}

func TestQueueDirectory_CompletesAndCountsEmptyFileAsProcessed(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.txt": "first document body",
		"b.txt": "second document body",
		"c.txt": "", // 0-byte file: processed without chunks, not failed
	})

	ix, db, _ := newTestIndexer(t, Options{Directory: rag.DirectoryOptions{Recursive: true}})
	ix.Start()

	jobID, err := ix.QueueDirectory(root)
	require.NoError(t, err)

	job := waitTerminal(t, ix, jobID)
	assert.Equal(t, types.JobCompleted, job.State)
	assert.Equal(t, 3, job.TotalItems)
	assert.Equal(t, 3, job.ProcessedItems)
	assert.Equal(t, 0, job.FailedItems)
	assert.Equal(t, 100, job.ProgressPercent())
	assert.False(t, job.StartedAt.IsZero())
	assert.False(t, job.CompletedAt.IsZero())

	stats, err := db.Stats(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DocumentCount) // Empty file stored nothing
}

func TestQueueDirectory_PopulatesGraph(t *testing.T) {
	root := writeTree(t, map[string]string{
		"svc.go": "package svc\n\ntype Runner struct{}\n\nfunc (r Runner) Run() {}\n",
	})

	ix, _, graphSvc := newTestIndexer(t, Options{Directory: rag.DirectoryOptions{Recursive: true}})
	ix.Start()

	jobID, err := ix.QueueDirectory(root)
	require.NoError(t, err)
	job := waitTerminal(t, ix, jobID)
	require.Equal(t, types.JobCompleted, job.State)

	nodes, err := graphSvc.FindNodes(context.Background(), "Runner", "", "")
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
}

func TestQueueDirectory_MissingDirectoryFails(t *testing.T) {
	ix, _, _ := newTestIndexer(t, Options{})
	ix.Start()

	jobID, err := ix.QueueDirectory("/definitely/not/a/dir")
	require.NoError(t, err)

	job := waitTerminal(t, ix, jobID)
	assert.Equal(t, types.JobFailed, job.State)
	assert.NotEmpty(t, job.Error)
}

func TestQueueDirectory_PerFileFailureDoesNotFailJob(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("file permissions are not enforced for root")
	}
	root := writeTree(t, map[string]string{
		"good.txt":   "readable content",
		"locked.txt": "unreadable content",
	})
	require.NoError(t, os.Chmod(filepath.Join(root, "locked.txt"), 0o000))
	t.Cleanup(func() { _ = os.Chmod(filepath.Join(root, "locked.txt"), 0o644) })

	ix, _, _ := newTestIndexer(t, Options{Directory: rag.DirectoryOptions{Recursive: true}})
	ix.Start()

	jobID, err := ix.QueueDirectory(root)
	require.NoError(t, err)

	job := waitTerminal(t, ix, jobID)
	assert.Equal(t, types.JobCompleted, job.State)
	assert.Equal(t, 2, job.TotalItems)
	assert.Equal(t, 1, job.ProcessedItems)
	assert.Equal(t, 1, job.FailedItems)
}

func TestCancelBeforeStart(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.txt": "alpha",
		"b.txt": "beta",
	})

	ix, db, _ := newTestIndexer(t, Options{})

	jobID, err := ix.QueueDirectory(root)
	require.NoError(t, err)
	assert.True(t, ix.CancelJob(jobID))

	// Worker starts after the cancel was issued
	ix.Start()

	job := waitTerminal(t, ix, jobID)
	assert.Equal(t, types.JobCancelled, job.State)
	assert.Equal(t, 0, job.ProcessedItems)

	stats, err := db.Stats(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.ChunkCount)
}

// gateEmbedder blocks each batch call until a token is released, letting a
// test freeze a directory job between files.
type gateEmbedder struct {
	embedder.Embedder
	gate chan struct{}
}

func (g *gateEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]*embedder.Embedding, error) {
	select {
	case <-g.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.Embedder.EmbedBatch(ctx, texts)
}

func TestCancelMidRun(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < 10; i++ {
		files[fmt.Sprintf("f%02d.txt", i)] = fmt.Sprintf("document body %d", i)
	}
	root := writeTree(t, files)

	db, err := storage.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	local, err := embedder.New(embedder.Config{Provider: embedder.ProviderLocal})
	require.NoError(t, err)
	gated := &gateEmbedder{Embedder: local, gate: make(chan struct{}, 10)}

	ragStore := rag.New(db, gated, ingest.DefaultRegistry())
	ix := New(ragStore, nil, Options{Workers: 1, Directory: rag.DirectoryOptions{Recursive: true}})
	t.Cleanup(ix.Stop)

	// Let exactly two files through, then the worker blocks on the third
	gated.gate <- struct{}{}
	gated.gate <- struct{}{}

	ix.Start()
	jobID, err := ix.QueueDirectory(root)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		job := ix.GetJobStatus(jobID)
		return job != nil && job.ProcessedItems == 2
	}, 5*time.Second, 10*time.Millisecond)

	require.True(t, ix.CancelJob(jobID))

	job := waitTerminal(t, ix, jobID)
	assert.Equal(t, types.JobCancelled, job.State)
	assert.Equal(t, 10, job.TotalItems)
	assert.Equal(t, 2, job.ProcessedItems)
	assert.Equal(t, 0, job.FailedItems)

	// The remaining files were never indexed
	stats, err := db.Stats(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DocumentCount)
}

func TestCancelJob_UnknownOrTerminal(t *testing.T) {
	ix, _, _ := newTestIndexer(t, Options{})
	ix.Start()

	assert.False(t, ix.CancelJob("no-such-job"))

	jobID, err := ix.QueueDirectory(t.TempDir())
	require.NoError(t, err)
	waitTerminal(t, ix, jobID)
	assert.False(t, ix.CancelJob(jobID))
}

func TestQueueContent_NonBlockingBackpressure(t *testing.T) {
	ix, _, _ := newTestIndexer(t, Options{QueueSize: 1})
	// Not started: the single slot stays occupied

	_, ok := ix.QueueContent(types.Content{ID: "/a", Text: "alpha", Type: types.ContentTypePlainText})
	assert.True(t, ok)

	jobID, ok := ix.QueueContent(types.Content{ID: "/b", Text: "beta", Type: types.ContentTypePlainText})
	assert.False(t, ok)
	assert.Empty(t, jobID)

	// The rejected enqueue leaves no orphaned job record
	assert.Nil(t, ix.GetJobStatus(jobID))
}

func TestQueueContent_Processes(t *testing.T) {
	ix, db, _ := newTestIndexer(t, Options{})
	ix.Start()

	jobID, ok := ix.QueueContent(types.Content{ID: "/doc", Text: "some text", Type: types.ContentTypePlainText})
	require.True(t, ok)

	job := waitTerminal(t, ix, jobID)
	assert.Equal(t, types.JobCompleted, job.State)
	assert.Equal(t, 1, job.ProcessedItems)

	count, err := db.CountChunks(context.Background(), "/doc")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGetStatus_Aggregates(t *testing.T) {
	root := writeTree(t, map[string]string{"a.txt": "alpha", "b.txt": "beta"})

	ix, _, _ := newTestIndexer(t, Options{Directory: rag.DirectoryOptions{Recursive: true}})
	ix.Start()

	jobID, err := ix.QueueDirectory(root)
	require.NoError(t, err)
	job := waitTerminal(t, ix, jobID)
	require.Equal(t, types.JobCompleted, job.State)

	status := ix.GetStatus()
	assert.Equal(t, int64(2), status.ProcessedItems)
	assert.Equal(t, int64(0), status.FailedItems)
	assert.Equal(t, 0, status.QueuedItems)
}
