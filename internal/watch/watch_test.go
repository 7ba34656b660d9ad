package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codeatlas/internal/embedder"
	"github.com/dshills/codeatlas/internal/graph"
	"github.com/dshills/codeatlas/internal/ingest"
	"github.com/dshills/codeatlas/internal/pathutil"
	"github.com/dshills/codeatlas/internal/rag"
	"github.com/dshills/codeatlas/internal/storage"
	"github.com/dshills/codeatlas/pkg/types"
)

const testDebounce = 50 * time.Millisecond

func newTestWatcher(t *testing.T, opts Options) (*Watcher, *rag.Store, *storage.Store, *graph.Service) {
	t.Helper()

	db, err := storage.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	emb, err := embedder.New(embedder.Config{Provider: embedder.ProviderLocal})
	require.NoError(t, err)

	ragStore := rag.New(db, emb, ingest.DefaultRegistry())
	graphSvc := graph.New(db)

	if opts.Debounce == 0 {
		opts.Debounce = testDebounce
	}
	w, err := New(ragStore, graphSvc, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w, ragStore, db, graphSvc
}

func chunkCount(t *testing.T, db *storage.Store, pathPrefix string) int {
	t.Helper()
	stats, err := db.Stats(context.Background(), pathPrefix)
	require.NoError(t, err)
	return stats.ChunkCount
}

func TestRecord_CoalescesDuplicateEvents(t *testing.T) {
	w, _, db, _ := newTestWatcher(t, Options{})

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("note body"), 0o644))

	for i := 0; i < 20; i++ {
		w.record(types.ChangeModified, path)
	}
	assert.Equal(t, 1, w.PendingChanges())

	require.Eventually(t, func() bool {
		return chunkCount(t, db, pathutil.Normalize(path)) > 0
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, w.PendingChanges())
}

func TestRecord_DistinctOpsStayDistinct(t *testing.T) {
	w, _, _, _ := newTestWatcher(t, Options{Debounce: time.Hour})

	w.record(types.ChangeModified, "/a/file.go")
	w.record(types.ChangeDeleted, "/a/file.go")
	w.record(types.ChangeModified, "/a/file.go")

	assert.Equal(t, 2, w.PendingChanges())
}

func TestWatcher_IndexesCreatedFile(t *testing.T) {
	root := t.TempDir()
	w, _, db, _ := newTestWatcher(t, Options{})
	require.NoError(t, w.Add(root))
	w.Start()

	path := filepath.Join(root, "readme.md")
	require.NoError(t, os.WriteFile(path, []byte("# Title\n\nBody text here."), 0o644))

	require.Eventually(t, func() bool {
		return chunkCount(t, db, pathutil.Normalize(path)) > 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWatcher_ModifyReplacesChunks(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("first version"), 0o644))

	w, ragStore, db, _ := newTestWatcher(t, Options{})
	_, err := ragStore.IndexFileContent(context.Background(), path, []byte("first version"), root)
	require.NoError(t, err)
	require.Equal(t, 1, chunkCount(t, db, pathutil.Normalize(path)))

	require.NoError(t, w.Add(root))
	w.Start()

	require.NoError(t, os.WriteFile(path, []byte("second version of the document"), 0o644))

	require.Eventually(t, func() bool {
		results, err := ragStore.Query(context.Background(), "document", rag.QueryOptions{TopK: 5})
		return err == nil && len(results) == 1 && results[0].Chunk.Text == "second version of the document"
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, chunkCount(t, db, pathutil.Normalize(path)))
}

func TestWatcher_DeleteRemovesChunks(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "gone.txt")
	require.NoError(t, os.WriteFile(path, []byte("doomed content"), 0o644))

	w, ragStore, db, _ := newTestWatcher(t, Options{})
	_, err := ragStore.IndexFileContent(context.Background(), path, []byte("doomed content"), root)
	require.NoError(t, err)
	require.Equal(t, 1, chunkCount(t, db, pathutil.Normalize(path)))

	require.NoError(t, w.Add(root))
	w.Start()

	require.NoError(t, os.Remove(path))

	require.Eventually(t, func() bool {
		return chunkCount(t, db, pathutil.Normalize(path)) == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWatcher_RenameIsDeleteThenCreate(t *testing.T) {
	root := t.TempDir()
	oldPath := filepath.Join(root, "old.txt")
	newPath := filepath.Join(root, "new.txt")
	require.NoError(t, os.WriteFile(oldPath, []byte("movable content"), 0o644))

	w, ragStore, db, _ := newTestWatcher(t, Options{})
	_, err := ragStore.IndexFileContent(context.Background(), oldPath, []byte("movable content"), root)
	require.NoError(t, err)

	require.NoError(t, w.Add(root))
	w.Start()

	require.NoError(t, os.Rename(oldPath, newPath))

	require.Eventually(t, func() bool {
		return chunkCount(t, db, pathutil.Normalize(oldPath)) == 0 &&
			chunkCount(t, db, pathutil.Normalize(newPath)) > 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWatcher_GoFilePopulatesGraph(t *testing.T) {
	root := t.TempDir()
	w, _, _, graphSvc := newTestWatcher(t, Options{RepositoryPath: root})
	require.NoError(t, w.Add(root))
	w.Start()

	src := "package live\n\ntype Tracker struct{}\n\nfunc (t Tracker) Track() {}\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "live.go"), []byte(src), 0o644))

	require.Eventually(t, func() bool {
		nodes, err := graphSvc.FindNodes(context.Background(), "Tracker", "", "")
		return err == nil && len(nodes) == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWatcher_NewSubdirectoryIsWatched(t *testing.T) {
	root := t.TempDir()
	w, _, db, _ := newTestWatcher(t, Options{})
	require.NoError(t, w.Add(root))
	w.Start()

	sub := filepath.Join(root, "pkg")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// Give the event loop a beat to register the new directory
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(sub, "inner.txt")
	require.NoError(t, os.WriteFile(path, []byte("nested content"), 0o644))

	require.Eventually(t, func() bool {
		return chunkCount(t, db, pathutil.Normalize(path)) > 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestIndexable_Filters(t *testing.T) {
	root := t.TempDir()
	w, _, _, _ := newTestWatcher(t, Options{})
	require.NoError(t, w.Add(root))

	assert.True(t, w.indexable(filepath.Join(root, "main.go")))
	assert.True(t, w.indexable(filepath.Join(root, "readme.md")))
	assert.False(t, w.indexable(filepath.Join(root, "logo.png")))
	assert.False(t, w.indexable(filepath.Join(root, "node_modules", "pkg", "index.js")))
	assert.False(t, w.indexable(filepath.Join(root, "vendor", "lib", "lib.go")))
}

func TestReadWithRetry_MissingFileFails(t *testing.T) {
	w, _, _, _ := newTestWatcher(t, Options{readRetryDelay: 5 * time.Millisecond})

	_, err := w.readWithRetry(filepath.Join(t.TempDir(), "absent.txt"))
	assert.Error(t, err)
}
