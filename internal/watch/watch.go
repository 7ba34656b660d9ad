package watch

import (
	"context"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/dshills/codeatlas/internal/graph"
	"github.com/dshills/codeatlas/internal/rag"
	"github.com/dshills/codeatlas/pkg/types"
)

const (
	// DefaultDebounce is the quiet period after the last raw event before
	// the pending set is flushed.
	DefaultDebounce = 500 * time.Millisecond

	// defaultReadRetryDelay is how long to wait before the single re-read
	// attempt on a transiently unreadable file.
	defaultReadRetryDelay = 100 * time.Millisecond
)

// pendingKey identifies one coalesced change. Rapid-fire duplicates of the
// same (op, path) collapse to a single entry.
type pendingKey struct {
	op   types.ChangeType
	path string
}

// Options configure a Watcher.
type Options struct {
	Debounce       time.Duration
	Exclude        []string // doublestar globs, relative to the watch root
	RepositoryPath string   // Repository scope recorded on graph output
	readRetryDelay time.Duration
}

// Watcher turns bursty OS file-system notifications into a small number of
// single-file index and remove operations. Raw events land in a pending set
// guarded by a mutex; one shared timer is reset on every event and fires
// only after a quiet period, flushing the whole set at once.
type Watcher struct {
	rag    *rag.Store
	graph  *graph.Service // Optional sink for re-ingested graph output
	fs     *fsnotify.Watcher
	opts   Options
	logger *log.Logger

	mu      sync.Mutex
	pending map[pendingKey]struct{}
	timer   *time.Timer
	roots   []string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Watcher. graphSvc may be nil when structural output should
// be discarded. Call Add for each directory to watch, then Start.
func New(ragStore *rag.Store, graphSvc *graph.Service, opts Options) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Exclude == nil {
		opts.Exclude = rag.DefaultExcludes
	}
	if opts.readRetryDelay <= 0 {
		opts.readRetryDelay = defaultReadRetryDelay
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		rag:     ragStore,
		graph:   graphSvc,
		fs:      fsw,
		opts:    opts,
		logger:  log.New(os.Stderr, "[watch] ", log.LstdFlags),
		pending: make(map[pendingKey]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Add registers root and all its subdirectories with the watcher. New
// subdirectories created later are picked up from their create events.
func (w *Watcher) Add(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Printf("skipping %s: %v", path, err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != abs && w.excluded(abs, path) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			w.logger.Printf("failed to watch %s: %v", path, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.roots = append(w.roots, abs)
	w.mu.Unlock()
	return nil
}

// Start launches the event loop. Add at least one root first.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.run()
}

// Close stops the watcher and waits for the event loop to exit. Changes
// still pending in the debounce window are dropped; the next full index
// reconciles them.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.fs.Close()
	w.wg.Wait()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()
	return err
}

// PendingChanges reports how many coalesced changes await the next flush.
func (w *Watcher) PendingChanges() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Printf("watch error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	switch {
	case event.Op&fsnotify.Create != 0:
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			w.watchNewDirectory(path)
			return
		}
		if w.indexable(path) {
			w.record(types.ChangeCreated, path)
		}
	case event.Op&fsnotify.Write != 0:
		if w.indexable(path) {
			w.record(types.ChangeModified, path)
		}
	case event.Op&fsnotify.Remove != 0:
		if w.indexable(path) {
			w.record(types.ChangeDeleted, path)
		}
	case event.Op&fsnotify.Rename != 0:
		// A rename is a delete of the old path; the new path shows up as
		// its own create event.
		if w.indexable(path) {
			w.record(types.ChangeDeleted, path)
		}
	}
}

func (w *Watcher) watchNewDirectory(path string) {
	for _, root := range w.watchRoots() {
		if strings.HasPrefix(path, root) && w.excluded(root, path) {
			return
		}
	}
	if err := w.fs.Add(path); err != nil {
		w.logger.Printf("failed to watch new directory %s: %v", path, err)
	}
}

func (w *Watcher) watchRoots() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

// record adds one change to the pending set and rebinds the shared timer.
// The timer fires only after a full quiet period with no new events.
func (w *Watcher) record(op types.ChangeType, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[pendingKey{op: op, path: path}] = struct{}{}

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.opts.Debounce, w.flush)
}

// flush drains the whole pending set at once. Deletes run before creates
// and modifies so a rename never leaves stale chunks for the old path.
func (w *Watcher) flush() {
	w.mu.Lock()
	changes := w.pending
	w.pending = make(map[pendingKey]struct{})
	w.timer = nil
	w.mu.Unlock()

	if len(changes) == 0 {
		return
	}

	var deletes, upserts []pendingKey
	for key := range changes {
		if key.op == types.ChangeDeleted {
			deletes = append(deletes, key)
		} else {
			upserts = append(upserts, key)
		}
	}

	for _, key := range deletes {
		w.removeFile(key.path)
	}
	for _, key := range upserts {
		w.indexFile(key.path)
	}

	if w.graph != nil && len(upserts) > 0 {
		if err := w.graph.SaveChanges(w.ctx); err != nil {
			w.logger.Printf("failed to save graph changes: %v", err)
		}
	}
}

func (w *Watcher) removeFile(path string) {
	removed, err := w.rag.RemovePath(w.ctx, path)
	if err != nil {
		w.logger.Printf("failed to remove %s: %v", path, err)
		return
	}
	if removed {
		w.logger.Printf("removed index entries for %s", path)
	}
}

func (w *Watcher) indexFile(path string) {
	data, err := w.readWithRetry(path)
	if err != nil {
		// The file may have vanished between the event and the flush
		w.logger.Printf("failed to read %s: %v", path, err)
		return
	}

	result, err := w.rag.IndexFileContent(w.ctx, path, data, w.opts.RepositoryPath)
	if err != nil {
		w.logger.Printf("failed to index %s: %v", path, err)
		return
	}
	if w.graph != nil && result != nil {
		w.graph.AddResult(result.Nodes, result.Edges)
	}
}

// readWithRetry reads the file, retrying once after a short delay. Editors
// and build tools briefly lock files mid-save.
func (w *Watcher) readWithRetry(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return data, nil
	}

	select {
	case <-w.ctx.Done():
		return nil, err
	case <-time.After(w.opts.readRetryDelay):
	}
	return os.ReadFile(path)
}

// indexable filters out excluded paths and file kinds the retrieval store
// has no use for.
func (w *Watcher) indexable(path string) bool {
	for _, root := range w.watchRoots() {
		if strings.HasPrefix(path, root) && w.excluded(root, path) {
			return false
		}
	}
	return rag.ContentTypeForPath(path) != types.ContentTypeOther
}

func (w *Watcher) excluded(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range w.opts.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		// A pattern like vendor/** excludes the directory's children but
		// not the directory entry itself; probe a synthetic child too.
		if ok, _ := doublestar.Match(pattern, rel+"/_"); ok {
			return true
		}
	}
	return false
}
