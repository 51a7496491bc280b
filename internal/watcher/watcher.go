// Package watcher feeds files dropped into inbox directories to the ingester.
// Creates and writes are debounced per path; removals only clear the
// ingester's memory of the file because the index has no per-document delete.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hyperjump/kioku/internal/ingest"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Ingester is the part of ingest.Ingester the watcher drives.
type Ingester interface {
	Allowed(path string) bool
	IngestFile(ctx context.Context, path string) (*ingest.Report, error)
	Forget(path string)
}

// Watcher watches inbox directories and ingests new or changed files.
type Watcher struct {
	roots     []string
	recursive bool
	ingester  Ingester
	debounce  time.Duration
	logger    *zap.Logger

	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	ctx      context.Context
	stopCtx  context.CancelFunc
	pending  map[string]*time.Timer
	started  bool
	stopped  bool
	done     chan struct{}
	stopOnce sync.Once
	// inflight counts debounced ingests and directory syncs; Stop waits for it.
	inflight sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the watcher logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDebounce sets how long a path must stay quiet before it is ingested.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher over roots. Missing roots are created on Start.
func NewWatcher(roots []string, recursive bool, ingester Ingester, opts ...Option) *Watcher {
	w := &Watcher{
		roots:     cleanRoots(roots),
		recursive: recursive,
		ingester:  ingester,
		debounce:  defaultDebounce,
		logger:    zap.NewNop(),
		pending:   make(map[string]*time.Timer),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func cleanRoots(roots []string) []string {
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		if abs, err := filepath.Abs(r); err == nil {
			out = append(out, filepath.Clean(abs))
		}
	}
	return out
}

// Start begins watching. It returns once the roots are registered; events are
// handled in the background until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	if w.stopped {
		return errors.New("watcher already stopped")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, root := range w.roots {
		if err := w.addRoot(fsw, root); err != nil {
			_ = fsw.Close()
			return err
		}
	}
	w.fsw = fsw
	w.ctx, w.stopCtx = context.WithCancel(ctx)
	w.started = true
	w.logger.Info("watching inbox directories", zap.Strings("roots", w.roots), zap.Bool("recursive", w.recursive))
	go w.run(w.ctx, fsw)
	return nil
}

func (w *Watcher) addRoot(fsw *fsnotify.Watcher, root string) error {
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(root, 0755); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	if !w.recursive {
		return fsw.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(fsw, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if !w.underRoot(path) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			w.handleNewDirectory(fsw, path)
			return
		}
		if w.ingester.Allowed(path) {
			w.schedule(path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancel(path)
		w.ingester.Forget(path)
	}
}

// handleNewDirectory watches a directory that appeared under a root (when
// recursive) and ingests what it already contains in the background.
func (w *Watcher) handleNewDirectory(fsw *fsnotify.Watcher, dir string) {
	if w.recursive {
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if err := fsw.Add(path); err != nil {
					w.logger.Warn("failed to watch directory", zap.String("path", path), zap.Error(err))
				}
			}
			return nil
		})
	}
	ctx, ok := w.begin()
	if !ok {
		return
	}
	go func() {
		defer w.inflight.Done()
		w.syncDir(ctx, dir)
	}()
}

// begin registers a background task with inflight. It reports false once
// the watcher is stopped.
func (w *Watcher) begin() (context.Context, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil, false
	}
	w.inflight.Add(1)
	if w.ctx == nil {
		return context.Background(), true
	}
	return w.ctx, true
}

func (w *Watcher) underRoot(path string) bool {
	for _, root := range w.roots {
		if root == path || inDir(root, path) {
			return true
		}
	}
	return false
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		ctx, ok := w.begin()
		if !ok {
			return
		}
		defer w.inflight.Done()
		w.ingest(ctx, path)
	})
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	report, err := w.ingester.IngestFile(ctx, path)
	if err != nil {
		if errors.Is(err, ingest.ErrNoText) {
			w.logger.Debug("file has no text", zap.String("path", path))
			return
		}
		w.logger.Warn("failed to ingest file", zap.String("path", path), zap.Error(err))
		return
	}
	if report.Skipped {
		return
	}
	w.logger.Info("ingested file",
		zap.String("path", path),
		zap.String("document_id", report.DocumentID),
		zap.Int("chunks", report.ChunksAdded),
		zap.Int("total", report.TotalChunks))
}

func (w *Watcher) syncDir(ctx context.Context, root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && !w.recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.Type().IsRegular() && w.ingester.Allowed(path) {
			w.ingest(ctx, path)
		}
		return nil
	})
}

// SyncExistingFiles ingests files already present in the roots and returns
// when done. Files the ingester has seen unchanged are skipped by the
// ingester itself. It does nothing after Stop.
func (w *Watcher) SyncExistingFiles() {
	ctx, ok := w.begin()
	if !ok {
		return
	}
	defer w.inflight.Done()
	w.syncRoots(ctx)
}

// SyncInBackground is SyncExistingFiles on its own goroutine. Stop cancels
// it and waits for it to return.
func (w *Watcher) SyncInBackground() {
	ctx, ok := w.begin()
	if !ok {
		return
	}
	go func() {
		defer w.inflight.Done()
		w.syncRoots(ctx)
	}()
}

func (w *Watcher) syncRoots(ctx context.Context) {
	w.logger.Debug("syncing existing files", zap.Strings("roots", w.roots))
	for _, root := range w.roots {
		if ctx.Err() != nil {
			return
		}
		w.syncDir(ctx, root)
	}
}

// Directories returns a copy of the watched roots.
func (w *Watcher) Directories() []string {
	return append([]string(nil), w.roots...)
}

// Stop stops watching, drops pending ingests, cancels running syncs and
// waits for every background task to return.
func (w *Watcher) Stop() {
	w.mu.Lock()
	w.stopped = true
	if w.started {
		for path, t := range w.pending {
			t.Stop()
			delete(w.pending, path)
		}
		_ = w.fsw.Close()
		w.fsw = nil
		w.started = false
		w.stopCtx()
	}
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
	w.inflight.Wait()
}
