// Package discovery implements the Discovery Source (spec §4.3): a
// streaming full walk (on demand only) and a debounced filesystem
// watcher, both feeding the same Discovery queue.
//
// Full walk grounded on internal/sync/reconciliation_scanner.go's
// context-cancellable filepath.Walk; watch grounded on
// internal/sync/file_watcher.go's fsnotify + debounce-timer-map design.
package discovery

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

var supportedExt = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".heic": true,
	".heif": true, ".tif": true, ".tiff": true, ".gif": true, ".bmp": true,
	".cr2": true, ".nef": true, ".arw": true, ".dng": true, ".raf": true,
	".mp4": true, ".mov": true,
}

// Sink receives a discovered path. Implementations call
// catalog.Store.UpsertFile and enqueue downstream work (spec §4.3).
type Sink interface {
	Discovered(ctx context.Context, path string) error
}

// Walk recursively enumerates root, emitting every supported-extension
// path to sink *immediately as encountered* — it does not batch first
// (spec §4.3 "streaming discovery" contract). It stops early if ctx is
// cancelled, leaving any in-flight ledger rows untouched.
func Walk(ctx context.Context, root string, sink Sink) (discovered int64, err error) {
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk %s: %w", path, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !supportedExt[ext] {
			return nil
		}

		if err := sink.Discovered(ctx, path); err != nil {
			return fmt.Errorf("discover %s: %w", path, err)
		}
		discovered++
		return nil
	})
	if walkErr != nil {
		return discovered, walkErr
	}
	return discovered, nil
}

// Watcher is a debounced fsnotify-based filesystem watch feeding the
// same Sink as Walk (spec §4.3 Watch mode, §9 "treat watching as a
// separate source feeding the same Discovery queue").
type Watcher struct {
	root     string
	debounce time.Duration
	sink     Sink
	log      *zap.Logger

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	pending map[string]*time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher builds a Watcher over root with the given debounce window.
func NewWatcher(root string, debounce time.Duration, sink Sink, log *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		root:     root,
		debounce: debounce,
		sink:     sink,
		log:      log,
		watcher:  fw,
		pending:  make(map[string]*time.Timer),
	}
	return w, nil
}

// Start begins watching root (and its subdirectories) for changes and
// processing debounced events until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	if err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("register watch directories: %w", err)
	}

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop halts the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.watcher.Close()
	w.wg.Wait()
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("filesystem watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	ext := strings.ToLower(filepath.Ext(ev.Name))
	if !supportedExt[ext] {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if t, exists := w.pending[ev.Name]; exists {
		t.Stop()
	}
	path := ev.Name
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		if err := w.sink.Discovered(w.ctx, path); err != nil {
			w.log.Warn("discover watched path failed", zap.String("path", path), zap.Error(err))
		}
	})
}
