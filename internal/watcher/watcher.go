// Package watcher notices workspace file changes on disk and reports
// them debounced, so a long-running process can refresh its snapshot
// instead of serving stale results.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"recast/internal/config"
	"recast/internal/logging"
	"recast/internal/paths"
)

// Handler receives the workspace-relative paths that changed once the
// debounce window closes.
type Handler func(changed []string)

// Watcher watches the workspace tree recursively and batches document
// events per debounce window. Directories on the ignore list (and dot
// directories, the state dir included) are never descended into, so
// journal writes do not feed back as workspace changes.
type Watcher struct {
	root    string
	ignore  []string
	logger  *logging.Logger
	handler Handler

	fsw       *fsnotify.Watcher
	debouncer *Debouncer

	mu      sync.Mutex
	pending map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a watcher rooted at the workspace directory. The ignore
// list holds directory names that are skipped entirely.
func New(root string, cfg config.WatcherConfig, ignore []string, logger *logging.Logger, handler Handler) (*Watcher, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounce := time.Duration(cfg.DebounceMs) * time.Millisecond
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		root:      root,
		ignore:    ignore,
		logger:    logger,
		handler:   handler,
		fsw:       fsw,
		debouncer: NewDebouncer(debounce),
		pending:   make(map[string]struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start registers the workspace directories and begins watching.
func (w *Watcher) Start() error {
	if err := w.addTree(w.root); err != nil {
		w.fsw.Close()
		return err
	}
	w.wg.Add(1)
	go w.loop()
	w.logger.Info("Watching workspace", map[string]interface{}{
		"root": w.root,
	})
	return nil
}

// Stop ends watching and discards any pending notification.
func (w *Watcher) Stop() {
	w.cancel()
	_ = w.fsw.Close()
	w.wg.Wait()
	w.debouncer.Cancel()
}

// addTree registers dir and every non-ignored directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable entries are skipped, not fatal
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.skipDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) skipDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	for _, ig := range w.ignore {
		if name == ig {
			return true
		}
	}
	return false
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.observe(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Watcher error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}

// observe filters one raw event and records the affected document.
// Newly created directories join the watch so later events inside them
// are seen.
func (w *Watcher) observe(ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !w.skipDir(filepath.Base(ev.Name)) {
				if err := w.addTree(ev.Name); err != nil {
					w.logger.Warn("Cannot watch new directory", map[string]interface{}{
						"dir":   ev.Name,
						"error": err.Error(),
					})
				}
			}
			return
		}
	}

	if !strings.HasSuffix(ev.Name, ".cs") {
		return
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) &&
		!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return
	}

	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return
	}
	rel = paths.NormalizePath(rel)
	if strings.HasPrefix(rel, "..") {
		return
	}

	w.mu.Lock()
	w.pending[rel] = struct{}{}
	w.mu.Unlock()
	w.debouncer.Trigger(w.flush)
}

// flush hands the batched paths to the handler and resets the batch.
func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	changed := make([]string, 0, len(w.pending))
	for p := range w.pending {
		changed = append(changed, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	sort.Strings(changed)
	w.logger.Debug("Workspace changed", map[string]interface{}{
		"files": len(changed),
	})
	if w.handler != nil {
		w.handler(changed)
	}
}
