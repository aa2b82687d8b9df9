package targeting

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/apptentive/engagekit/internal/manifest"
)

// DefaultWatchDebounce is the quiet period before an override file change is
// applied.
const DefaultWatchDebounce = 100 * time.Millisecond

// OverrideWatcher keeps a Targeter's override manifest in sync with a file.
// Writing the file installs it as the override; removing it clears the
// override. A file that fails to decode leaves the current override in place.
type OverrideWatcher struct {
	path      string
	targeter  *Targeter
	logger    *slog.Logger
	debounce  time.Duration
	onReload  func(doc []byte, err error)
	watcher   *fsnotify.Watcher
	debouncer *debouncer

	// reloadMu serializes reads and installs of the override file.
	reloadMu sync.Mutex
}

// WatcherOption configures an OverrideWatcher.
type WatcherOption func(*OverrideWatcher)

// WithDebounce sets the quiet period. Non-positive values keep the default.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *OverrideWatcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithReloadHook is called after every reload attempt with its result. doc
// holds the bytes that were decoded and installed; it is nil when the file
// was absent or the reload failed. Hook calls never overlap.
func WithReloadHook(hook func(doc []byte, err error)) WatcherOption {
	return func(w *OverrideWatcher) {
		w.onReload = hook
	}
}

// WithWatcherLogger sets the watcher's logger.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *OverrideWatcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewOverrideWatcher creates a watcher for path. The parent directory is
// watched so editors that replace the file by rename are still observed.
func NewOverrideWatcher(path string, targeter *Targeter, opts ...WatcherOption) (*OverrideWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve override path: %w", err)
	}

	w := &OverrideWatcher{
		path:     abs,
		targeter: targeter,
		logger:   slog.Default().With("component", "override_watcher"),
		debounce: DefaultWatchDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	w.watcher = fsw
	w.debouncer = newDebouncer(w.debounce)
	return w, nil
}

// Reload reads the override file and applies it immediately.
func (w *OverrideWatcher) Reload() error {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	_, err := w.load()
	return err
}

// load installs the current file contents and returns them. Callers hold
// reloadMu.
func (w *OverrideWatcher) load() ([]byte, error) {
	doc, err := os.ReadFile(w.path)
	if errors.Is(err, fs.ErrNotExist) {
		w.targeter.ClearOverride()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read override manifest: %w", err)
	}

	m, err := manifest.Decode(doc)
	if err != nil {
		return nil, fmt.Errorf("decode override manifest %s: %w", w.path, err)
	}
	if err := w.targeter.SetOverride(m); err != nil {
		return nil, err
	}
	return doc, nil
}

// Run applies the current file, then watches for changes until ctx is done.
func (w *OverrideWatcher) Run(ctx context.Context) error {
	defer w.close()

	w.reload()
	w.logger.Info("override watcher started",
		"path", w.path,
		"debounce_ms", w.debounce.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("override watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("override file event", "path", event.Name, "op", event.Op.String())
			w.debouncer.trigger(w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("override watcher error", "error", err)
		}
	}
}

func (w *OverrideWatcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	return filepath.Clean(event.Name) == w.path
}

func (w *OverrideWatcher) reload() {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	doc, err := w.load()
	if err != nil {
		w.logger.Error("override reload failed", "path", w.path, "error", err)
	}
	if w.onReload != nil {
		w.onReload(doc, err)
	}
}

func (w *OverrideWatcher) close() {
	w.debouncer.stop()
	if err := w.watcher.Close(); err != nil {
		w.logger.Warn("failed to close watcher", "error", err)
	}
}

// debouncer runs the most recent callback once events stop arriving for
// interval.
type debouncer struct {
	interval time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	stopped  bool
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{interval: interval}
}

func (d *debouncer) trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		stopped := d.stopped
		d.mu.Unlock()
		if !stopped {
			callback()
		}
	})
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
