package bot

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jholhewres/autoresponder/pkg/autoresponder/triggers"
)

// ReloadFunc reloads the trigger set and returns the new rule count.
type ReloadFunc func(ctx context.Context) (int, error)

// Watcher reloads the trigger document when it changes on disk. Events are
// debounced, unchanged content is ignored and content that does not decode
// is skipped so a half-written edit never replaces the running set.
type Watcher struct {
	path     string
	reload   ReloadFunc
	logger   *slog.Logger
	debounce time.Duration

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	lastHash [sha256.Size]byte
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
}

// NewWatcher creates a watcher for the trigger document at path.
func NewWatcher(path string, reload ReloadFunc, logger *slog.Logger) *Watcher {
	return &Watcher{
		path:     filepath.Clean(path),
		reload:   reload,
		logger:   logger.With("component", "watcher"),
		debounce: 500 * time.Millisecond,
	}
}

// Start watches the document's directory. Watching the directory rather
// than the file survives editors and atomic writers that replace the file.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	if data, err := os.ReadFile(w.path); err == nil {
		w.lastHash = sha256.Sum256(data)
	}

	w.watcher = fw
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.running = true

	go w.run(ctx, fw, w.stopCh, w.doneCh)
	w.logger.Info("watching trigger file", "path", w.path)
	return nil
}

// Stop stops the watcher and waits for its loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	fw, stopCh, doneCh := w.watcher, w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)
	<-doneCh
	if err := fw.Close(); err != nil {
		w.logger.Warn("error closing file watcher", "error", err)
	}
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			fire = time.After(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)

		case <-fire:
			fire = nil
			w.check(ctx)
		}
	}
}

// check reloads when the document content changed and still decodes.
func (w *Watcher) check(ctx context.Context) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		if !os.IsNotExist(err) {
			w.logger.Warn("cannot read trigger file", "path", w.path, "error", err)
		}
		return
	}

	sum := sha256.Sum256(data)
	w.mu.Lock()
	unchanged := sum == w.lastHash
	w.mu.Unlock()
	if unchanged {
		return
	}

	if _, err := triggers.DecodeDocument(data); err != nil {
		w.logger.Warn("trigger file changed but is not valid, keeping current triggers", "path", w.path, "error", err)
		return
	}

	n, err := w.reload(ctx)
	if err != nil {
		w.logger.Error("reload after file change failed", "error", err)
		return
	}

	w.mu.Lock()
	w.lastHash = sum
	w.mu.Unlock()
	w.logger.Info("trigger file changed, reloaded", "triggers", n)
}
