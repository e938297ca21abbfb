// Package watch re-converts Word documents when they change on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/pdiddy/word2pdf/internal/scan"
	"github.com/pdiddy/word2pdf/pkg/types"
)

// DefaultDebounce is how long a file must stay quiet before it is handled.
const DefaultDebounce = 2 * time.Second

// Handler is called once per settled document change, from the watcher
// goroutine, one document at a time.
type Handler func(ctx context.Context, doc types.Document)

// Options configure a Watcher.
type Options struct {
	Extensions []string
	Debounce   time.Duration
	// Tick is how often pending paths are checked (default Debounce/4, at
	// most 250ms).
	Tick time.Duration
}

// Stats counts watcher activity.
type Stats struct {
	Events  int
	Handled int
	Errors  int
	// LastPath is the most recently handled document.
	LastPath string
}

// Watcher watches an input tree recursively and hands changed documents to
// a Handler once they have been quiet for the debounce period. The output
// tree is never watched.
type Watcher struct {
	// lifecycle serializes Start and Stop.
	lifecycle sync.Mutex

	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	input    string
	output   string
	exts     []string
	debounce time.Duration
	tick     time.Duration
	handler  Handler
	logger   *zap.Logger

	pending map[string]time.Time
	stats   Stats

	cancel  context.CancelFunc
	doneCh  chan struct{}
	running bool
}

// New creates a Watcher for input. An empty output means the default
// "<input>_pdf" sibling.
func New(input, output string, opts Options, handler Handler, logger *zap.Logger) (*Watcher, error) {
	if handler == nil {
		return nil, errors.New("watch handler is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	root, err := filepath.Abs(input)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", input, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("input directory %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input %s is not a directory", root)
	}
	if output == "" {
		output = scan.DefaultOutputDir(root)
	}
	out, err := filepath.Abs(output)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", output, err)
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	tick := opts.Tick
	if tick <= 0 {
		tick = min(debounce/4, 250*time.Millisecond)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	return &Watcher{
		fsw:      fsw,
		input:    root,
		output:   out,
		exts:     scan.NormalizeExtensions(opts.Extensions),
		debounce: debounce,
		tick:     tick,
		handler:  handler,
		logger:   logger.With(zap.String("input", root)),
		pending:  make(map[string]time.Time),
	}, nil
}

// Start adds every directory of the input tree and begins processing events
// in a goroutine. It does not block. Concurrent calls start one event loop.
func (w *Watcher) Start(ctx context.Context) error {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()

	w.mu.Lock()
	running := w.running
	w.mu.Unlock()
	if running {
		return nil
	}

	if err := w.addTree(w.input); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.running = true
	w.cancel = cancel
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("watching for changes", zap.String("output", w.output), zap.Duration("debounce", w.debounce))
	go w.run(ctx)
	return nil
}

// Stop cancels any running handler, waits for the event loop to exit and
// releases the underlying watcher. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()

	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		w.fsw.Close()
		return
	}
	w.running = false
	cancel, done := w.cancel, w.doneCh
	w.mu.Unlock()

	cancel()
	<-done
	if err := w.fsw.Close(); err != nil {
		w.logger.Warn("closing watcher", zap.Error(err))
	}
	w.logger.Info("watcher stopped")
}

// Stats returns a snapshot of the activity counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case now := <-ticker.C:
			w.flush(ctx, now)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if w.ignored(event.Name) {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	w.stats.Events++
	w.mu.Unlock()

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("watching new directory", zap.String("dir", event.Name), zap.Error(err))
			}
			return
		}
	}

	if !scan.Matches(filepath.Base(event.Name), w.exts) {
		return
	}
	w.logger.Debug("change detected", zap.String("path", event.Name), zap.String("op", event.Op.String()))
	w.enqueue(event.Name)
}

func (w *Watcher) enqueue(path string) {
	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

// flush hands every path that has been quiet for the debounce period to the
// handler, in lexical order.
func (w *Watcher) flush(ctx context.Context, now time.Time) {
	w.mu.Lock()
	var ready []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	slices.Sort(ready)
	for _, path := range ready {
		if ctx.Err() != nil {
			return
		}
		doc, err := scan.DocumentFor(w.input, w.output, path, scan.Options{Extensions: w.exts, Logger: w.logger})
		if err != nil {
			// Removed or renamed away before it settled.
			w.logger.Debug("dropping change", zap.String("path", path), zap.Error(err))
			continue
		}
		w.handler(ctx, doc)

		w.mu.Lock()
		w.stats.Handled++
		w.stats.LastPath = path
		w.mu.Unlock()
	}
}

// addTree watches dir and every directory below it except the output tree,
// and enqueues documents already present in newly created directories.
func (w *Watcher) addTree(dir string) error {
	initial := dir == w.input
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			w.logger.Debug("skipping unreadable path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if d.IsDir() {
			if w.ignored(path) {
				return filepath.SkipDir
			}
			if err := w.fsw.Add(path); err != nil {
				return fmt.Errorf("watching %s: %w", path, err)
			}
			return nil
		}
		if !initial && scan.Matches(d.Name(), w.exts) {
			w.enqueue(path)
		}
		return nil
	})
}

// ignored reports whether path lies inside the output tree.
func (w *Watcher) ignored(path string) bool {
	return path == w.output || strings.HasPrefix(path, w.output+string(filepath.Separator))
}
