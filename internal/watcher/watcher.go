// Package watcher runs batches automatically when spreadsheet exports are
// dropped into an inbox directory.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/takefinance/payslip-archiver/internal/logging"
)

// RunFunc processes one dropped file; it receives the absolute path.
type RunFunc func(ctx context.Context, path string) error

// Watcher watches an inbox directory and triggers a batch per settled file.
// Batches run one at a time, in arrival order.
type Watcher struct {
	dir    string
	settle time.Duration
	run    RunFunc
	log    *slog.Logger

	mu      sync.Mutex
	pending map[string]bool
}

// New creates an inbox watcher. settle is how long a file's size must stay
// unchanged before it is considered fully written.
func New(dir string, settle time.Duration, run RunFunc) *Watcher {
	if settle <= 0 {
		settle = 2 * time.Second
	}
	return &Watcher{
		dir:     dir,
		settle:  settle,
		run:     run,
		log:     logging.Component("watcher"),
		pending: make(map[string]bool),
	}
}

// watchable reports whether the file looks like a payroll export.
func watchable(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range []string{".csv", ".tsv", ".csv.gz", ".tsv.gz", ".xlsx", ".xlsm"} {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// Run watches until the context is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.log.Info("watching inbox", "dir", w.dir)

	// Batches are serialized through a single worker.
	paths := make(chan string, 16)
	var worker sync.WaitGroup
	worker.Add(1)
	go func() {
		defer worker.Done()
		for path := range paths {
			if err := w.run(ctx, path); err != nil {
				w.log.Error("batch failed", "file", path, "error", err)
			}
			w.mu.Lock()
			delete(w.pending, path)
			w.mu.Unlock()
		}
	}()

	// paths may only be closed once every settle goroutine has exited;
	// a sender racing shutdown would otherwise hit a closed channel.
	var senders sync.WaitGroup
	defer func() {
		senders.Wait()
		close(paths)
		worker.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watch error", "error", err)

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !watchable(ev.Name) {
				continue
			}
			path := ev.Name
			if !filepath.IsAbs(path) {
				path = filepath.Join(w.dir, filepath.Base(path))
			}

			w.mu.Lock()
			if w.pending[path] {
				w.mu.Unlock()
				continue
			}
			w.pending[path] = true
			w.mu.Unlock()

			senders.Add(1)
			go func() {
				defer senders.Done()
				if !w.waitSettled(ctx, path) {
					w.mu.Lock()
					delete(w.pending, path)
					w.mu.Unlock()
					return
				}
				select {
				case paths <- path:
				case <-ctx.Done():
				}
			}()
		}
	}
}

// waitSettled blocks until the file size has been stable for the settle
// window. Returns false if the file vanished or the context ended.
func (w *Watcher) waitSettled(ctx context.Context, path string) bool {
	var lastSize int64 = -1
	ticker := time.NewTicker(w.settle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				return false
			}
			if info.Size() == lastSize {
				return true
			}
			lastSize = info.Size()
		}
	}
}
