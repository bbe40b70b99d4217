package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 500 * time.Millisecond

// Reloader watches the catalog file and reloads the store after changes.
type Reloader struct {
	watcher  *fsnotify.Watcher
	store    *InMemoryTestStore
	path     string
	logger   *slog.Logger
	debounce time.Duration

	mu      sync.Mutex
	reloads int
}

// NewReloader creates a file watcher for the catalog at path.
func NewReloader(s *InMemoryTestStore, path string, logger *slog.Logger) (*Reloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", path, err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reloader{
		watcher:  watcher,
		store:    s,
		path:     path,
		logger:   logger,
		debounce: reloadDebounce,
	}, nil
}

// Run blocks until ctx is cancelled. A failed reload keeps the previous catalog.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(r.debounce, func() { r.reload(ctx) })
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.WarnContext(ctx, "catalog watcher error", "error", err)
		}
	}
}

func (r *Reloader) reload(ctx context.Context) {
	n, err := LoadCatalog(ctx, r.store, r.path)
	if err != nil {
		r.logger.ErrorContext(ctx, "catalog reload failed", "path", r.path, "error", err)
		return
	}
	r.mu.Lock()
	r.reloads++
	r.mu.Unlock()
	r.logger.InfoContext(ctx, "catalog reloaded", "path", r.path, "tests", n)
}

// Reloads returns how many reloads succeeded.
func (r *Reloader) Reloads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reloads
}
