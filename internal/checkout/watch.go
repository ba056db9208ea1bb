package checkout

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/stratadb/strata/internal/storage"
)

// StaleEvent is pushed the moment a checked-out directory's root is
// observed to have disappeared. It is a purely additive convenience over
// List/Prune: it does not change their semantics, it just removes the need
// to poll List yourself to notice the same thing.
type StaleEvent struct {
	CheckoutID int64
	Path       string
}

// Watch watches projectID's checkouts (or every project's, if projectID is
// 0) and emits a StaleEvent the first time each one's path is found
// missing. It prefers native filesystem notifications (fsnotify) and falls
// back to polling at pollInterval if the native watcher cannot be
// installed, mirroring the teacher lineage's file-watcher fallback
// strategy. The returned channel is closed when ctx is done.
func Watch(ctx context.Context, store storage.Store, projectID int64, pollInterval time.Duration) (<-chan StaleEvent, error) {
	out := make(chan StaleEvent)

	rows, err := currentRows(ctx, store, projectID)
	if err != nil {
		close(out)
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Debug("checkout: fsnotify unavailable, falling back to polling", "error", err, "poll_interval", pollInterval)
		go pollLoop(ctx, store, projectID, pollInterval, out)
		return out, nil
	}

	watchedDirs := make(map[string]bool)
	byDir := make(map[string][]Row)
	for _, r := range rows {
		dir := filepath.Dir(r.Path)
		byDir[dir] = append(byDir[dir], r)
		if !watchedDirs[dir] {
			if err := watcher.Add(dir); err == nil {
				watchedDirs[dir] = true
			}
		}
	}

	go func() {
		defer close(out)
		defer watcher.Close()

		reported := make(map[int64]bool)
		for _, r := range rows {
			if r.PathExists {
				continue
			}
			reported[r.ID] = true
			select {
			case out <- StaleEvent{CheckoutID: r.ID, Path: r.Path}:
			case <-ctx.Done():
				return
			}
		}
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				for _, r := range byDir[filepath.Dir(event.Name)] {
					if reported[r.ID] || r.Path != event.Name {
						continue
					}
					if _, statErr := os.Stat(r.Path); statErr == nil {
						continue
					}
					reported[r.ID] = true
					select {
					case out <- StaleEvent{CheckoutID: r.ID, Path: r.Path}:
					case <-ctx.Done():
						return
					}
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return out, nil
}

func currentRows(ctx context.Context, store storage.Store, projectID int64) ([]Row, error) {
	if projectID == 0 {
		return ListAll(ctx, store)
	}
	return List(ctx, store, projectID)
}

func pollLoop(ctx context.Context, store storage.Store, projectID int64, interval time.Duration, out chan<- StaleEvent) {
	defer close(out)
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	reported := make(map[int64]bool)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rows, err := currentRows(ctx, store, projectID)
			if err != nil {
				continue
			}
			for _, r := range rows {
				if reported[r.ID] || r.PathExists {
					continue
				}
				reported[r.ID] = true
				select {
				case out <- StaleEvent{CheckoutID: r.ID, Path: r.Path}:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}
