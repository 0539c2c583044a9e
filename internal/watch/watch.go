// Package watch signals changes to a single file. It watches the parent
// directory rather than the file itself, so rewrites that replace the file
// via rename are seen as well as in-place writes.
package watch

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/kriansa/fstabctl/internal/log"
)

// File watches the file at path until ctx is done. Every change to the path
// produces a signal on the returned channel; bursts are coalesced into one
// pending signal. The channel is closed when ctx is cancelled or the watcher
// shuts down.
func File(ctx context.Context, path string) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	path = filepath.Clean(path)
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path {
					continue
				}
				log.Debug("file changed", "path", path, "op", event.Op.String())
				select {
				case ch <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("watcher error", "error", err)
			}
		}
	}()

	return ch, nil
}
