// Package watch reports changes to a fixed set of files.
package watch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "github.com/Chative-rag-chat/server/pkg/logger"
)

const DefaultDebounce = 500 * time.Millisecond

// FileWatcher watches the parent directories of its files so that editors and
// tools that replace a file by rename are still noticed.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]struct{}
	debounce time.Duration
}

func NewFileWatcher(paths []string, debounce time.Duration) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw := &FileWatcher{watcher: w, files: make(map[string]struct{}), debounce: debounce}
	dirs := make(map[string]struct{})
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			w.Close()
			return nil, err
		}
		fw.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			w.Close()
			return nil, err
		}
	}
	return fw, nil
}

// Watch emits one value per burst of changes to the watched files. The
// channel is closed when ctx is done or the watcher stops.
func (w *FileWatcher) Watch(ctx context.Context) <-chan struct{} {
	changes := make(chan struct{}, 1)

	go func() {
		defer close(changes)
		var (
			timer *time.Timer
			fire  <-chan time.Time
		)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				abs, _ := filepath.Abs(event.Name)
				if _, watched := w.files[abs]; !watched {
					continue
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(w.debounce)
				} else {
					timer.Reset(w.debounce)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				select {
				case changes <- struct{}{}:
				default:
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				logx.Warn().Err(err).Msg("File watcher error")
			}
		}
	}()

	return changes
}

func (w *FileWatcher) Stop() error {
	return w.watcher.Close()
}
