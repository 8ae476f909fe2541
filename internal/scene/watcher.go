package scene

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports changes to scene files, debounced per file.
type Watcher struct {
	watcher  *fsnotify.Watcher
	log      *slog.Logger
	mu       sync.Mutex
	files    map[string]bool
	debounce time.Duration
	timers   map[string]*time.Timer
	onChange func(path string)
	done     chan struct{}
}

// NewWatcher creates a watcher calling onChange once per burst of writes.
func NewWatcher(debounce time.Duration, log *slog.Logger, onChange func(path string)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{
		watcher:  w,
		log:      log.With("component", "watcher"),
		files:    make(map[string]bool),
		debounce: debounce,
		timers:   make(map[string]*time.Timer),
		onChange: onChange,
		done:     make(chan struct{}),
	}, nil
}

// Watch follows the given files. Their directories are watched so that
// editors replacing a file by rename are noticed too.
func (fw *Watcher) Watch(files []string) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	dirs := make(map[string]bool)
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return fmt.Errorf("failed to resolve path %s: %w", file, err)
		}
		fw.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for d := range dirs {
		if err := fw.watcher.Add(d); err != nil {
			return fmt.Errorf("failed to watch %s: %w", d, err)
		}
	}
	return nil
}

// Start begins delivering events.
func (fw *Watcher) Start() {
	go func() {
		for {
			select {
			case event, ok := <-fw.watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					fw.handle(event.Name)
				}
			case err, ok := <-fw.watcher.Errors:
				if !ok {
					return
				}
				fw.log.Warn("watcher error", "err", err)
			case <-fw.done:
				return
			}
		}
	}()
}

func (fw *Watcher) handle(path string) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if !fw.files[path] {
		return
	}
	if t, ok := fw.timers[path]; ok {
		t.Stop()
	}
	fw.timers[path] = time.AfterFunc(fw.debounce, func() {
		fw.log.Info("scene file changed", "path", path)
		fw.onChange(path)
	})
}

// Close stops the watcher and any pending callbacks.
func (fw *Watcher) Close() error {
	fw.mu.Lock()
	for _, t := range fw.timers {
		t.Stop()
	}
	fw.timers = make(map[string]*time.Timer)
	fw.mu.Unlock()
	close(fw.done)
	return fw.watcher.Close()
}
