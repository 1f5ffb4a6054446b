package config

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/splk-dev/splk/internal/logging"
)

// debounceWindow absorbs the write-then-rename bursts editors and
// atomic-save tools produce for a single logical edit.
const debounceWindow = 300 * time.Millisecond

// Watcher reloads configuration when the project or home config.yaml
// changes on disk and invokes OnChange with the freshly resolved
// Config. It never watches environment variables or flags — those are
// re-read on every Load call anyway and have no file to notify on.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	onChange func(*Config)
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
}

// NewWatcher creates a Watcher that calls onChange whenever the
// project or home config file is created, written, or removed.
func NewWatcher(onChange func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:  fw,
		onChange: onChange,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching in a background goroutine. A path that
// doesn't exist yet is skipped silently; fsnotify.Add requires the
// target to exist, and a config file created later is out of scope
// for this watcher (it only tracks files present at Start).
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	for _, path := range []string{homeConfigPath(), projectConfigPath()} {
		if path == "" {
			continue
		}
		if err := w.watcher.Add(path); err != nil {
			logging.Get(logging.CategoryConfig).Debugf("config watch: skipping %s: %v", path, err)
		}
	}

	go w.run()
	return nil
}

// Stop stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	_ = w.watcher.Close()
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	var pending bool
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-w.stopCh:
			return
		case _, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !pending {
				pending = true
				timer.Reset(debounceWindow)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryConfig).Errorf("config watch error: %v", err)
		case <-timer.C:
			pending = false
			cfg, err := Load(nil)
			if err != nil {
				logging.Get(logging.CategoryConfig).Errorf("config reload failed: %v", err)
				continue
			}
			if w.onChange != nil {
				w.onChange(cfg)
			}
		}
	}
}
