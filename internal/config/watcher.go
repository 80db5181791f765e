package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 250 * time.Millisecond

// Watcher observes a manifest file and reloads it when it changes. Editors
// often replace files via rename, so the parent directory is watched and
// events are filtered back down to the manifest path.
type Watcher struct {
	fw        *fsnotify.Watcher
	done      chan struct{}
	closeOnce sync.Once
}

// Watch starts observing path. Each settled burst of file events triggers a
// full reload; apply receives manifests that load cleanly and onError
// receives everything else, so a half-written save never clobbers a good
// configuration.
func Watch(path string, apply func(*Manifest), onError func(error)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve manifest path: %w", err)
	}
	if onError == nil {
		onError = func(error) {}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create manifest watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch manifest directory: %w", err)
	}

	w := &Watcher{fw: fw, done: make(chan struct{})}
	go w.run(abs, apply, onError)
	return w, nil
}

func (w *Watcher) run(abs string, apply func(*Manifest), onError func(error)) {
	var settle <-chan time.Time

	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			settle = time.After(reloadDebounce)

		case <-settle:
			settle = nil
			m, err := Load(abs)
			if err != nil {
				onError(err)
				continue
			}
			apply(m)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			onError(err)

		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() { close(w.done) })
	return w.fw.Close()
}
