// Package watcher reports settled changes to a single file, such as the
// exercise catalog, using fsnotify.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors one file. The parent directory is watched so that
// editors and deploy tools that replace the file by rename are seen too.
type Watcher struct {
	path    string
	logger  *slog.Logger
	opts    Options
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending *pendingEvent

	events chan Event
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup

	stopOnce sync.Once
}

// pendingEvent tracks a file that may still be changing.
type pendingEvent struct {
	size    int64
	modTime time.Time
	timer   *time.Timer
}

// New creates a watcher for path. Nothing is observed until Start.
func New(path string, logger *slog.Logger, opts Options) (*Watcher, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	opts.setDefaults()

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve watch path: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		path:    abs,
		logger:  logger.With("path", abs),
		opts:    opts,
		watcher: fw,
		events:  make(chan Event, 8),
		errors:  make(chan error, 8),
		done:    make(chan struct{}),
	}, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string { return w.path }

// Events returns the channel of settled events.
func (w *Watcher) Events() <-chan Event { return w.events }

// Errors returns the channel of watcher errors.
func (w *Watcher) Errors() <-chan error { return w.errors }

// Start processes file system events until ctx is canceled or Stop is called.
// It blocks.
func (w *Watcher) Start(ctx context.Context) error {
	w.wg.Add(1)
	defer w.wg.Done()

	w.logger.Info("watching file")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.done:
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.sendError(err)
		}
	}
}

// Stop releases the fsnotify watcher and closes the event channels.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		w.wg.Wait()

		w.mu.Lock()
		if w.pending != nil {
			w.pending.timer.Stop()
			w.pending = nil
		}
		close(w.events)
		close(w.errors)
		w.mu.Unlock()
	})
	return err
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !sameFile(event.Name, w.path) {
		return
	}

	switch {
	case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
		w.startSettling()
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// A rename-over shows up as Rename of the old inode followed by
		// Create of the new one; only report removal if nothing replaced it.
		if _, err := os.Stat(w.path); err == nil {
			w.startSettling()
			return
		}
		w.cancelPending()
		w.emit(Event{Type: EventRemoved, Path: w.path})
	}
}

func (w *Watcher) startSettling() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending != nil {
		w.pending.timer.Stop()
	}

	info, err := os.Stat(w.path)
	if err != nil {
		w.pending = nil
		return
	}

	p := &pendingEvent{size: info.Size(), modTime: info.ModTime()}
	p.timer = time.AfterFunc(w.opts.SettleDelay, w.checkSettled)
	w.pending = p
}

// checkSettled emits once size and mtime have stopped moving.
func (w *Watcher) checkSettled() {
	w.mu.Lock()
	p := w.pending
	if p == nil {
		w.mu.Unlock()
		return
	}

	info, err := os.Stat(w.path)
	if err != nil {
		w.pending = nil
		w.mu.Unlock()
		w.emit(Event{Type: EventRemoved, Path: w.path})
		return
	}

	if info.Size() != p.size || !info.ModTime().Equal(p.modTime) {
		p.size = info.Size()
		p.modTime = info.ModTime()
		p.timer = time.AfterFunc(w.opts.SettleDelay, w.checkSettled)
		w.mu.Unlock()
		return
	}

	w.pending = nil
	w.mu.Unlock()

	w.emit(Event{
		Type:    EventChanged,
		Path:    w.path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	})
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending != nil {
		w.pending.timer.Stop()
		w.pending = nil
	}
}

// emit holds mu so it cannot race Stop closing the channel.
func (w *Watcher) emit(event Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	select {
	case <-w.done:
		return
	default:
	}

	select {
	case w.events <- event:
	default:
		w.logger.Warn("event channel full, dropping event", "type", event.Type.String())
	}
}

func (w *Watcher) sendError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	select {
	case <-w.done:
		return
	default:
	}

	select {
	case w.errors <- err:
	default:
		w.logger.Warn("error channel full, dropping error", "error", err)
	}
}
