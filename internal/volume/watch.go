package volume

import (
	"context"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes a mount/staging directory for the filesystem events
// that signal a removable volume has been inserted (a Create on the
// directory itself after it reappears, or a Write into it once media
// is mounted), feeding RequestNext for the prompt-free case where the
// operating system mounts the next volume automatically.
type Watcher struct {
	fsw    *fsnotify.Watcher
	events chan struct{}
	errs   chan error
}

// WatchDir starts watching dir for volume-insertion events. Call
// Close when done.
func WatchDir(dir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		fsw:    fsw,
		events: make(chan struct{}, 1),
		errs:   make(chan error, 1),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				select {
				case w.events <- struct{}{}:
				default:
				}
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

// Events delivers a signal each time the watched directory is written
// to or recreated, coalescing bursts into a single pending signal.
func (w *Watcher) Events() <-chan struct{} { return w.events }

// Errors delivers watcher-internal errors (e.g. the underlying inotify
// instance hitting a limit).
func (w *Watcher) Errors() <-chan error { return w.errs }

// WaitForVolume blocks until an insertion event is observed or ctx is
// cancelled.
func (w *Watcher) WaitForVolume(ctx context.Context) error {
	select {
	case <-w.events:
		return nil
	case err := <-w.errs:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
