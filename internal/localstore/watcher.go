package localstore

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounce = 100 * time.Millisecond

// watcher coalesces filesystem events on the database files into single
// ticks, at most one per debounce interval.
type watcher struct {
	fs    *fsnotify.Watcher
	ticks chan struct{}
	done  chan struct{}
	wg    sync.WaitGroup
}

func newWatcher(dir string) (*watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}

	w := &watcher{
		fs:    fw,
		ticks: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *watcher) run() {
	defer w.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !isStoreFile(ev.Name) || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
				fire = timer.C
			}
		case <-fire:
			timer, fire = nil, nil
			select {
			case w.ticks <- struct{}{}:
			default:
			}
		}
	}
}

func (w *watcher) events() <-chan struct{} { return w.ticks }

func (w *watcher) errors() <-chan error { return w.fs.Errors }

func (w *watcher) Close() error {
	close(w.done)
	err := w.fs.Close()
	w.wg.Wait()
	return err
}

// isStoreFile matches the database and its WAL/SHM side files.
func isStoreFile(name string) bool {
	return strings.HasPrefix(filepath.Base(name), FileName)
}
