// Package watch observes the volatile directories of a resolved layout and
// reports coalesced change notifications.
package watch

import (
	"time"

	"git.sr.ht/~spc/go-log"
	"github.com/ovsenv/ovsenv"
	isync "github.com/ovsenv/ovsenv/internal/sync"
	"github.com/rjeczalik/notify"
)

// A Watcher reports file activity under the run and database directories of
// a layout. Raw inotify events are debounced per path, so a burst of writes
// to the same file produces a single notification.
type Watcher struct {
	// Changed receives the path of a changed file once its debounce delay
	// elapses. Notifications are dropped while one is already pending.
	Changed chan string

	events chan notify.EventInfo
	timers isync.RWMutexMap[*time.Timer]
	delay  time.Duration
}

// NewWatcher starts watching the run and database directories of dirs for
// file activity. A directory that does not exist is skipped; directories are
// never created. delay is the debounce interval applied per path.
func NewWatcher(dirs ovsenv.Dirs, delay time.Duration) *Watcher {
	w := Watcher{
		Changed: make(chan string, 1),
		events:  make(chan notify.EventInfo, 16),
		delay:   delay,
	}

	watched := 0
	for _, dir := range []string{dirs.RunDir, dirs.DbDir} {
		if dir == "" {
			continue
		}
		err := notify.Watch(dir, w.events, notify.InCloseWrite, notify.InCreate, notify.InDelete, notify.InMovedTo, notify.InMovedFrom)
		if err != nil {
			log.Debugf("cannot start watching directory '%v': %v", dir, err)
			continue
		}
		log.Debugf("added watchpoint for directory: %v", dir)
		watched++
	}
	if watched == 0 {
		log.Warnf("no directories available to watch; relying on scheduled scans only")
	}

	go w.run()

	return &w
}

func (w *Watcher) run() {
	for event := range w.events {
		path := event.Path()
		if timer, ok := w.timers.Get(path); ok {
			timer.Reset(w.delay)
			continue
		}
		w.timers.Set(path, time.AfterFunc(w.delay, func() {
			w.timers.Del(path)
			select {
			case w.Changed <- path:
			default:
				// A pending notification already covers this change.
			}
		}))
	}
}

// Stop removes all watchpoints. Notifications already debouncing may still
// be delivered.
func (w *Watcher) Stop() {
	notify.Stop(w.events)
}
