package watch

import (
	"testing"
	"time"

	"github.com/rjeczalik/notify"
)

// fileEvent is a synthetic notify.EventInfo for feeding the debounce loop
// without inotify.
type fileEvent struct {
	path  string
	event notify.Event
}

func (e fileEvent) Event() notify.Event { return e.event }
func (e fileEvent) Path() string        { return e.path }
func (e fileEvent) Sys() interface{}    { return nil }

func newTestWatcher(delay time.Duration) *Watcher {
	w := &Watcher{
		Changed: make(chan string, 1),
		events:  make(chan notify.EventInfo, 16),
		delay:   delay,
	}
	go w.run()
	return w
}

func TestDebounceCoalescesBursts(t *testing.T) {
	w := newTestWatcher(20 * time.Millisecond)
	defer close(w.events)

	const path = "/run/openvswitch/db.sock"
	for i := 0; i < 5; i++ {
		w.events <- fileEvent{path: path, event: notify.InCloseWrite}
	}

	select {
	case got := <-w.Changed:
		if got != path {
			t.Errorf("%#v != %#v", got, path)
		}
	case <-time.After(time.Second):
		t.Fatal("no notification delivered")
	}

	select {
	case got := <-w.Changed:
		t.Errorf("burst delivered a second notification for %v", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDebounceResetsPerPath(t *testing.T) {
	w := newTestWatcher(10 * time.Millisecond)
	defer close(w.events)

	// A new burst after a delivered notification starts a fresh timer for
	// the same path.
	for _, path := range []string{
		"/etc/openvswitch/conf.db",
		"/etc/openvswitch/conf.db",
	} {
		w.events <- fileEvent{path: path, event: notify.InCloseWrite}
		w.events <- fileEvent{path: path, event: notify.InCloseWrite}

		select {
		case got := <-w.Changed:
			if got != path {
				t.Errorf("%#v != %#v", got, path)
			}
		case <-time.After(time.Second):
			t.Fatal("no notification delivered")
		}
	}

	if _, ok := w.timers.Get("/etc/openvswitch/conf.db"); ok {
		t.Error("timer left behind after delivery")
	}
}
