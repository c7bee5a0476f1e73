package datastore

import (
	"sync"

	"nodegraph_poc/pkg"
)

const watchBuffer = 16

type watchers struct {
	mu     sync.Mutex
	subs   map[int]chan pkg.Change
	next   int
	closed bool
}

func newWatchers() *watchers {
	return &watchers{subs: make(map[int]chan pkg.Change)}
}

func (w *watchers) subscribe() (<-chan pkg.Change, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ch := make(chan pkg.Change, watchBuffer)
	if w.closed {
		close(ch)
		return ch, func() {}
	}

	id := w.next
	w.next++
	w.subs[id] = ch

	return ch, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if c, ok := w.subs[id]; ok {
			delete(w.subs, id)
			close(c)
		}
	}
}

// notify never blocks. A full channel drops its oldest change.
func (w *watchers) notify(c pkg.Change) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, ch := range w.subs {
		select {
		case ch <- c:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- c:
		default:
		}
	}
}

func (w *watchers) close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.closed = true
	for id, ch := range w.subs {
		delete(w.subs, id)
		close(ch)
	}
}
