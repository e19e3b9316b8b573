// ABOUTME: In-process change notification for the memory and badger backends
// ABOUTME: Watchers re-run their query after any write to a matching collection
package docstore

import "sync"

type hubWatcher struct {
	col     Collection
	mu      sync.Mutex // serializes refresh callbacks
	refresh func()
	done    bool
}

func (w *hubWatcher) run() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.done {
		w.refresh()
	}
}

// watchHub rebroadcasts writes to registered watchers. Refreshes run on
// their own goroutine so a write never blocks on a subscriber callback.
type watchHub struct {
	mu       sync.Mutex
	seq      int
	watchers map[int]*hubWatcher
}

func newWatchHub() *watchHub {
	return &watchHub{watchers: make(map[int]*hubWatcher)}
}

func (h *watchHub) subscribe(col Collection, refresh func()) (stop func()) {
	h.mu.Lock()
	h.seq++
	id := h.seq
	w := &hubWatcher{col: col, refresh: refresh}
	h.watchers[id] = w
	h.mu.Unlock()

	// initial snapshot
	go w.run()

	return func() {
		h.mu.Lock()
		delete(h.watchers, id)
		h.mu.Unlock()
		w.mu.Lock()
		w.done = true
		w.mu.Unlock()
	}
}

func (h *watchHub) broadcast(paths ...string) {
	h.mu.Lock()
	var hit []*hubWatcher
	for _, w := range h.watchers {
		for _, p := range paths {
			if w.col.matches(p) {
				hit = append(hit, w)
				break
			}
		}
	}
	h.mu.Unlock()
	for _, w := range hit {
		go w.run()
	}
}
