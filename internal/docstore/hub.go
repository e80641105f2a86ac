package docstore

import (
	"context"
	"sync"

	"github.com/golang/glog"

	"github.com/amaralx48x/ama-imoveis-app-sub000/pkg/types"
)

// Hub fans write notifications out to listeners. Each listener runs in its
// own goroutine and re-evaluates its locator in full after every write that
// may affect it. Notifications arriving while an evaluation is in flight
// coalesce into one more evaluation.
type Hub struct {
	store    *Store
	mu       sync.Mutex
	watchers map[*watcher]struct{}
	closed   bool
}

type watcher struct {
	loc    types.Locator
	eval   func(ctx context.Context) error
	onErr  func(error)
	kick   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

func newHub(s *Store) *Hub {
	return &Hub{store: s, watchers: make(map[*watcher]struct{})}
}

// watch registers a listener and starts its loop. The returned function
// stops it without waiting for an evaluation in flight.
func (h *Hub) watch(loc types.Locator, eval func(ctx context.Context) error, onErr func(error)) func() {
	ctx, cancel := context.WithCancel(context.Background())
	w := &watcher{
		loc:    loc,
		eval:   eval,
		onErr:  onErr,
		kick:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		cancel()
		go onErr(types.ErrBackendDetached)
		return func() {}
	}
	h.watchers[w] = struct{}{}
	h.mu.Unlock()

	go h.run(w)

	var once sync.Once
	return func() {
		once.Do(func() {
			w.cancel()
			h.remove(w)
		})
	}
}

func (h *Hub) run(w *watcher) {
	for {
		if err := w.eval(w.ctx); err != nil {
			if w.ctx.Err() != nil {
				return
			}
			glog.Warningf("listener on %s failed: %v", w.loc.Path(), err)
			h.remove(w)
			w.onErr(err)
			return
		}
		select {
		case <-w.kick:
		case <-w.ctx.Done():
			return
		}
	}
}

func (h *Hub) remove(w *watcher) {
	h.mu.Lock()
	delete(h.watchers, w)
	h.mu.Unlock()
}

// publish wakes every listener whose result may depend on the document at
// changed.
func (h *Hub) publish(changed types.Locator) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for w := range h.watchers {
		if !affects(w.loc, changed) {
			continue
		}
		select {
		case w.kick <- struct{}{}:
		default:
		}
	}
}

// Len returns the number of registered listeners.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers)
}

func (h *Hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for w := range h.watchers {
		w.cancel()
	}
	h.watchers = make(map[*watcher]struct{})
}

func affects(watched, changed types.Locator) bool {
	switch {
	case watched.IsDoc():
		return watched.Path() == changed.Path()
	case watched.IsGroup():
		return watched.Collection() == changed.Collection()
	default:
		return watched.Path() == changed.Parent()
	}
}
