// Package live implements subscriptions to a single document (Doc) and to
// a query result set (Query). Each exposes the current value, a loading
// flag, an error and a manual refresh. Outside a demo session a push
// listener keeps the value current; inside one, reads come from the demo
// cache and at most one fetch per locator fills it.
package live

import (
	"context"
	"errors"
	"sync"

	"github.com/golang/glog"

	"github.com/amaralx48x/ama-imoveis-app-sub000/internal/access"
	"github.com/amaralx48x/ama-imoveis-app-sub000/internal/demo"
	"github.com/amaralx48x/ama-imoveis-app-sub000/pkg/types"
)

// ErrClosed is returned by Wait once the subscription is closed.
var ErrClosed = errors.New("live: subscription closed")

// state is a consistent copy of a binding's observable fields.
type state[D any] struct {
	data    D
	loading bool
	err     *types.AccessError
}

// binding is the state machine shared by Doc and Query. S is the snapshot
// type the source delivers and D the decoded value handed to callers.
//
// gen identifies the current locator binding and seq the most recently
// issued fetch; a result applies only when both still match.
type binding[S, D any] struct {
	op     types.Operation
	demo   *demo.Store
	fetch  func(context.Context, types.Locator) (S, error)
	watch  func(types.Locator, func(S), func(error)) func()
	decode func(S) (D, error)

	mu      sync.Mutex
	loc     *types.Locator
	gen     uint64
	seq     uint64
	stop    func()
	cancel  context.CancelFunc
	data    D
	loading bool
	err     *types.AccessError
	changed chan struct{}
	closed  bool
}

func (b *binding[S, D]) init() {
	b.changed = make(chan struct{})
}

func sameLocator(a, b *types.Locator) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Key() == b.Key()
}

// bind switches the binding to loc. A locator with the same key as the
// current one is a no-op; nil unbinds.
func (b *binding[S, D]) bind(loc *types.Locator) {
	b.mu.Lock()
	if b.closed || sameLocator(b.loc, loc) {
		b.mu.Unlock()
		return
	}
	stop, cancel := b.detachLocked()
	b.gen++
	gen := b.gen
	var zero D
	b.data = zero
	b.err = nil

	if loc == nil {
		b.loc = nil
		b.loading = false
		b.notifyLocked()
		b.mu.Unlock()
		release(stop, cancel)
		return
	}

	l := *loc
	b.loc = &l
	b.loading = true
	b.notifyLocked()

	if b.demo.IsDemo() {
		var cached S
		hit, err := b.demo.GetData(l.Key(), &cached)
		if err != nil {
			glog.Warningf("live: demo cache read for %s: %v", l.Path(), err)
		}
		if hit {
			b.applyLocked(cached)
			b.mu.Unlock()
			release(stop, cancel)
			return
		}
		b.seq++
		seq := b.seq
		ctx, c := context.WithCancel(context.Background())
		b.cancel = c
		b.mu.Unlock()
		release(stop, cancel)
		go b.settle(gen, seq, l, func() (S, error) { return b.fetch(ctx, l) })
		return
	}

	b.mu.Unlock()
	release(stop, cancel)
	b.attach(gen, l)
}

// attach starts a push listener for generation gen. The listener is dropped
// if the generation moved on, the binding failed or another listener is
// already attached.
func (b *binding[S, D]) attach(gen uint64, l types.Locator) {
	// The source may deliver synchronously, so the lock is not held here.
	s := b.watch(l,
		func(v S) { b.onNext(gen, v) },
		func(err error) { b.onErr(gen, l, err) },
	)
	b.mu.Lock()
	if b.closed || b.gen != gen || b.err != nil || b.stop != nil {
		b.mu.Unlock()
		s()
		return
	}
	b.stop = s
	b.mu.Unlock()
}

// detachLocked takes the listener and in-flight fetch of the current
// binding so the caller can release them after unlocking.
func (b *binding[S, D]) detachLocked() (func(), context.CancelFunc) {
	stop, cancel := b.stop, b.cancel
	b.stop, b.cancel = nil, nil
	return stop, cancel
}

func release(stop func(), cancel context.CancelFunc) {
	if stop != nil {
		stop()
	}
	if cancel != nil {
		cancel()
	}
}

func (b *binding[S, D]) notifyLocked() {
	close(b.changed)
	b.changed = make(chan struct{})
}

func (b *binding[S, D]) applyLocked(s S) {
	d, err := b.decode(s)
	if err != nil {
		b.failLocked(access.Classify(b.op, *b.loc, err))
		return
	}
	b.data = d
	b.loading = false
	b.err = nil
	b.notifyLocked()
}

func (b *binding[S, D]) failLocked(ae *types.AccessError) {
	var zero D
	b.data = zero
	b.loading = false
	b.err = ae
	b.notifyLocked()
}

func (b *binding[S, D]) onNext(gen uint64, s S) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || gen != b.gen {
		return
	}
	b.applyLocked(s)
}

func (b *binding[S, D]) onErr(gen uint64, loc types.Locator, err error) {
	b.mu.Lock()
	if b.closed || gen != b.gen {
		b.mu.Unlock()
		return
	}
	b.failLocked(access.Classify(b.op, loc, err))
	stop := b.stop
	b.stop = nil
	b.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// settle runs fetch and applies its result if the binding generation and
// fetch sequence are still current. Successful results are written to the
// demo cache, which ignores the write outside a demo session.
func (b *binding[S, D]) settle(gen, seq uint64, loc types.Locator, fetch func() (S, error)) *types.AccessError {
	s, err := fetch()
	ae := access.Classify(b.op, loc, err)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || gen != b.gen || seq != b.seq {
		glog.V(2).Infof("live: discarding stale %s result for %s", b.op, loc.Path())
		return ae
	}
	if ae != nil {
		b.failLocked(ae)
		return ae
	}
	b.applyLocked(s)
	if b.err != nil {
		return b.err
	}
	if err := b.demo.SetData(loc.Key(), s); err != nil {
		glog.Warningf("live: demo cache write for %s: %v", loc.Path(), err)
	}
	return nil
}

// refresh fetches the current locator regardless of mode and cache state.
// Outside a demo session, a successful fetch re-attaches the push listener
// if an earlier error had stopped it.
func (b *binding[S, D]) refresh(ctx context.Context) error {
	b.mu.Lock()
	if b.closed || b.loc == nil {
		b.mu.Unlock()
		return nil
	}
	l := *b.loc
	gen := b.gen
	b.seq++
	seq := b.seq
	b.mu.Unlock()

	if ae := b.settle(gen, seq, l, func() (S, error) { return b.fetch(ctx, l) }); ae != nil {
		return ae
	}
	if b.demo.IsDemo() {
		return nil
	}
	b.mu.Lock()
	detached := !b.closed && b.gen == gen && b.stop == nil
	b.mu.Unlock()
	if detached {
		b.attach(gen, l)
	}
	return nil
}

func (b *binding[S, D]) snapshot() state[D] {
	b.mu.Lock()
	defer b.mu.Unlock()
	return state[D]{data: b.data, loading: b.loading, err: b.err}
}

func (b *binding[S, D]) changes() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.changed
}

// wait blocks until cond holds for the current state or ctx is done.
func (b *binding[S, D]) wait(ctx context.Context, cond func(state[D]) bool) (state[D], error) {
	for {
		b.mu.Lock()
		st := state[D]{data: b.data, loading: b.loading, err: b.err}
		ch := b.changed
		closed := b.closed
		b.mu.Unlock()
		if cond(st) {
			return st, nil
		}
		if closed {
			return st, ErrClosed
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}

func (b *binding[S, D]) close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.gen++
	b.loading = false
	b.notifyLocked()
	stop, cancel := b.detachLocked()
	b.mu.Unlock()
	release(stop, cancel)
}
