package live

import (
	"context"
	"sync"

	"github.com/amaralx48x/ama-imoveis-app-sub000/pkg/types"
)

// step scripts one fetch: it blocks until gate is closed (when set), then
// returns the scripted result. Gates ignore ctx so tests can deliver
// results for superseded bindings.
type step struct {
	gate  chan struct{}
	doc   types.DocSnapshot
	query types.QuerySnapshot
	err   error
}

type fakeWatch struct {
	loc     types.Locator
	onDoc   func(types.DocSnapshot)
	onQuery func(types.QuerySnapshot)
	onErr   func(error)
	stopped bool
}

// fakeSource is a scriptable types.Source that counts fetches and watches.
type fakeSource struct {
	mu       sync.Mutex
	docs     map[string]types.DocSnapshot
	queries  map[string]types.QuerySnapshot
	script   map[string][]step
	fetches  map[string]int
	finished map[string]int
	watches  []*fakeWatch
	changed  chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		docs:     make(map[string]types.DocSnapshot),
		queries:  make(map[string]types.QuerySnapshot),
		script:   make(map[string][]step),
		fetches:  make(map[string]int),
		finished: make(map[string]int),
		changed:  make(chan struct{}),
	}
}

func (f *fakeSource) notifyLocked() {
	close(f.changed)
	f.changed = make(chan struct{})
}

// waitFor blocks until cond holds under the fake's lock.
func (f *fakeSource) waitFor(ctx context.Context, cond func() bool) bool {
	for {
		f.mu.Lock()
		ok := cond()
		ch := f.changed
		f.mu.Unlock()
		if ok {
			return true
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return false
		}
	}
}

func (f *fakeSource) putDoc(path string, data string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	loc := types.MustDoc(path)
	f.docs[path] = types.DocSnapshot{Exists: true, ID: loc.ID(), Path: path, Data: []byte(data)}
}

func (f *fakeSource) putQuery(loc types.Locator, docs ...types.Document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries[loc.Key()] = types.QuerySnapshot{Docs: docs}
}

func (f *fakeSource) addStep(loc types.Locator, s step) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.script[loc.Key()] = append(f.script[loc.Key()], s)
}

func (f *fakeSource) fetchCount(loc types.Locator) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[loc.Key()]
}

func (f *fakeSource) watchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watches)
}

func (f *fakeSource) active(loc types.Locator) []*fakeWatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*fakeWatch
	for _, w := range f.watches {
		if !w.stopped && w.loc.Key() == loc.Key() {
			out = append(out, w)
		}
	}
	return out
}

func (f *fakeSource) begin(loc types.Locator) (step, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches[loc.Key()]++
	f.notifyLocked()
	steps := f.script[loc.Key()]
	if len(steps) == 0 {
		return step{}, false
	}
	f.script[loc.Key()] = steps[1:]
	return steps[0], true
}

func (f *fakeSource) finish(loc types.Locator) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished[loc.Key()]++
	f.notifyLocked()
}

func (f *fakeSource) GetDoc(_ context.Context, loc types.Locator) (types.DocSnapshot, error) {
	defer f.finish(loc)
	if s, ok := f.begin(loc); ok {
		if s.gate != nil {
			<-s.gate
		}
		return s.doc, s.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.docs[loc.Path()]; ok {
		return d, nil
	}
	return types.Missing(loc), nil
}

func (f *fakeSource) GetQuery(_ context.Context, loc types.Locator) (types.QuerySnapshot, error) {
	defer f.finish(loc)
	if s, ok := f.begin(loc); ok {
		if s.gate != nil {
			<-s.gate
		}
		return s.query, s.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.queries[loc.Key()]
	if !ok {
		return types.QuerySnapshot{Docs: []types.Document{}}, nil
	}
	return q, nil
}

func (f *fakeSource) register(w *fakeWatch) func() {
	f.mu.Lock()
	f.watches = append(f.watches, w)
	f.notifyLocked()
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		w.stopped = true
		f.notifyLocked()
	}
}

func (f *fakeSource) WatchDoc(loc types.Locator, onNext func(types.DocSnapshot), onErr func(error)) func() {
	stop := f.register(&fakeWatch{loc: loc, onDoc: onNext, onErr: onErr})
	go func() {
		f.mu.Lock()
		d, ok := f.docs[loc.Path()]
		f.mu.Unlock()
		if !ok {
			d = types.Missing(loc)
		}
		onNext(d)
	}()
	return stop
}

func (f *fakeSource) WatchQuery(loc types.Locator, onNext func(types.QuerySnapshot), onErr func(error)) func() {
	stop := f.register(&fakeWatch{loc: loc, onQuery: onNext, onErr: onErr})
	go func() {
		f.mu.Lock()
		q, ok := f.queries[loc.Key()]
		f.mu.Unlock()
		if !ok {
			q = types.QuerySnapshot{Docs: []types.Document{}}
		}
		onNext(q)
	}()
	return stop
}
