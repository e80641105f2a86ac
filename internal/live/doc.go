package live

import (
	"context"
	"encoding/json"

	"github.com/amaralx48x/ama-imoveis-app-sub000/internal/demo"
	"github.com/amaralx48x/ama-imoveis-app-sub000/pkg/types"
)

// DocState is what a Doc subscription currently exposes. Data is nil while
// loading, after an error, and when the document does not exist.
type DocState[T any] struct {
	Data    *T
	ID      string
	Loading bool
	Err     *types.AccessError
}

// Settled reports whether the subscription has left the loading state.
func (s DocState[T]) Settled() bool { return !s.Loading }

type docValue[T any] struct {
	value *T
	id    string
}

// Doc subscribes to a single document decoded into T.
type Doc[T any] struct {
	b *binding[types.DocSnapshot, docValue[T]]
}

// NewDoc returns an unbound Doc reading from src. d may be nil, in which
// case the subscription never enters demo mode.
func NewDoc[T any](src types.Source, d *demo.Store) *Doc[T] {
	b := &binding[types.DocSnapshot, docValue[T]]{
		op:     types.OpGet,
		demo:   d,
		fetch:  src.GetDoc,
		watch:  src.WatchDoc,
		decode: decodeDoc[T],
	}
	b.init()
	return &Doc[T]{b: b}
}

func decodeDoc[T any](s types.DocSnapshot) (docValue[T], error) {
	if !s.Exists {
		return docValue[T]{}, nil
	}
	v := new(T)
	if err := json.Unmarshal(s.Data, v); err != nil {
		return docValue[T]{}, err
	}
	return docValue[T]{value: v, id: s.ID}, nil
}

// Bind points the subscription at loc. Passing a locator with the same key
// as the current one does nothing; nil unbinds.
func (d *Doc[T]) Bind(loc *types.Locator) { d.b.bind(loc) }

// State returns the current state.
func (d *Doc[T]) State() DocState[T] { return docState(d.b.snapshot()) }

// Refresh fetches the document again, ignoring the demo cache, and
// overwrites the cache entry during a demo session. Outside one, a
// successful refresh re-attaches a listener stopped by an error.
func (d *Doc[T]) Refresh(ctx context.Context) error { return d.b.refresh(ctx) }

// Changed returns a channel closed on the next state change.
func (d *Doc[T]) Changed() <-chan struct{} { return d.b.changes() }

// Wait blocks until cond holds or ctx is done. It returns ErrClosed once
// the subscription is closed and cond does not hold.
func (d *Doc[T]) Wait(ctx context.Context, cond func(DocState[T]) bool) (DocState[T], error) {
	st, err := d.b.wait(ctx, func(s state[docValue[T]]) bool { return cond(docState(s)) })
	return docState(st), err
}

// Close detaches the listener, clears the loading flag and ignores any
// later results.
func (d *Doc[T]) Close() { d.b.close() }

func docState[T any](s state[docValue[T]]) DocState[T] {
	return DocState[T]{Data: s.data.value, ID: s.data.id, Loading: s.loading, Err: s.err}
}
