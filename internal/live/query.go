package live

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/amaralx48x/ama-imoveis-app-sub000/internal/demo"
	"github.com/amaralx48x/ama-imoveis-app-sub000/pkg/types"
)

// Entry is one decoded document of a query result.
type Entry[T any] struct {
	ID    string
	Path  string
	Value T
}

// QueryState is what a Query subscription currently exposes. Data is nil
// while loading or after an error and a non-nil slice once resolved, empty
// when nothing matched.
type QueryState[T any] struct {
	Data    []Entry[T]
	Loading bool
	Err     *types.AccessError
}

// Settled reports whether the subscription has left the loading state.
func (s QueryState[T]) Settled() bool { return !s.Loading }

// Query subscribes to the result set of a query, each document decoded
// into T. Entries keep the order the query produced.
type Query[T any] struct {
	b *binding[types.QuerySnapshot, []Entry[T]]
}

// NewQuery returns an unbound Query reading from src. d may be nil.
func NewQuery[T any](src types.Source, d *demo.Store) *Query[T] {
	b := &binding[types.QuerySnapshot, []Entry[T]]{
		op:     types.OpList,
		demo:   d,
		fetch:  src.GetQuery,
		watch:  src.WatchQuery,
		decode: decodeQuery[T],
	}
	b.init()
	return &Query[T]{b: b}
}

func decodeQuery[T any](s types.QuerySnapshot) ([]Entry[T], error) {
	out := make([]Entry[T], 0, len(s.Docs))
	for _, doc := range s.Docs {
		var v T
		if err := json.Unmarshal(doc.Data, &v); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", doc.Path, err)
		}
		out = append(out, Entry[T]{ID: doc.ID, Path: doc.Path, Value: v})
	}
	return out, nil
}

// Bind points the subscription at loc, which must be a query locator.
func (q *Query[T]) Bind(loc *types.Locator) { q.b.bind(loc) }

// State returns the current state.
func (q *Query[T]) State() QueryState[T] { return queryState(q.b.snapshot()) }

// Refresh evaluates the query again, ignoring the demo cache, and
// overwrites the cache entry during a demo session. Outside one, a
// successful refresh re-attaches a listener stopped by an error.
func (q *Query[T]) Refresh(ctx context.Context) error { return q.b.refresh(ctx) }

// Changed returns a channel closed on the next state change.
func (q *Query[T]) Changed() <-chan struct{} { return q.b.changes() }

// Wait blocks until cond holds or ctx is done. It returns ErrClosed once
// the subscription is closed and cond does not hold.
func (q *Query[T]) Wait(ctx context.Context, cond func(QueryState[T]) bool) (QueryState[T], error) {
	st, err := q.b.wait(ctx, func(s state[[]Entry[T]]) bool { return cond(queryState(s)) })
	return queryState(st), err
}

// Close detaches the listener, clears the loading flag and ignores any
// later results.
func (q *Query[T]) Close() { q.b.close() }

func queryState[T any](s state[[]Entry[T]]) QueryState[T] {
	return QueryState[T]{Data: s.data, Loading: s.loading, Err: s.err}
}
