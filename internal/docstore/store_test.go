package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/VauntDev/tqla"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/amaralx48x/ama-imoveis-app-sub000/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	s, err := New(db, tqla.Question)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() {
		s.Close()
		db.Close()
	})
	return s
}

func TestStore_SetAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	loc := types.MustDoc("agents/u1")

	snap, err := s.GetDoc(ctx, loc)
	require.NoError(t, err)
	assert.False(t, snap.Exists)
	assert.Equal(t, "u1", snap.ID)
	assert.Equal(t, "agents/u1", snap.Path)

	require.NoError(t, s.Set(ctx, loc, json.RawMessage(`{"name":"Ana"}`)))
	snap, err = s.GetDoc(ctx, loc)
	require.NoError(t, err)
	assert.True(t, snap.Exists)
	assert.JSONEq(t, `{"name":"Ana"}`, string(snap.Data))

	require.NoError(t, s.Set(ctx, loc, json.RawMessage(`{"name":"Ana Paula"}`)))
	snap, err = s.GetDoc(ctx, loc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Ana Paula"}`, string(snap.Data))
}

func TestStore_ConcurrentSetAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	const workers, rounds = 8, 200
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			loc := types.MustDoc(fmt.Sprintf("agents/u%d", w))
			for i := range rounds {
				body := json.RawMessage(fmt.Sprintf(`{"n":%d}`, i))
				if err := s.Set(ctx, loc, body); err != nil {
					errs <- err
					return
				}
				snap, err := s.GetDoc(ctx, loc)
				if err != nil {
					errs <- err
					return
				}
				if string(snap.Data) != string(body) {
					errs <- fmt.Errorf("%s: got %s, want %s", loc.Path(), snap.Data, body)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	snap, err := s.GetQuery(ctx, types.MustCollection("agents"))
	require.NoError(t, err)
	assert.Len(t, snap.Docs, workers)
}

func TestStore_SetRejectsNonObject(t *testing.T) {
	s := newTestStore(t)
	err := s.Set(context.Background(), types.MustDoc("agents/u1"), json.RawMessage(`[1]`))
	assert.ErrorIs(t, err, types.ErrInvalidData)
}

func TestStore_SetRejectsCollection(t *testing.T) {
	s := newTestStore(t)
	err := s.Set(context.Background(), types.MustCollection("agents"), json.RawMessage(`{}`))
	assert.ErrorIs(t, err, types.ErrNotDocPath)
}

func TestStore_Create(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	coll := types.MustCollection("agents/u1/leads")

	id, err := s.Create(ctx, coll, json.RawMessage(`{"name":"Caio"}`))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	snap, err := s.GetDoc(ctx, types.MustDoc("agents/u1/leads/"+id))
	require.NoError(t, err)
	assert.True(t, snap.Exists)
	assert.Equal(t, id, snap.ID)

	_, err = s.Create(ctx, types.MustDoc("agents/u1"), json.RawMessage(`{}`))
	assert.ErrorIs(t, err, types.ErrNotCollection)
}

func TestStore_Update(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	loc := types.MustDoc("agents/u1/properties/p1")

	err := s.Update(ctx, loc, map[string]any{"status": "sold"})
	assert.ErrorIs(t, err, types.ErrNotFound)

	require.NoError(t, s.Set(ctx, loc, json.RawMessage(`{"title":"Casa","status":"active"}`)))
	require.NoError(t, s.Update(ctx, loc, map[string]any{"status": "sold", "price": 10}))

	snap, err := s.GetDoc(ctx, loc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Casa","status":"sold","price":10}`, string(snap.Data))
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	loc := types.MustDoc("agents/u1")

	assert.ErrorIs(t, s.Delete(ctx, loc), types.ErrNotFound)

	require.NoError(t, s.Set(ctx, loc, json.RawMessage(`{}`)))
	require.NoError(t, s.Delete(ctx, loc))

	snap, err := s.GetDoc(ctx, loc)
	require.NoError(t, err)
	assert.False(t, snap.Exists)
}

func TestStore_QueryScopesToParent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, types.MustDoc("agents/u1/properties/a"), json.RawMessage(`{"status":"active"}`)))
	require.NoError(t, s.Set(ctx, types.MustDoc("agents/u1/properties/b"), json.RawMessage(`{"status":"sold"}`)))
	require.NoError(t, s.Set(ctx, types.MustDoc("agents/u2/properties/c"), json.RawMessage(`{"status":"active"}`)))

	snap, err := s.GetQuery(ctx, types.MustCollection("agents/u1/properties"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(snap.Docs))

	empty, err := s.GetQuery(ctx, types.MustCollection("agents/u3/properties"))
	require.NoError(t, err)
	assert.NotNil(t, empty.Docs)
	assert.Empty(t, empty.Docs)

	group, err := types.CollectionGroup("properties")
	require.NoError(t, err)
	active, err := group.Where("status", types.OpEqual, "active")
	require.NoError(t, err)
	snap, err = s.GetQuery(ctx, active)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(snap.Docs))
}

func TestStore_RecordsAndLoad(t *testing.T) {
	ctx := context.Background()
	src := newTestStore(t)
	require.NoError(t, src.Set(ctx, types.MustDoc("agents/u1"), json.RawMessage(`{"name":"Ana"}`)))
	require.NoError(t, src.Set(ctx, types.MustDoc("agents/u1/leads/l1"), json.RawMessage(`{"name":"Caio"}`)))

	recs, err := src.Records(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "agents/u1", recs[0].Path)
	assert.Equal(t, "agents/u1/leads", recs[1].Parent)
	assert.Equal(t, "leads", recs[1].Collection)

	recs = append(recs,
		Record{Path: "agents", Data: `{}`},
		Record{Path: "agents/u9", Data: `"text"`},
	)

	dst := newTestStore(t)
	skipped, err := dst.Load(ctx, recs)
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)

	loaded, err := dst.Records(ctx)
	require.NoError(t, err)
	assert.Equal(t, recs[:2], loaded)
}

func collect[T any](t *testing.T) (func(T), func() []T, func(error)) {
	t.Helper()
	ch := make(chan T, 16)
	var got []T
	next := func() []T {
		for {
			select {
			case v := <-ch:
				got = append(got, v)
			default:
				return got
			}
		}
	}
	return func(v T) { ch <- v }, next, func(err error) { t.Errorf("unexpected listener error: %v", err) }
}

func TestStore_WatchDoc(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	loc := types.MustDoc("agents/u1")

	onNext, seen, onErr := collect[types.DocSnapshot](t)
	stop := s.WatchDoc(loc, onNext, onErr)
	defer stop()

	require.Eventually(t, func() bool { return len(seen()) == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, seen()[0].Exists)

	require.NoError(t, s.Set(ctx, loc, json.RawMessage(`{"name":"Ana"}`)))
	require.Eventually(t, func() bool {
		got := seen()
		return len(got) >= 2 && got[len(got)-1].Exists
	}, time.Second, 5*time.Millisecond)

	// Writes elsewhere do not wake the listener.
	n := len(seen())
	require.NoError(t, s.Set(ctx, types.MustDoc("agents/u2"), json.RawMessage(`{}`)))
	time.Sleep(30 * time.Millisecond)
	assert.Len(t, seen(), n)
}

func TestStore_WatchQuery(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	coll := types.MustCollection("agents/u1/leads")

	onNext, seen, onErr := collect[types.QuerySnapshot](t)
	stop := s.WatchQuery(coll, onNext, onErr)

	require.Eventually(t, func() bool { return len(seen()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, seen()[0].Docs)

	_, err := s.Create(ctx, coll, json.RawMessage(`{"name":"Caio"}`))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		got := seen()
		return len(got[len(got)-1].Docs) == 1
	}, time.Second, 5*time.Millisecond)

	stop()
	assert.Equal(t, 0, s.hub.Len())

	n := len(seen())
	_, err = s.Create(ctx, coll, json.RawMessage(`{"name":"Duda"}`))
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)
	assert.Len(t, seen(), n)
}

func TestStore_WatchAfterClose(t *testing.T) {
	s := newTestStore(t)
	s.Close()

	errs := make(chan error, 1)
	stop := s.WatchDoc(types.MustDoc("agents/u1"), func(types.DocSnapshot) {
		t.Error("unexpected delivery")
	}, func(err error) { errs <- err })
	defer stop()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, types.ErrBackendDetached)
	case <-time.After(time.Second):
		t.Fatal("no error delivered")
	}
}
