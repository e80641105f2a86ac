// Package postgres implements the Postgres document backend. Documents live
// in a single documents table; there is no file-backed source of truth.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/VauntDev/tqla"
	"github.com/golang/glog"
	"github.com/lib/pq"

	"github.com/amaralx48x/ama-imoveis-app-sub000/internal/docstore"
	"github.com/amaralx48x/ama-imoveis-app-sub000/pkg/types"
)

const connectTimeout = 10 * time.Second

// Backend implements types.Backend over a Postgres database.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	db       *sql.DB
	store    *docstore.Store
}

// NewBackend creates a new Postgres backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend() *Backend {
	return &Backend{}
}

// Attach connects to config.DSN and creates the schema if missing.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if config.DSN == "" {
		return types.ErrDSNEmpty
	}

	db, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return translate(fmt.Errorf("connecting: %w", err))
	}

	store, err := docstore.New(db, tqla.Dollar)
	if err != nil {
		db.Close()
		return err
	}
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return translate(err)
	}

	b.db = db
	b.store = store
	b.attached = true
	glog.V(1).Info("postgres backend attached")
	return nil
}

// Detach stops every listener and closes the connection pool. Idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	b.store.Close()
	err := b.db.Close()
	b.db = nil
	b.store = nil
	b.attached = false
	return err
}

func (b *Backend) current() (*docstore.Store, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrBackendDetached
	}
	return b.store, nil
}

// GetDoc fetches a document.
func (b *Backend) GetDoc(ctx context.Context, loc types.Locator) (types.DocSnapshot, error) {
	s, err := b.current()
	if err != nil {
		return types.DocSnapshot{}, err
	}
	snap, err := s.GetDoc(ctx, loc)
	return snap, translate(err)
}

// GetQuery evaluates a query.
func (b *Backend) GetQuery(ctx context.Context, loc types.Locator) (types.QuerySnapshot, error) {
	s, err := b.current()
	if err != nil {
		return types.QuerySnapshot{}, err
	}
	snap, err := s.GetQuery(ctx, loc)
	return snap, translate(err)
}

// WatchDoc attaches a listener to a document. Only writes made through this
// backend wake listeners.
func (b *Backend) WatchDoc(loc types.Locator, onNext func(types.DocSnapshot), onErr func(error)) func() {
	s, err := b.current()
	if err != nil {
		go onErr(err)
		return func() {}
	}
	return s.WatchDoc(loc, onNext, func(err error) { onErr(translate(err)) })
}

// WatchQuery attaches a listener to a query.
func (b *Backend) WatchQuery(loc types.Locator, onNext func(types.QuerySnapshot), onErr func(error)) func() {
	s, err := b.current()
	if err != nil {
		go onErr(err)
		return func() {}
	}
	return s.WatchQuery(loc, onNext, func(err error) { onErr(translate(err)) })
}

// Set creates or overwrites a document.
func (b *Backend) Set(ctx context.Context, loc types.Locator, data json.RawMessage) error {
	s, err := b.current()
	if err != nil {
		return err
	}
	return translate(s.Set(ctx, loc, data))
}

// Create adds a document under a new ID.
func (b *Backend) Create(ctx context.Context, loc types.Locator, data json.RawMessage) (string, error) {
	s, err := b.current()
	if err != nil {
		return "", err
	}
	id, err := s.Create(ctx, loc, data)
	return id, translate(err)
}

// Update merges fields into an existing document.
func (b *Backend) Update(ctx context.Context, loc types.Locator, fields map[string]any) error {
	s, err := b.current()
	if err != nil {
		return err
	}
	return translate(s.Update(ctx, loc, fields))
}

// Delete removes a document.
func (b *Backend) Delete(ctx context.Context, loc types.Locator) error {
	s, err := b.current()
	if err != nil {
		return err
	}
	return translate(s.Delete(ctx, loc))
}

// translate maps server error classes onto the layer's sentinels so the
// access classifier can tell them apart.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch {
	case pqErr.Code == "42501" || pqErr.Code.Class() == "28":
		return fmt.Errorf("%w: %v", types.ErrPermissionDenied, err)
	case pqErr.Code.Class() == "08" || pqErr.Code.Class() == "53" || pqErr.Code.Class() == "57":
		return fmt.Errorf("%w: %v", types.ErrUnavailable, err)
	case pqErr.Code.Class() == "22":
		return fmt.Errorf("%w: %v", types.ErrInvalidData, err)
	}
	return err
}
