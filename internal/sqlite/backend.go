// Package sqlite implements the SQLite document backend. SQLite is the query
// engine; documents.jsonl in the data directory is the source of truth and
// is loaded into a fresh database on every Attach.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/VauntDev/tqla"
	"github.com/golang/glog"
	_ "modernc.org/sqlite"

	"github.com/amaralx48x/ama-imoveis-app-sub000/internal/docstore"
	"github.com/amaralx48x/ama-imoveis-app-sub000/pkg/types"
)

const databaseFile = "documents.db"

// Backend implements types.Backend using SQLite as the query engine and a
// JSONL file as the source of truth.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	store    *docstore.Store

	syncStrategy  string
	batchSize     int
	batchInterval time.Duration
	pendingWrites []pendingWrite
	batchTimer    *time.Timer
	batchMu       sync.Mutex
}

// pendingWrite is a deferred JSONL write, queued by the on_close and batch
// sync strategies.
type pendingWrite struct {
	path      string
	operation string
	persist   func() error
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend() *Backend {
	return &Backend{}
}

// Attach initializes the backend with the given configuration.
// Creates DataDir if it does not exist, builds a fresh database and loads
// documents.jsonl into it.
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

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	// The database is a cache of the JSONL file, rebuilt on each attach.
	dbPath := filepath.Join(dataDir, databaseFile)
	_ = os.Remove(dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(1)

	store, err := docstore.New(db, tqla.Question)
	if err != nil {
		db.Close()
		return err
	}
	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return err
	}
	if err := initJSONL(dataDir); err != nil {
		db.Close()
		return err
	}
	if err := loadDocumentsJSONL(ctx, store, dataDir); err != nil {
		db.Close()
		return fmt.Errorf("load JSONL: %w", err)
	}

	config.DataDir = dataDir
	b.db = db
	b.store = store
	b.config = config

	b.syncStrategy = config.SQLiteConfig.GetSyncStrategy()
	b.batchSize = config.SQLiteConfig.GetBatchSize()
	b.batchInterval = time.Duration(config.SQLiteConfig.GetBatchInterval()) * time.Second
	b.pendingWrites = nil

	b.attached = true

	if b.syncStrategy == types.SyncBatch && b.batchInterval > 0 {
		b.startBatchTimer()
	}

	glog.V(1).Infof("sqlite backend attached at %s (sync %s)", dataDir, b.syncStrategy)
	return nil
}

// Detach releases all resources held by the backend. Pending JSONL writes
// are flushed first and every listener is stopped. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}

	b.stopBatchTimer()

	if err := b.flushPendingWritesLocked(); err != nil {
		return fmt.Errorf("flush pending writes: %w", err)
	}

	b.store.Close()
	if err := b.db.Close(); err != nil {
		return err
	}
	b.db = nil
	b.store = nil
	b.attached = false
	return nil
}

// GetDoc fetches a document.
func (b *Backend) GetDoc(ctx context.Context, loc types.Locator) (types.DocSnapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return types.DocSnapshot{}, types.ErrBackendDetached
	}
	return b.store.GetDoc(ctx, loc)
}

// GetQuery evaluates a query.
func (b *Backend) GetQuery(ctx context.Context, loc types.Locator) (types.QuerySnapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return types.QuerySnapshot{}, types.ErrBackendDetached
	}
	return b.store.GetQuery(ctx, loc)
}

// WatchDoc attaches a listener to a document. On a detached backend the
// listener receives ErrBackendDetached.
func (b *Backend) WatchDoc(loc types.Locator, onNext func(types.DocSnapshot), onErr func(error)) func() {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		go onErr(types.ErrBackendDetached)
		return func() {}
	}
	return b.store.WatchDoc(loc, onNext, onErr)
}

// WatchQuery attaches a listener to a query.
func (b *Backend) WatchQuery(loc types.Locator, onNext func(types.QuerySnapshot), onErr func(error)) func() {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		go onErr(types.ErrBackendDetached)
		return func() {}
	}
	return b.store.WatchQuery(loc, onNext, onErr)
}

// Set creates or overwrites a document.
func (b *Backend) Set(ctx context.Context, loc types.Locator, data json.RawMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrBackendDetached
	}
	if err := b.store.Set(ctx, loc, data); err != nil {
		return err
	}
	return b.persist(loc.Path(), "set")
}

// Create adds a document under a new ID.
func (b *Backend) Create(ctx context.Context, loc types.Locator, data json.RawMessage) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return "", types.ErrBackendDetached
	}
	id, err := b.store.Create(ctx, loc, data)
	if err != nil {
		return "", err
	}
	return id, b.persist(loc.Path()+"/"+id, "create")
}

// Update merges fields into an existing document.
func (b *Backend) Update(ctx context.Context, loc types.Locator, fields map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrBackendDetached
	}
	if err := b.store.Update(ctx, loc, fields); err != nil {
		return err
	}
	return b.persist(loc.Path(), "update")
}

// Delete removes a document.
func (b *Backend) Delete(ctx context.Context, loc types.Locator) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrBackendDetached
	}
	if err := b.store.Delete(ctx, loc); err != nil {
		return err
	}
	return b.persist(loc.Path(), "delete")
}

// persist writes documents.jsonl now or queues the write, depending on the
// sync strategy. The caller must hold b.mu.
func (b *Backend) persist(path, operation string) error {
	store, dataDir := b.store, b.config.DataDir
	write := func() error {
		recs, err := store.Records(context.Background())
		if err != nil {
			return err
		}
		docs := make([]documentJSON, 0, len(recs))
		for _, r := range recs {
			docs = append(docs, toDocumentJSON(r))
		}
		return persistDocumentsJSONL(dataDir, docs)
	}
	if b.shouldPersistImmediately() {
		if err := write(); err != nil {
			return fmt.Errorf("persist %s %s: %w", operation, path, err)
		}
		return nil
	}
	b.queueWrite(path, operation, write)
	return nil
}

// shouldPersistImmediately reports whether JSONL writes happen on every
// write: true for the immediate strategy, false for on_close and batch.
func (b *Backend) shouldPersistImmediately() bool {
	return b.syncStrategy == types.SyncImmediate || b.syncStrategy == ""
}

// queueWrite adds a write to the pending queue. For the batch strategy the
// queue is flushed once it reaches the batch size.
// The caller must hold b.mu.
func (b *Backend) queueWrite(path, operation string, persist func() error) {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	b.pendingWrites = append(b.pendingWrites, pendingWrite{
		path:      path,
		operation: operation,
		persist:   persist,
	})

	if b.syncStrategy == types.SyncBatch && b.batchSize > 0 && len(b.pendingWrites) >= b.batchSize {
		if err := b.flushPendingWritesBatchLocked(); err != nil {
			glog.Errorf("batch flush: %v", err)
		}
	}
}

// flushPendingWritesLocked flushes all pending writes to documents.jsonl.
// The caller must hold b.mu.
func (b *Backend) flushPendingWritesLocked() error {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	return b.flushPendingWritesBatchLocked()
}

// flushPendingWritesBatchLocked executes the pending writes. Every queued
// write rewrites the whole file, so only the last one needs to run.
// The caller must hold b.batchMu.
func (b *Backend) flushPendingWritesBatchLocked() error {
	if len(b.pendingWrites) == 0 {
		return nil
	}
	last := b.pendingWrites[len(b.pendingWrites)-1]
	if err := last.persist(); err != nil {
		// The queue is kept; the next flush or Attach reconciles.
		return fmt.Errorf("flush %s %s: %w", last.operation, last.path, err)
	}
	glog.V(2).Infof("flushed %d pending writes", len(b.pendingWrites))
	b.pendingWrites = nil
	return nil
}

// startBatchTimer starts the batch interval timer for periodic flushes.
func (b *Backend) startBatchTimer() {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	if b.batchTimer != nil {
		return
	}

	b.batchTimer = time.AfterFunc(b.batchInterval, func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if !b.attached {
			return
		}
		if err := b.flushPendingWritesLocked(); err != nil {
			glog.Errorf("batch flush: %v", err)
		}

		b.batchMu.Lock()
		if b.batchTimer != nil && b.attached {
			b.batchTimer.Reset(b.batchInterval)
		}
		b.batchMu.Unlock()
	})
}

// stopBatchTimer stops the batch interval timer if running.
func (b *Backend) stopBatchTimer() {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	if b.batchTimer != nil {
		b.batchTimer.Stop()
		b.batchTimer = nil
	}
}

// pendingCount returns the number of queued JSONL writes.
func (b *Backend) pendingCount() int {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()
	return len(b.pendingWrites)
}
