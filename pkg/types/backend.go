package types

import (
	"context"
	"encoding/json"
)

// Source is the read capability of a document database: one-shot fetches
// and push listeners. Listeners deliver the full current value on every
// change, starting with an initial delivery.
type Source interface {
	// GetDoc fetches a document once. A missing document is not an error;
	// it yields a snapshot with Exists false.
	GetDoc(ctx context.Context, loc Locator) (DocSnapshot, error)

	// GetQuery evaluates a query once.
	GetQuery(ctx context.Context, loc Locator) (QuerySnapshot, error)

	// WatchDoc attaches a listener to a document. The returned stop function
	// detaches it without waiting for callbacks already in flight.
	WatchDoc(loc Locator, onNext func(DocSnapshot), onErr func(error)) (stop func())

	// WatchQuery attaches a listener to a query.
	WatchQuery(loc Locator, onNext func(QuerySnapshot), onErr func(error)) (stop func())
}

// Writer is the write capability of a document database.
type Writer interface {
	// Set creates or overwrites the document at loc.
	Set(ctx context.Context, loc Locator, data json.RawMessage) error

	// Create adds a document to the collection at loc under a new UUID v7
	// and returns the ID.
	Create(ctx context.Context, loc Locator, data json.RawMessage) (string, error)

	// Update merges fields into the top level of an existing document.
	// Returns ErrNotFound if the document does not exist.
	Update(ctx context.Context, loc Locator, fields map[string]any) error

	// Delete removes a document. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, loc Locator) error
}

// Backend is a document database the layer can attach to.
type Backend interface {
	Source
	Writer

	// Attach connects to the database described by config. Returns
	// ErrAlreadyAttached if called while attached.
	Attach(config Config) error

	// Detach releases resources. Idempotent. After Detach, operations
	// return ErrBackendDetached.
	Detach() error
}

// SessionStorage is a flat string-keyed, string-valued store with the
// lifetime of one session.
type SessionStorage interface {
	GetItem(key string) (value string, ok bool, err error)
	SetItem(key, value string) error
	RemoveItem(key string) error

	// Clear removes every item in one step.
	Clear() error
}
