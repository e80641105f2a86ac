// Package sqlite provides the public API for the SQLite document backend
// and the file-backed demo session storage, keeping implementation details
// internal.
package sqlite

import (
	"github.com/amaralx48x/ama-imoveis-app-sub000/internal/sqlite"
	"github.com/amaralx48x/ama-imoveis-app-sub000/pkg/types"
)

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
//
// Example:
//
//	backend := sqlite.NewBackend()
//	err := backend.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".listings-db",
//	})
//	defer backend.Detach()
func NewBackend() types.Backend {
	return sqlite.NewBackend()
}

// SessionStorage is session storage kept in a SQLite file, so a demo
// session outlives the process that started it.
type SessionStorage interface {
	types.SessionStorage
	Close() error
}

// OpenSessionStorage opens or creates the session database at path.
func OpenSessionStorage(path string) (SessionStorage, error) {
	s, err := sqlite.OpenSessionStorage(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}
