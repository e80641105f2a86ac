package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/VauntDev/tqla"
	"github.com/blockloop/scan/v2"

	"github.com/amaralx48x/ama-imoveis-app-sub000/pkg/types"
)

const createSessionStorage = `CREATE TABLE IF NOT EXISTS session_storage (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);`

const (
	getItemTpl = `SELECT value FROM session_storage WHERE key = {{ .Key }}`
	setItemTpl = `INSERT INTO session_storage (key, value) VALUES ({{ .Key }}, {{ .Value }})
ON CONFLICT (key) DO UPDATE SET value = excluded.value`
	removeItemTpl = `DELETE FROM session_storage WHERE key = {{ .Key }}`
	clearTpl      = `DELETE FROM session_storage`
)

type item struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

type valueRow struct {
	Value string `db:"value"`
}

// SessionStorage is a types.SessionStorage kept in its own SQLite file, so
// a demo session survives process restarts until it is ended.
type SessionStorage struct {
	mu     sync.Mutex
	db     *sql.DB
	tq     interface {
		Compile(statement string, data any) (string, []any, error)
	}
	closed bool
}

// OpenSessionStorage opens or creates the session database at path.
func OpenSessionStorage(path string) (*SessionStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(createSessionStorage); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating session schema: %w", err)
	}
	tq, err := tqla.New(tqla.WithPlaceHolder(tqla.Question))
	if err != nil {
		db.Close()
		return nil, err
	}
	return &SessionStorage{db: db, tq: tq}, nil
}

func (s *SessionStorage) exec(tpl string, data any) error {
	stmt, args, err := s.tq.Compile(tpl, data)
	if err != nil {
		return fmt.Errorf("compile query template: %w", err)
	}
	_, err = s.db.ExecContext(context.Background(), stmt, args...)
	return err
}

// GetItem returns the value stored under key.
func (s *SessionStorage) GetItem(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", false, types.ErrStorageClosed
	}
	stmt, args, err := s.tq.Compile(getItemTpl, item{Key: key})
	if err != nil {
		return "", false, fmt.Errorf("compile query template: %w", err)
	}
	rows, err := s.db.QueryContext(context.Background(), stmt, args...)
	if err != nil {
		return "", false, err
	}
	var v valueRow
	err = scan.RowStrict(&v, rows)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("scan one row: %w", err)
	}
	return v.Value, true, nil
}

// SetItem stores value under key.
func (s *SessionStorage) SetItem(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.ErrStorageClosed
	}
	return s.exec(setItemTpl, item{Key: key, Value: value})
}

// RemoveItem deletes key. Removing a missing key is not an error.
func (s *SessionStorage) RemoveItem(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.ErrStorageClosed
	}
	return s.exec(removeItemTpl, item{Key: key})
}

// Clear removes every item in one statement.
func (s *SessionStorage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.ErrStorageClosed
	}
	return s.exec(clearTpl, nil)
}

// Close releases the database. Later calls return ErrStorageClosed.
func (s *SessionStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
