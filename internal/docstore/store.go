// Package docstore stores JSON documents addressed by slash-separated paths
// in a single SQL table and evaluates collection queries over them. It backs
// both the SQLite and the Postgres backends; only the placeholder style
// differs between them.
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/VauntDev/tqla"
	"github.com/blockloop/scan/v2"
	"github.com/google/uuid"

	"github.com/amaralx48x/ama-imoveis-app-sub000/pkg/types"
)

// Schema DDL. Both SQLite and Postgres accept it unchanged.
const (
	createDocuments = `CREATE TABLE IF NOT EXISTS documents (
    path TEXT PRIMARY KEY,
    parent TEXT NOT NULL,
    collection TEXT NOT NULL,
    doc_id TEXT NOT NULL,
    data TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`

	idxDocumentsParent     = `CREATE INDEX IF NOT EXISTS idx_documents_parent ON documents(parent);`
	idxDocumentsCollection = `CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);`
)

var schemaDDL = []string{createDocuments, idxDocumentsParent, idxDocumentsCollection}

const selectColumns = `SELECT path, parent, collection, doc_id, data, created_at, updated_at FROM documents`

// Statement templates compiled by tqla; every {{ }} value becomes a bind
// parameter.
const (
	getTpl        = selectColumns + ` WHERE path = {{ .Path }}`
	listParentTpl = selectColumns + ` WHERE parent = {{ .Parent }}`
	listGroupTpl  = selectColumns + ` WHERE collection = {{ .Collection }}`
	listAllTpl    = selectColumns + ` ORDER BY path`
	upsertTpl     = `INSERT INTO documents (path, parent, collection, doc_id, data, created_at, updated_at)
VALUES ({{ .Path }}, {{ .Parent }}, {{ .Collection }}, {{ .DocID }}, {{ .Data }}, {{ .CreatedAt }}, {{ .UpdatedAt }})
ON CONFLICT (path) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`
	updateTpl = `UPDATE documents SET data = {{ .Data }}, updated_at = {{ .UpdatedAt }} WHERE path = {{ .Path }}`
	deleteTpl = `DELETE FROM documents WHERE path = {{ .Path }}`
)

// Record is one row of the documents table.
type Record struct {
	Path       string `db:"path" json:"path"`
	Parent     string `db:"parent" json:"parent"`
	Collection string `db:"collection" json:"collection"`
	DocID      string `db:"doc_id" json:"doc_id"`
	Data       string `db:"data" json:"data"`
	CreatedAt  string `db:"created_at" json:"created_at"`
	UpdatedAt  string `db:"updated_at" json:"updated_at"`
}

// Document converts the row to its API form.
func (r Record) Document() types.Document {
	return types.Document{ID: r.DocID, Path: r.Path, Data: json.RawMessage(r.Data)}
}

// compiler turns a statement template into SQL and bind arguments.
type compiler interface {
	Compile(statement string, data any) (string, []any, error)
}

// Store is a document store over an open *sql.DB. It implements
// types.Source and types.Writer. Every successful write is published to the
// store's Hub so listeners re-evaluate.
type Store struct {
	db  *sql.DB
	hub *Hub
	now func() time.Time

	// tqla compiles through a shared function map; calls must be serialized.
	compileMu sync.Mutex
	tq        compiler
}

// New returns a Store using the placeholder style of the database driver:
// tqla.Question for SQLite, tqla.Dollar for Postgres.
func New(db *sql.DB, placeholder tqla.Placeholder) (*Store, error) {
	tq, err := tqla.New(tqla.WithPlaceHolder(placeholder))
	if err != nil {
		return nil, fmt.Errorf("creating statement compiler: %w", err)
	}
	s := &Store{
		db:  db,
		tq:  tq,
		now: func() time.Time { return time.Now().UTC() },
	}
	s.hub = newHub(s)
	return s, nil
}

// Migrate creates the documents table and its indexes if missing.
func (s *Store) Migrate(ctx context.Context) error {
	for _, ddl := range schemaDDL {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

// Close stops every listener. The database handle is owned by the caller.
func (s *Store) Close() { s.hub.close() }

func (s *Store) compile(tpl string, data any) (string, []any, error) {
	s.compileMu.Lock()
	defer s.compileMu.Unlock()
	return s.tq.Compile(tpl, data)
}

func (s *Store) query(ctx context.Context, tpl string, data any) (*sql.Rows, error) {
	stmt, args, err := s.compile(tpl, data)
	if err != nil {
		return nil, fmt.Errorf("compile query template: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("run query: %w", err)
	}
	return rows, nil
}

func (s *Store) exec(ctx context.Context, tpl string, data any) (int64, error) {
	stmt, args, err := s.compile(tpl, data)
	if err != nil {
		return 0, fmt.Errorf("compile query template: %w", err)
	}
	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) getRecord(ctx context.Context, path string) (Record, bool, error) {
	rows, err := s.query(ctx, getTpl, Record{Path: path})
	if err != nil {
		return Record{}, false, err
	}
	var rec Record
	err = scan.RowStrict(&rec, rows)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("scan one row: %w", err)
	}
	return rec, true, nil
}

// GetDoc fetches the document at loc.
func (s *Store) GetDoc(ctx context.Context, loc types.Locator) (types.DocSnapshot, error) {
	if !loc.IsDoc() {
		return types.DocSnapshot{}, fmt.Errorf("%w: %s", types.ErrNotDocPath, loc.Path())
	}
	rec, ok, err := s.getRecord(ctx, loc.Path())
	if err != nil {
		return types.DocSnapshot{}, err
	}
	if !ok {
		return types.Missing(loc), nil
	}
	return types.Found(rec.Document()), nil
}

// GetQuery evaluates the query at loc.
func (s *Store) GetQuery(ctx context.Context, loc types.Locator) (types.QuerySnapshot, error) {
	if loc.Kind() != types.KindQuery {
		return types.QuerySnapshot{}, fmt.Errorf("%w: %s", types.ErrNotCollection, loc.Path())
	}
	tpl, arg := listParentTpl, Record{Parent: loc.Path()}
	if loc.IsGroup() {
		tpl, arg = listGroupTpl, Record{Collection: loc.Collection()}
	}
	rows, err := s.query(ctx, tpl, arg)
	if err != nil {
		return types.QuerySnapshot{}, err
	}
	var recs []Record
	if err := scan.RowsStrict(&recs, rows); err != nil {
		return types.QuerySnapshot{}, fmt.Errorf("scan rows: %w", err)
	}
	docs := make([]types.Document, 0, len(recs))
	for _, r := range recs {
		docs = append(docs, r.Document())
	}
	out, err := Evaluate(loc, docs)
	if err != nil {
		return types.QuerySnapshot{}, err
	}
	return types.QuerySnapshot{Docs: out}, nil
}

// Records returns every stored row ordered by path.
func (s *Store) Records(ctx context.Context) ([]Record, error) {
	rows, err := s.query(ctx, listAllTpl, Record{})
	if err != nil {
		return nil, err
	}
	var recs []Record
	if err := scan.RowsStrict(&recs, rows); err != nil {
		return nil, fmt.Errorf("scan rows: %w", err)
	}
	return recs, nil
}

// Load inserts recs in one transaction, replacing rows with the same path.
// Records whose path does not name a document or whose data is not a JSON
// object are skipped; the number skipped is returned.
func (s *Store) Load(ctx context.Context, recs []Record) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	skipped := 0
	for _, r := range recs {
		loc, err := types.Doc(r.Path)
		if err != nil || !isObject([]byte(r.Data)) {
			skipped++
			continue
		}
		row := s.row(loc, json.RawMessage(r.Data))
		if r.CreatedAt != "" {
			row.CreatedAt = r.CreatedAt
		}
		if r.UpdatedAt != "" {
			row.UpdatedAt = r.UpdatedAt
		}
		stmt, args, err := s.compile(upsertTpl, row)
		if err != nil {
			return 0, fmt.Errorf("compile query template: %w", err)
		}
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return 0, fmt.Errorf("loading %s: %w", r.Path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing load transaction: %w", err)
	}
	return skipped, nil
}

func (s *Store) row(loc types.Locator, data json.RawMessage) Record {
	ts := s.now().Format(time.RFC3339Nano)
	return Record{
		Path:       loc.Path(),
		Parent:     loc.Parent(),
		Collection: loc.Collection(),
		DocID:      loc.ID(),
		Data:       string(data),
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
}

// Set creates or overwrites the document at loc.
func (s *Store) Set(ctx context.Context, loc types.Locator, data json.RawMessage) error {
	if !loc.IsDoc() {
		return fmt.Errorf("%w: %s", types.ErrNotDocPath, loc.Path())
	}
	if !isObject(data) {
		return fmt.Errorf("%w: document body must be a JSON object", types.ErrInvalidData)
	}
	if _, err := s.exec(ctx, upsertTpl, s.row(loc, data)); err != nil {
		return fmt.Errorf("writing %s: %w", loc.Path(), err)
	}
	s.hub.publish(loc)
	return nil
}

// Create adds a document under a new UUID v7 to the collection at loc.
func (s *Store) Create(ctx context.Context, loc types.Locator, data json.RawMessage) (string, error) {
	if loc.Kind() != types.KindQuery || loc.IsGroup() {
		return "", fmt.Errorf("%w: %s", types.ErrNotCollection, loc.Path())
	}
	id := uuid.Must(uuid.NewV7()).String()
	doc, err := types.Doc(loc.Path() + "/" + id)
	if err != nil {
		return "", err
	}
	if err := s.Set(ctx, doc, data); err != nil {
		return "", err
	}
	return id, nil
}

// Update merges fields into the top level of the existing document at loc.
func (s *Store) Update(ctx context.Context, loc types.Locator, fields map[string]any) error {
	if !loc.IsDoc() {
		return fmt.Errorf("%w: %s", types.ErrNotDocPath, loc.Path())
	}
	rec, ok, err := s.getRecord(ctx, loc.Path())
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrNotFound, loc.Path())
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(rec.Data), &body); err != nil || body == nil {
		return fmt.Errorf("%w: stored document %s is not an object", types.ErrInvalidData, loc.Path())
	}
	for k, v := range fields {
		body[k] = v
	}
	merged, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidData, err)
	}
	row := Record{Path: loc.Path(), Data: string(merged), UpdatedAt: s.now().Format(time.RFC3339Nano)}
	n, err := s.exec(ctx, updateTpl, row)
	if err != nil {
		return fmt.Errorf("updating %s: %w", loc.Path(), err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", types.ErrNotFound, loc.Path())
	}
	s.hub.publish(loc)
	return nil
}

// Delete removes the document at loc.
func (s *Store) Delete(ctx context.Context, loc types.Locator) error {
	if !loc.IsDoc() {
		return fmt.Errorf("%w: %s", types.ErrNotDocPath, loc.Path())
	}
	n, err := s.exec(ctx, deleteTpl, Record{Path: loc.Path()})
	if err != nil {
		return fmt.Errorf("deleting %s: %w", loc.Path(), err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", types.ErrNotFound, loc.Path())
	}
	s.hub.publish(loc)
	return nil
}

// WatchDoc attaches a listener to the document at loc.
func (s *Store) WatchDoc(loc types.Locator, onNext func(types.DocSnapshot), onErr func(error)) func() {
	return s.hub.watch(loc, func(ctx context.Context) error {
		snap, err := s.GetDoc(ctx, loc)
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		onNext(snap)
		return nil
	}, onErr)
}

// WatchQuery attaches a listener to the query at loc.
func (s *Store) WatchQuery(loc types.Locator, onNext func(types.QuerySnapshot), onErr func(error)) func() {
	return s.hub.watch(loc, func(ctx context.Context) error {
		snap, err := s.GetQuery(ctx, loc)
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		onNext(snap)
		return nil
	}, onErr)
}

func isObject(data []byte) bool {
	var m map[string]json.RawMessage
	return json.Unmarshal(data, &m) == nil && m != nil
}
