package demo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/amaralx48x/ama-imoveis-app-sub000/pkg/types"
)

// Layout maps top-level fields of a bootstrap snapshot to the locators
// whose cache entries they seed. A field mapped to a document locator must
// hold a JSON object; one mapped to a query locator must hold an array of
// objects.
type Layout map[string]types.Locator

// maxBootstrapBytes caps the bootstrap payload read from the endpoint.
const maxBootstrapBytes = 16 << 20

// BuildSeed turns a bootstrap snapshot into cache entries keyed by locator
// key. Snapshot fields absent from the layout are ignored; layout fields
// absent from the snapshot are left uncached.
func BuildSeed(snapshot map[string]json.RawMessage, layout Layout) (map[string]any, error) {
	seed := make(map[string]any, len(layout))
	for field, raw := range snapshot {
		loc, ok := layout[field]
		if !ok {
			glog.V(1).Infof("demo: bootstrap field %q has no locator, skipping", field)
			continue
		}
		if loc.IsDoc() {
			snap, err := docSeed(loc, raw)
			if err != nil {
				return nil, fmt.Errorf("seeding %q: %w", field, err)
			}
			seed[loc.Key()] = snap
			continue
		}
		snap, err := querySeed(loc, raw)
		if err != nil {
			return nil, fmt.Errorf("seeding %q: %w", field, err)
		}
		seed[loc.Key()] = snap
	}
	return seed, nil
}

func docSeed(loc types.Locator, raw json.RawMessage) (types.DocSnapshot, error) {
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, []byte("null")) {
		return types.Missing(loc), nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return types.DocSnapshot{}, fmt.Errorf("%w: %s wants an object", types.ErrSeedShape, loc.Path())
	}
	return types.DocSnapshot{Exists: true, ID: loc.ID(), Path: loc.Path(), Data: trimmed}, nil
}

func querySeed(loc types.Locator, raw json.RawMessage) (types.QuerySnapshot, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return types.QuerySnapshot{}, fmt.Errorf("%w: %s wants an array", types.ErrSeedShape, loc.Path())
	}
	docs := make([]types.Document, 0, len(items))
	for i, item := range items {
		var head struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(item, &head); err != nil {
			return types.QuerySnapshot{}, fmt.Errorf("%w: %s item %d is not an object", types.ErrSeedShape, loc.Path(), i)
		}
		id := head.ID
		if id == "" {
			id = uuid.Must(uuid.NewV7()).String()
		}
		docs = append(docs, types.Document{ID: id, Path: loc.Path() + "/" + id, Data: item})
	}
	return types.QuerySnapshot{Docs: docs}, nil
}

// DecodeSnapshot parses a bootstrap payload, which must be a JSON object.
func DecodeSnapshot(data []byte) (map[string]json.RawMessage, error) {
	var snapshot map[string]json.RawMessage
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidSeed, err)
	}
	if snapshot == nil {
		return nil, fmt.Errorf("%w: not an object", types.ErrInvalidSeed)
	}
	return snapshot, nil
}

// LoadBootstrapFile reads a bootstrap snapshot from disk.
func LoadBootstrapFile(path string) (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading bootstrap file: %w", err)
	}
	return DecodeSnapshot(data)
}

// FetchBootstrap downloads a bootstrap snapshot from the demo endpoint.
func FetchBootstrap(ctx context.Context, client *http.Client, url string) (map[string]json.RawMessage, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building bootstrap request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching bootstrap: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching bootstrap: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBootstrapBytes))
	if err != nil {
		return nil, fmt.Errorf("reading bootstrap body: %w", err)
	}
	return DecodeSnapshot(data)
}

// Begin starts a demo session seeded from snapshot through layout.
func (s *Store) Begin(snapshot map[string]json.RawMessage, layout Layout) (string, error) {
	seed, err := BuildSeed(snapshot, layout)
	if err != nil {
		return "", err
	}
	return s.Start(seed)
}
