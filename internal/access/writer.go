package access

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/amaralx48x/ama-imoveis-app-sub000/internal/demo"
	"github.com/amaralx48x/ama-imoveis-app-sub000/pkg/types"
)

// Writer wraps a types.Writer with demo awareness and error normalization.
// While a demo session is active nothing is written to the database.
// Every failure is returned as a *types.AccessError.
type Writer struct {
	dst  types.Writer
	demo *demo.Store
}

// NewWriter returns a Writer over dst. demo may be nil.
func NewWriter(dst types.Writer, d *demo.Store) *Writer {
	return &Writer{dst: dst, demo: d}
}

func (w *Writer) skip(op types.Operation, loc types.Locator) bool {
	if !w.demo.IsDemo() {
		return false
	}
	glog.V(1).Infof("demo: dropping %s on %s", op, loc.Path())
	return true
}

// Set creates or overwrites the document at loc with data encoded as JSON.
func (w *Writer) Set(ctx context.Context, loc types.Locator, data any) error {
	raw, err := encodeObject(data)
	if err != nil {
		return Classify(types.OpUpdate, loc, err)
	}
	if w.skip(types.OpUpdate, loc) {
		return nil
	}
	if err := w.dst.Set(ctx, loc, raw); err != nil {
		return Classify(types.OpUpdate, loc, err)
	}
	return nil
}

// Create adds a document to the collection at loc and returns its ID. In a
// demo session a fresh ID is returned without writing.
func (w *Writer) Create(ctx context.Context, loc types.Locator, data any) (string, error) {
	raw, err := encodeObject(data)
	if err != nil {
		return "", Classify(types.OpCreate, loc, err)
	}
	if w.skip(types.OpCreate, loc) {
		return uuid.Must(uuid.NewV7()).String(), nil
	}
	id, err := w.dst.Create(ctx, loc, raw)
	if err != nil {
		return "", Classify(types.OpCreate, loc, err)
	}
	return id, nil
}

// Update merges fields into the document at loc.
func (w *Writer) Update(ctx context.Context, loc types.Locator, fields map[string]any) error {
	if w.skip(types.OpUpdate, loc) {
		return nil
	}
	if err := w.dst.Update(ctx, loc, fields); err != nil {
		return Classify(types.OpUpdate, loc, err)
	}
	return nil
}

// Delete removes the document at loc.
func (w *Writer) Delete(ctx context.Context, loc types.Locator) error {
	if w.skip(types.OpDelete, loc) {
		return nil
	}
	if err := w.dst.Delete(ctx, loc); err != nil {
		return Classify(types.OpDelete, loc, err)
	}
	return nil
}

// encodeObject marshals v and checks that it is a JSON object.
func encodeObject(v any) (json.RawMessage, error) {
	var raw json.RawMessage
	switch d := v.(type) {
	case json.RawMessage:
		raw = d
	case []byte:
		raw = d
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrInvalidData, err)
		}
		raw = b
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, fmt.Errorf("%w: document must be a JSON object", types.ErrInvalidData)
	}
	return raw, nil
}
