package sqlite

import (
	"encoding/json"

	"github.com/amaralx48x/ama-imoveis-app-sub000/internal/docstore"
)

// documentJSON is one line of documents.jsonl. Data holds the document body
// inline rather than as an escaped string so the file stays readable and
// diffable.
type documentJSON struct {
	Path      string          `json:"path"`
	Data      json.RawMessage `json:"data"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

func toDocumentJSON(r docstore.Record) documentJSON {
	return documentJSON{
		Path:      r.Path,
		Data:      json.RawMessage(r.Data),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// record converts the line to a row. Parent, collection and ID are derived
// from the path when the row is loaded.
func (d documentJSON) record() docstore.Record {
	return docstore.Record{
		Path:      d.Path,
		Data:      string(d.Data),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}
