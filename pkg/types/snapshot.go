package types

import "encoding/json"

// Document is one stored document: its ID, full path and JSON object body.
type Document struct {
	ID   string          `json:"id"`
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

// DocSnapshot is the materialized value of a document locator.
// When Exists is false, ID and Path still name the requested document
// and Data is empty.
type DocSnapshot struct {
	Exists bool            `json:"exists"`
	ID     string          `json:"id"`
	Path   string          `json:"path"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// QuerySnapshot is the materialized result of a query locator, in query
// order. Docs is never nil for a resolved query.
type QuerySnapshot struct {
	Docs []Document `json:"docs"`
}

// Missing returns the snapshot of a document that does not exist.
func Missing(loc Locator) DocSnapshot {
	return DocSnapshot{Exists: false, ID: loc.ID(), Path: loc.Path()}
}

// Found returns the snapshot of an existing document.
func Found(d Document) DocSnapshot {
	return DocSnapshot{Exists: true, ID: d.ID, Path: d.Path, Data: d.Data}
}
