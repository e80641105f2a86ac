package sqlite

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitJSONL(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, initJSONL(dir))

	path := filepath.Join(dir, documentsJSONL)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())

	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))
	require.NoError(t, initJSONL(dir))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data), "existing file is kept")
}

func TestWriteReadJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.jsonl")
	records := []json.RawMessage{
		json.RawMessage(`{"path":"agents/u1"}`),
		json.RawMessage(`{"path":"agents/u2"}`),
	}
	require.NoError(t, writeJSONL(path, records))

	got, err := readJSONL(path)
	require.NoError(t, err)
	assert.Equal(t, records, got)

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".jsonl-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestReadJSONL_SkipsBlankAndMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"a\":1}\n\nnot json\n{\"b\":2}\n"), 0o644))

	got, err := readJSONL(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.JSONEq(t, `{"b":2}`, string(got[1]))

	_, err = readJSONL(filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.Error(t, err)
}

func TestDocumentJSON_KeepsBodyInline(t *testing.T) {
	doc := documentJSON{Path: "agents/u1", Data: json.RawMessage(`{"name":"Ana"}`), CreatedAt: "t0", UpdatedAt: "t1"}
	b, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"path":"agents/u1","data":{"name":"Ana"},"created_at":"t0","updated_at":"t1"}`, string(b))

	rec := doc.record()
	assert.Equal(t, `{"name":"Ana"}`, rec.Data)
	assert.Equal(t, doc, toDocumentJSON(rec))
}
