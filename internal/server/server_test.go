package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaralx48x/ama-imoveis-app-sub000/internal/sqlite"
	"github.com/amaralx48x/ama-imoveis-app-sub000/pkg/types"
)

func newTestServer(t *testing.T, bootstrap string) (*httptest.Server, *sqlite.Backend) {
	t.Helper()
	b := sqlite.NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	ts := httptest.NewServer(New(b, bootstrap))
	t.Cleanup(func() {
		ts.Close()
		b.Detach()
	})
	return ts, b
}

func request(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func errorCode(t *testing.T, body []byte) types.Code {
	t.Helper()
	var er ErrorResponse
	require.NoError(t, json.Unmarshal(body, &er))
	return er.Error.Code
}

func TestServer_DocLifecycle(t *testing.T) {
	ts, _ := newTestServer(t, "")
	url := ts.URL + DocsPrefix + "agents/u1"

	resp, body := request(t, http.MethodGet, url, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap types.DocSnapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.False(t, snap.Exists)
	assert.Equal(t, "u1", snap.ID)

	resp, _ = request(t, http.MethodPut, url, `{"name":"Ana","plan":"free"}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = request(t, http.MethodPatch, url, `{"plan":"pro"}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, body = request(t, http.MethodGet, url, "")
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.True(t, snap.Exists)
	assert.JSONEq(t, `{"name":"Ana","plan":"pro"}`, string(snap.Data))

	resp, _ = request(t, http.MethodDelete, url, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = request(t, http.MethodDelete, url, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, types.CodeNotFound, errorCode(t, body))
}

func TestServer_RejectsBadInput(t *testing.T) {
	ts, _ := newTestServer(t, "")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"collection path as doc", http.MethodGet, DocsPrefix + "agents", ""},
		{"non-object body", http.MethodPut, DocsPrefix + "agents/u1", `[1,2]`},
		{"malformed patch", http.MethodPatch, DocsPrefix + "agents/u1", `{`},
		{"doc path as collection", http.MethodPost, CollectionsPrefix + "agents/u1", `{}`},
		{"doc locator as query", http.MethodPost, QueryPath, `{"kind":"doc","path":"agents/u1"}`},
		{"unknown operator", http.MethodPost, QueryPath, `{"kind":"query","path":"agents","where":[{"field":"a","op":"~","value":1}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := request(t, tt.method, ts.URL+tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, types.CodeInvalidData, errorCode(t, body))
		})
	}
}

func TestServer_CreateAndQuery(t *testing.T) {
	ts, _ := newTestServer(t, "")

	for _, body := range []string{`{"title":"Casa","price":3}`, `{"title":"Apto","price":1}`, `{"title":"Loft","price":2}`} {
		resp, out := request(t, http.MethodPost, ts.URL+CollectionsPrefix+"agents/u1/properties", body)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var cr CreateResponse
		require.NoError(t, json.Unmarshal(out, &cr))
		assert.NotEmpty(t, cr.ID)
	}

	loc, err := types.MustCollection("agents/u1/properties").OrderBy("price", types.Desc)
	require.NoError(t, err)
	loc, err = loc.Limit(2)
	require.NoError(t, err)
	q, err := json.Marshal(loc)
	require.NoError(t, err)

	resp, out := request(t, http.MethodPost, ts.URL+QueryPath, string(q))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap types.QuerySnapshot
	require.NoError(t, json.Unmarshal(out, &snap))
	require.Len(t, snap.Docs, 2)
	assert.JSONEq(t, `{"title":"Casa","price":3}`, string(snap.Docs[0].Data))
	assert.JSONEq(t, `{"title":"Loft","price":2}`, string(snap.Docs[1].Data))
}

func TestServer_Bootstrap(t *testing.T) {
	ts, _ := newTestServer(t, "")
	resp, body := request(t, http.MethodGet, ts.URL+BootstrapPath, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, types.CodeNotFound, errorCode(t, body))

	file := filepath.Join(t.TempDir(), "demo.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"profile":{"name":"Demo"}}`), 0o644))
	ts, _ = newTestServer(t, file)
	resp, body = request(t, http.MethodGet, ts.URL+BootstrapPath, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"profile":{"name":"Demo"}}`, string(body))

	resp, _ = request(t, http.MethodGet, ts.URL+HealthPath, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func dialWatch(t *testing.T, ts *httptest.Server, loc types.Locator) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+WatchPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	require.NoError(t, ws.WriteJSON(loc))
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) Frame {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f Frame
	require.NoError(t, ws.ReadJSON(&f))
	return f
}

func TestServer_WatchDoc(t *testing.T) {
	ts, b := newTestServer(t, "")
	loc := types.MustDoc("agents/u1")
	ws := dialWatch(t, ts, loc)

	f := readFrame(t, ws)
	require.NotNil(t, f.Doc)
	assert.False(t, f.Doc.Exists)

	require.NoError(t, b.Set(context.Background(), loc, json.RawMessage(`{"name":"Ana"}`)))
	f = readFrame(t, ws)
	require.NotNil(t, f.Doc)
	assert.True(t, f.Doc.Exists)
	assert.JSONEq(t, `{"name":"Ana"}`, string(f.Doc.Data))
}

func TestServer_WatchQuery(t *testing.T) {
	ts, b := newTestServer(t, "")
	loc := types.MustCollection("agents/u1/leads")
	ws := dialWatch(t, ts, loc)

	f := readFrame(t, ws)
	require.NotNil(t, f.Query)
	assert.Empty(t, f.Query.Docs)

	_, err := b.Create(context.Background(), loc, json.RawMessage(`{"name":"Caio"}`))
	require.NoError(t, err)
	f = readFrame(t, ws)
	require.NotNil(t, f.Query)
	assert.Len(t, f.Query.Docs, 1)
}

type deniedBackend struct {
	types.Backend
}

func (deniedBackend) GetDoc(context.Context, types.Locator) (types.DocSnapshot, error) {
	return types.DocSnapshot{}, types.ErrPermissionDenied
}

func (deniedBackend) WatchQuery(_ types.Locator, _ func(types.QuerySnapshot), onErr func(error)) func() {
	go onErr(types.ErrPermissionDenied)
	return func() {}
}

func TestServer_PermissionDenied(t *testing.T) {
	ts := httptest.NewServer(New(deniedBackend{}, ""))
	defer ts.Close()

	resp, body := request(t, http.MethodGet, ts.URL+DocsPrefix+"agents/u1", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, types.CodePermissionDenied, errorCode(t, body))

	ws := dialWatch(t, ts, types.MustCollection("agents/u1/properties"))
	f := readFrame(t, ws)
	require.NotNil(t, f.Error)
	assert.Equal(t, types.CodePermissionDenied, f.Error.Code)
}
