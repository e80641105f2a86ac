package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaralx48x/ama-imoveis-app-sub000/pkg/types"
)

func TestNewBackend(t *testing.T) {
	b := NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	defer b.Detach()

	ctx := context.Background()
	loc := types.MustDoc("agents/u1")
	require.NoError(t, b.Set(ctx, loc, json.RawMessage(`{"name":"Ana"}`)))
	snap, err := b.GetDoc(ctx, loc)
	require.NoError(t, err)
	assert.True(t, snap.Exists)
}

func TestOpenSessionStorage(t *testing.T) {
	s, err := OpenSessionStorage(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SetItem("k", "v"))
	v, ok, err := s.GetItem("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}
