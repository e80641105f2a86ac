package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/amaralx48x/ama-imoveis-app-sub000/pkg/types"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"insufficient privilege", &pq.Error{Code: "42501"}, types.ErrPermissionDenied},
		{"invalid password", &pq.Error{Code: "28P01"}, types.ErrPermissionDenied},
		{"connection failure", fmt.Errorf("query: %w", &pq.Error{Code: "08006"}), types.ErrUnavailable},
		{"too many connections", &pq.Error{Code: "53300"}, types.ErrUnavailable},
		{"admin shutdown", &pq.Error{Code: "57P01"}, types.ErrUnavailable},
		{"invalid json text", &pq.Error{Code: "22P02"}, types.ErrInvalidData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, translate(tt.err), tt.want)
		})
	}

	assert.NoError(t, translate(nil))
	other := errors.New("boom")
	assert.Same(t, other, translate(other))
	unique := &pq.Error{Code: "23505"}
	assert.Equal(t, error(unique), translate(unique))
}

func TestBackend_Detached(t *testing.T) {
	ctx := context.Background()
	b := NewBackend()

	_, err := b.GetDoc(ctx, types.MustDoc("agents/u1"))
	assert.ErrorIs(t, err, types.ErrBackendDetached)
	assert.NoError(t, b.Detach())

	err = b.Attach(types.Config{Backend: types.BackendPostgres})
	assert.ErrorIs(t, err, types.ErrDSNEmpty)
}
