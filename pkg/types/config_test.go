package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{
			name:    "empty backend returns ErrBackendEmpty",
			config:  Config{Backend: "", DataDir: "/tmp/data"},
			wantErr: ErrBackendEmpty,
		},
		{
			name:    "unknown backend returns ErrBackendUnknown",
			config:  Config{Backend: "firestore", DataDir: "/tmp/data"},
			wantErr: ErrBackendUnknown,
		},
		{
			name:    "valid sqlite config",
			config:  Config{Backend: "sqlite", DataDir: "/tmp/data"},
			wantErr: nil,
		},
		{
			name:    "sqlite with empty DataDir is valid at config level",
			config:  Config{Backend: "sqlite", DataDir: ""},
			wantErr: nil,
		},
		{
			name:    "sqlite with unknown sync strategy",
			config:  Config{Backend: "sqlite", SQLiteConfig: SQLiteConfig{SyncStrategy: "sometimes"}},
			wantErr: ErrSyncStrategyUnknown,
		},
		{
			name:    "sqlite with negative batch size",
			config:  Config{Backend: "sqlite", SQLiteConfig: SQLiteConfig{SyncStrategy: SyncBatch, BatchSize: -1}},
			wantErr: ErrBatchSizeInvalid,
		},
		{
			name:    "postgres without dsn",
			config:  Config{Backend: "postgres"},
			wantErr: ErrDSNEmpty,
		},
		{
			name:    "postgres with dsn",
			config:  Config{Backend: "postgres", DSN: "postgres://u:p@localhost/db"},
			wantErr: nil,
		},
		{
			name:    "remote without url",
			config:  Config{Backend: "remote"},
			wantErr: ErrRemoteURLEmpty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected nil error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error %v, got nil", tt.wantErr)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSQLiteConfigDefaults(t *testing.T) {
	var s SQLiteConfig
	assert.Equal(t, SyncImmediate, s.GetSyncStrategy())
	assert.Equal(t, DefaultBatchSize, s.GetBatchSize())
	assert.Equal(t, DefaultBatchInterval, s.GetBatchInterval())

	s = SQLiteConfig{SyncStrategy: SyncBatch, BatchSize: 3, BatchInterval: 1}
	assert.Equal(t, SyncBatch, s.GetSyncStrategy())
	assert.Equal(t, 3, s.GetBatchSize())
	assert.Equal(t, 1, s.GetBatchInterval())
}
