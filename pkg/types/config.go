package types

import "errors"

// Config holds backend selection and parameters for Backend.Attach.
type Config struct {
	Backend      string       `json:"backend" yaml:"backend"`
	DataDir      string       `json:"data_dir" yaml:"data_dir"`
	DSN          string       `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	RemoteURL    string       `json:"remote_url,omitempty" yaml:"remote_url,omitempty"`
	SQLiteConfig SQLiteConfig `json:"sqlite" yaml:"sqlite"`
}

// SQLiteConfig controls when the SQLite backend persists documents.jsonl.
type SQLiteConfig struct {
	// SyncStrategy is one of SyncImmediate, SyncOnClose, SyncBatch.
	SyncStrategy string `json:"sync_strategy,omitempty" yaml:"sync_strategy,omitempty"`
	// BatchSize is the number of writes that triggers a batch flush.
	BatchSize int `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`
	// BatchInterval is the number of seconds between batch flushes.
	BatchInterval int `json:"batch_interval,omitempty" yaml:"batch_interval,omitempty"`
}

// Supported backend names.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRemote   = "remote"
)

// Sync strategies for the SQLite backend.
const (
	SyncImmediate = "immediate"
	SyncOnClose   = "on_close"
	SyncBatch     = "batch"
)

// SQLite sync defaults.
const (
	DefaultBatchSize     = 10
	DefaultBatchInterval = 5
)

// Config validation errors.
var (
	ErrBackendEmpty         = errors.New("backend must not be empty")
	ErrBackendUnknown       = errors.New("unknown backend")
	ErrDSNEmpty             = errors.New("postgres backend requires a dsn")
	ErrRemoteURLEmpty       = errors.New("remote backend requires a remote_url")
	ErrSyncStrategyUnknown  = errors.New("unknown sync strategy")
	ErrBatchSizeInvalid     = errors.New("batch size must be positive")
	ErrBatchIntervalInvalid = errors.New("batch interval must be positive")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite:   true,
	BackendPostgres: true,
	BackendRemote:   true,
}

var knownSyncStrategies = map[string]bool{
	SyncImmediate: true,
	SyncOnClose:   true,
	SyncBatch:     true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	switch c.Backend {
	case BackendPostgres:
		if c.DSN == "" {
			return ErrDSNEmpty
		}
	case BackendRemote:
		if c.RemoteURL == "" {
			return ErrRemoteURLEmpty
		}
	case BackendSQLite:
		return c.SQLiteConfig.Validate()
	}
	return nil
}

// Validate checks the sync settings. Zero values mean defaults.
func (s SQLiteConfig) Validate() error {
	if s.SyncStrategy != "" && !knownSyncStrategies[s.SyncStrategy] {
		return ErrSyncStrategyUnknown
	}
	if s.BatchSize < 0 {
		return ErrBatchSizeInvalid
	}
	if s.BatchInterval < 0 {
		return ErrBatchIntervalInvalid
	}
	return nil
}

// GetSyncStrategy returns the strategy, defaulting to SyncImmediate.
func (s SQLiteConfig) GetSyncStrategy() string {
	if s.SyncStrategy == "" {
		return SyncImmediate
	}
	return s.SyncStrategy
}

// GetBatchSize returns the batch size, defaulting to DefaultBatchSize.
func (s SQLiteConfig) GetBatchSize() int {
	if s.BatchSize == 0 {
		return DefaultBatchSize
	}
	return s.BatchSize
}

// GetBatchInterval returns the batch interval in seconds, defaulting to
// DefaultBatchInterval.
func (s SQLiteConfig) GetBatchInterval() int {
	if s.BatchInterval == 0 {
		return DefaultBatchInterval
	}
	return s.BatchInterval
}
