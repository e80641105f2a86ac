package cli

import (
	"errors"
	"fmt"

	"github.com/amaralx48x/ama-imoveis-app-sub000/internal/demo"
	"github.com/amaralx48x/ama-imoveis-app-sub000/internal/paths"
	"github.com/amaralx48x/ama-imoveis-app-sub000/internal/postgres"
	"github.com/amaralx48x/ama-imoveis-app-sub000/internal/remote"
	"github.com/amaralx48x/ama-imoveis-app-sub000/pkg/sqlite"
	"github.com/amaralx48x/ama-imoveis-app-sub000/pkg/types"
)

// newBackend returns an unattached backend of the given kind.
func newBackend(kind string) (types.Backend, error) {
	switch kind {
	case types.BackendSQLite:
		return sqlite.NewBackend(), nil
	case types.BackendPostgres:
		return postgres.NewBackend(), nil
	case types.BackendRemote:
		return remote.NewClient(nil), nil
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrBackendUnknown, kind)
	}
}

// openBackend creates and attaches the configured backend. The caller must
// Detach it.
func openBackend(cfg types.Config) (types.Backend, error) {
	b, err := newBackend(cfg.Backend)
	if err != nil {
		return nil, userError(err)
	}
	if err := b.Attach(cfg); err != nil {
		return nil, sysError(fmt.Errorf("attach %s backend: %w", cfg.Backend, err))
	}
	return b, nil
}

// session is the attached backend plus the demo session kept in the data
// directory.
type session struct {
	backend types.Backend
	storage sqlite.SessionStorage
	demo    *demo.Store
}

// openSession attaches the backend and opens the demo session storage.
func (a *app) openSession() (*session, error) {
	cfg, err := a.backendConfig()
	if err != nil {
		return nil, err
	}
	d, err := a.data()
	if err != nil {
		return nil, err
	}
	storage, err := a.openSessionStorage(d)
	if err != nil {
		return nil, err
	}
	b, err := openBackend(cfg)
	if err != nil {
		storage.Close()
		return nil, err
	}
	return &session{backend: b, storage: storage, demo: demo.NewStore(storage)}, nil
}

func (a *app) openSessionStorage(d paths.Data) (sqlite.SessionStorage, error) {
	storage, err := sqlite.OpenSessionStorage(d.Session)
	if err != nil {
		return nil, sysError(fmt.Errorf("open session storage: %w", err))
	}
	return storage, nil
}

func (s *session) close() error {
	return errors.Join(s.backend.Detach(), s.storage.Close())
}
