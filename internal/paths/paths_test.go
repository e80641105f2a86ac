package paths

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHost pins the working directory, home and environment.
func fakeHost(goos string, env map[string]string) host {
	return host{
		goos:          goos,
		getenv:        func(k string) string { return env[k] },
		getwd:         func() (string, error) { return "/work", nil },
		homeDir:       func() (string, error) { return "/home/ana", nil },
		userConfigDir: func() (string, error) { return "/Users/ana/Library/Application Support", nil },
	}
}

func TestResolveConfig(t *testing.T) {
	tests := []struct {
		name       string
		goos       string
		env        map[string]string
		flag       string
		wantDir    string
		wantSource string
	}{
		{
			name:       "flag beats env",
			goos:       "linux",
			env:        map[string]string{EnvConfigDir: "/env/cfg"},
			flag:       "/flag/cfg",
			wantDir:    "/flag/cfg",
			wantSource: "flag",
		},
		{
			name:       "relative flag is anchored at the working directory",
			goos:       "linux",
			flag:       "cfg",
			wantDir:    "/work/cfg",
			wantSource: "flag",
		},
		{
			name:       "env when no flag",
			goos:       "linux",
			env:        map[string]string{EnvConfigDir: "/env/cfg/"},
			wantDir:    "/env/cfg",
			wantSource: "env",
		},
		{
			name:       "linux XDG_CONFIG_HOME",
			goos:       "linux",
			env:        map[string]string{"XDG_CONFIG_HOME": "/xdg"},
			wantDir:    "/xdg/listings",
			wantSource: "default",
		},
		{
			name:       "linux home fallback",
			goos:       "linux",
			wantDir:    "/home/ana/.config/listings",
			wantSource: "default",
		},
		{
			name:       "darwin user config dir",
			goos:       "darwin",
			env:        map[string]string{"XDG_CONFIG_HOME": "/xdg"},
			wantDir:    "/Users/ana/Library/Application Support/listings",
			wantSource: "default",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fakeHost(tt.goos, tt.env).resolveConfig(tt.flag)
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tt.wantDir), got.Dir)
			assert.Equal(t, filepath.Join(got.Dir, "config.yaml"), got.File)
			assert.Equal(t, tt.wantSource, got.Source)
		})
	}
}

func TestResolveData(t *testing.T) {
	tests := []struct {
		name       string
		env        map[string]string
		flag       string
		configured string
		wantDir    string
		wantSource string
	}{
		{
			name:       "flag beats config and env",
			env:        map[string]string{EnvDataDir: "/env/data"},
			flag:       "/flag/data",
			configured: "/cfg/data",
			wantDir:    "/flag/data",
			wantSource: "flag",
		},
		{
			name:       "config beats env",
			env:        map[string]string{EnvDataDir: "/env/data"},
			configured: "store",
			wantDir:    "/work/store",
			wantSource: "config",
		},
		{
			name:       "env when nothing else",
			env:        map[string]string{EnvDataDir: "/env/data"},
			wantDir:    "/env/data",
			wantSource: "env",
		},
		{
			name:       "working directory default",
			wantDir:    "/work/.listings-db",
			wantSource: "default",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fakeHost("linux", tt.env).resolveData(tt.flag, tt.configured)
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tt.wantDir), got.Dir)
			assert.Equal(t, filepath.Join(got.Dir, "session.db"), got.Session)
			assert.Equal(t, tt.wantSource, got.Source)
		})
	}
}

func TestResolveErrors(t *testing.T) {
	h := fakeHost("linux", nil)
	h.homeDir = func() (string, error) { return "", errors.New("no home") }
	_, err := h.resolveConfig("")
	assert.ErrorContains(t, err, "no home")

	h.getwd = func() (string, error) { return "", errors.New("cwd gone") }
	_, err = h.resolveData("", "relative")
	assert.ErrorContains(t, err, "cwd gone")
	_, err = h.resolveData("", "")
	assert.ErrorContains(t, err, "cwd gone")
}

func TestResolveUsesProcessEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvDataDir, dir)
	got, err := ResolveData("", "")
	require.NoError(t, err)
	assert.Equal(t, dir, got.Dir)
	assert.Equal(t, "env", got.Source)

	t.Setenv(EnvConfigDir, dir)
	cfg, err := ResolveConfig("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), cfg.File)
}
