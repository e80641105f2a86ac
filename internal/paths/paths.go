// Package paths resolves where the listings CLI keeps its configuration
// and its data: the directories and the files the CLI opens inside them.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// appName names the platform configuration directory.
const appName = "listings"

// DefaultDataDirName is the data directory created under the working
// directory when nothing else selects one.
const DefaultDataDirName = ".listings-db"

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "LISTINGS_CONFIG_DIR"
	EnvDataDir   = "LISTINGS_DATA_DIR"
)

const (
	configFileName  = "config.yaml"
	sessionFileName = "session.db"
)

// Config locates the configuration directory and the config.yaml in it.
type Config struct {
	Dir  string
	File string
	// Source names what selected Dir: "flag", "env" or "default".
	Source string
}

// Data locates the data directory and the demo session database in it.
type Data struct {
	Dir     string
	Session string
	// Source names what selected Dir: "flag", "config", "env" or "default".
	Source string
}

// host abstracts the process environment so tests can pin it.
type host struct {
	goos          string
	getenv        func(string) string
	getwd         func() (string, error)
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}

var sys = host{
	goos:          runtime.GOOS,
	getenv:        os.Getenv,
	getwd:         os.Getwd,
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// ResolveConfig picks the configuration directory: flag, then
// LISTINGS_CONFIG_DIR, then the platform configuration directory
// ($XDG_CONFIG_HOME/listings or ~/.config/listings on Linux,
// os.UserConfigDir()/listings elsewhere).
func ResolveConfig(flag string) (Config, error) {
	return sys.resolveConfig(flag)
}

// ResolveData picks the data directory: flag, then the data_dir value from
// config.yaml, then LISTINGS_DATA_DIR, then ./.listings-db.
func ResolveData(flag, configured string) (Data, error) {
	return sys.resolveData(flag, configured)
}

func (h host) resolveConfig(flag string) (Config, error) {
	dir, source, err := h.pick(
		choice{"flag", flag},
		choice{"env", h.getenv(EnvConfigDir)},
	)
	if err != nil {
		return Config{}, fmt.Errorf("resolve config dir: %w", err)
	}
	if dir == "" {
		if dir, err = h.platformConfigDir(); err != nil {
			return Config{}, fmt.Errorf("resolve config dir: %w", err)
		}
		source = "default"
	}
	return Config{Dir: dir, File: filepath.Join(dir, configFileName), Source: source}, nil
}

func (h host) resolveData(flag, configured string) (Data, error) {
	dir, source, err := h.pick(
		choice{"flag", flag},
		choice{"config", configured},
		choice{"env", h.getenv(EnvDataDir)},
	)
	if err != nil {
		return Data{}, fmt.Errorf("resolve data dir: %w", err)
	}
	if dir == "" {
		cwd, err := h.getwd()
		if err != nil {
			return Data{}, fmt.Errorf("resolve data dir: %w", err)
		}
		dir, source = filepath.Join(cwd, DefaultDataDirName), "default"
	}
	return Data{Dir: dir, Session: filepath.Join(dir, sessionFileName), Source: source}, nil
}

type choice struct {
	source string
	value  string
}

// pick returns the first non-empty choice made absolute against the
// working directory, or "" when every choice is empty.
func (h host) pick(choices ...choice) (string, string, error) {
	for _, c := range choices {
		if c.value == "" {
			continue
		}
		if filepath.IsAbs(c.value) {
			return filepath.Clean(c.value), c.source, nil
		}
		cwd, err := h.getwd()
		if err != nil {
			return "", "", err
		}
		return filepath.Join(cwd, c.value), c.source, nil
	}
	return "", "", nil
}

func (h host) platformConfigDir() (string, error) {
	if h.goos == "linux" {
		if xdg := h.getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
		home, err := h.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", appName), nil
	}
	// ~/Library/Application Support on macOS, %APPDATA% on Windows.
	dir, err := h.userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName), nil
}
