package cli

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/amaralx48x/ama-imoveis-app-sub000/internal/paths"
	"github.com/amaralx48x/ama-imoveis-app-sub000/pkg/types"
)

const (
	configFileType = "yaml"

	cfgKeyBackend          = "backend"
	cfgKeyDataDir          = "data_dir"
	cfgKeyDSN              = "dsn"
	cfgKeyRemoteURL        = "remote_url"
	cfgKeySyncStrategy     = "sync_strategy"
	cfgKeyBatchSize        = "batch_size"
	cfgKeyBatchInterval    = "batch_interval"
	cfgKeyDemoAgentID      = "demo.agent_id"
	cfgKeyDemoBootstrapURL = "demo.bootstrap_url"
	cfgKeyServeAddr        = "serve.addr"

	defaultBackend     = types.BackendSQLite
	defaultDemoAgentID = "demo"
	defaultServeAddr   = "127.0.0.1:8080"
)

// configFile holds the structure written to config.yaml.
type configFile struct {
	Backend       string      `yaml:"backend"`
	DataDir       string      `yaml:"data_dir,omitempty"`
	DSN           string      `yaml:"dsn,omitempty"`
	RemoteURL     string      `yaml:"remote_url,omitempty"`
	SyncStrategy  string      `yaml:"sync_strategy,omitempty"`
	BatchSize     int         `yaml:"batch_size,omitempty"`
	BatchInterval int         `yaml:"batch_interval,omitempty"`
	Demo          demoConfig  `yaml:"demo"`
	Serve         serveConfig `yaml:"serve"`
}

type demoConfig struct {
	AgentID      string `yaml:"agent_id"`
	BootstrapURL string `yaml:"bootstrap_url,omitempty"`
}

type serveConfig struct {
	Addr string `yaml:"addr"`
}

func defaultConfigFile() configFile {
	return configFile{
		Backend: defaultBackend,
		Demo:    demoConfig{AgentID: defaultDemoAgentID},
		Serve:   serveConfig{Addr: defaultServeAddr},
	}
}

// loadConfig reads config.yaml from conf using Viper. It creates the
// config directory and a default config.yaml on first run.
func loadConfig(conf paths.Config) (*viper.Viper, error) {
	if err := os.MkdirAll(conf.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	if err := writeConfigIfMissing(conf.File, defaultConfigFile()); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, defaultBackend)
	v.SetDefault(cfgKeyDemoAgentID, defaultDemoAgentID)
	v.SetDefault(cfgKeyServeAddr, defaultServeAddr)
	v.SetConfigFile(conf.File)
	v.SetConfigType(configFileType)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// configFromViper converts loaded settings into a backend Config rooted at
// dataDir.
func configFromViper(v *viper.Viper, dataDir string) types.Config {
	return types.Config{
		Backend:   v.GetString(cfgKeyBackend),
		DataDir:   dataDir,
		DSN:       v.GetString(cfgKeyDSN),
		RemoteURL: v.GetString(cfgKeyRemoteURL),
		SQLiteConfig: types.SQLiteConfig{
			SyncStrategy:  v.GetString(cfgKeySyncStrategy),
			BatchSize:     v.GetInt(cfgKeyBatchSize),
			BatchInterval: v.GetInt(cfgKeyBatchInterval),
		},
	}
}

// configFileFrom captures the effective settings for writing back to disk.
func configFileFrom(v *viper.Viper, cfg types.Config) configFile {
	return configFile{
		Backend:       cfg.Backend,
		DataDir:       cfg.DataDir,
		DSN:           cfg.DSN,
		RemoteURL:     cfg.RemoteURL,
		SyncStrategy:  cfg.SQLiteConfig.SyncStrategy,
		BatchSize:     cfg.SQLiteConfig.BatchSize,
		BatchInterval: cfg.SQLiteConfig.BatchInterval,
		Demo: demoConfig{
			AgentID:      v.GetString(cfgKeyDemoAgentID),
			BootstrapURL: v.GetString(cfgKeyDemoBootstrapURL),
		},
		Serve: serveConfig{Addr: v.GetString(cfgKeyServeAddr)},
	}
}

// writeConfigIfMissing creates config.yaml with cfg if the file does not
// exist. An existing file is left alone.
func writeConfigIfMissing(path string, cfg configFile) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return writeConfig(path, cfg)
}

func writeConfig(path string, cfg configFile) error {
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
