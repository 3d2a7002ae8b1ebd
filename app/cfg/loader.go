package cfg

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// Version is set at build time via -ldflags
var Version = "dev"

const (
	DefaultListen   = "127.0.0.1:8080"
	DefaultInterval = time.Hour
)

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

// UserAgent identifies the client on every feed request.
func UserAgent() string {
	return "rss-actions/" + GetVersion()
}

var globalCfg *Cfg

func DefaultConfigPath() (string, error) {
	return xdg.ConfigFile(filepath.Join("rss-actions", "config.yml"))
}

func DefaultDBPath() (string, error) {
	return xdg.DataFile(filepath.Join("rss-actions", "rss-actions.db"))
}

// Load reads the config file named in opts, or the default one. A missing
// default config file is created; a missing explicit one is an error.
// Options given on the command line or in the environment take precedence
// over the file.
func Load(opts Options) (*Cfg, error) {
	path := opts.ConfigPath
	explicit := path != ""
	if !explicit {
		var err error
		if path, err = DefaultConfigPath(); err != nil {
			return nil, fmt.Errorf("failed to resolve config path: %w", err)
		}
	}

	raw, err := readFile(path)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		raw, err = writeDefaults(path)
	}
	if err != nil {
		return nil, err
	}

	cfg := &Cfg{
		ConfigPath: path,
		DBPath:     cmp.Or(opts.DBPath, raw.DBPath),
		Listen:     cmp.Or(raw.Serve.Listen, DefaultListen),
		Interval:   DefaultInterval,
		Debug:      opts.Debug,
		Version:    GetVersion(),
	}

	if cfg.DBPath == "" {
		if cfg.DBPath, err = DefaultDBPath(); err != nil {
			return nil, fmt.Errorf("failed to resolve database path: %w", err)
		}
	}

	if raw.Serve.Interval != "" {
		interval, err := time.ParseDuration(raw.Serve.Interval)
		if err != nil {
			return nil, fmt.Errorf("invalid serve interval %q in %s: %w", raw.Serve.Interval, path, err)
		}
		if interval <= 0 {
			return nil, fmt.Errorf("serve interval must be positive in %s, got %s", path, interval)
		}
		cfg.Interval = interval
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func readFile(path string) (fileCfg, error) {
	var raw fileCfg

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return raw, fmt.Errorf("config file %s: %w", path, os.ErrNotExist)
		}
		return raw, fmt.Errorf("failed to read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return raw, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return raw, nil
}

func writeDefaults(path string) (fileCfg, error) {
	dbPath, err := DefaultDBPath()
	if err != nil {
		return fileCfg{}, fmt.Errorf("failed to resolve database path: %w", err)
	}

	raw := fileCfg{
		DBPath: dbPath,
		Serve: serveCfg{
			Listen:   DefaultListen,
			Interval: DefaultInterval.String(),
		},
	}

	data, err := yaml.Marshal(raw)
	if err != nil {
		return fileCfg{}, fmt.Errorf("failed to encode default config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fileCfg{}, fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fileCfg{}, fmt.Errorf("failed to write default config: %w", err)
	}

	slog.Debug("Default config written", "path", path)
	return raw, nil
}
