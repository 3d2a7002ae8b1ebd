package cfg

import "time"

// Options are the global command line options. Every one can also be set
// from the environment.
type Options struct {
	ConfigPath string `short:"c" long:"config" env:"RSSACTIONS_CONFIG" description:"Path to the config file"`
	DBPath     string `long:"db-path" env:"RSSACTIONS_DB_PATH" description:"Path to the database file, overrides the config file"`
	Debug      bool   `long:"debug" env:"RSSACTIONS_DEBUG" description:"Enable debug logging"`
}

type Cfg struct {
	ConfigPath string
	DBPath     string

	// serve command
	Listen   string
	Interval time.Duration

	Debug   bool
	Version string
}

// fileCfg is the on-disk layout of the config file.
type fileCfg struct {
	DBPath string   `yaml:"db_path"`
	Serve  serveCfg `yaml:"serve"`
}

type serveCfg struct {
	Listen   string `yaml:"listen"`
	Interval string `yaml:"interval"`
}
