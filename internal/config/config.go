package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Config carries the process settings. All fields have working defaults
// so the store runs with no config file at all.
type Config struct {
	// DataDir holds the write log. Created if missing.
	DataDir string `toml:"data-dir"`

	// WALName is the log file name inside DataDir.
	WALName string `toml:"wal-name"`

	LogLevel string `toml:"log-level"`

	// MetricsAddr serves prometheus metrics over HTTP. Empty disables it.
	MetricsAddr string `toml:"metrics-addr"`

	// BTreeDegree is the index branching factor. 0 picks the default.
	BTreeDegree int `toml:"btree-degree"`
}

func NewDefaultConfig() *Config {
	return &Config{
		DataDir:  "data",
		WALName:  "wal.log",
		LogLevel: getLogLevel(),
	}
}

func getLogLevel() string {
	if l := os.Getenv("LOG_LEVEL"); len(l) != 0 {
		return l
	}
	return "info"
}

// Load reads a TOML file over the defaults.
func Load(path string) (*Config, error) {
	c := NewDefaultConfig()
	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, errors.Wrapf(err, "decode config %s", path)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data-dir must not be empty")
	}
	if c.WALName == "" {
		return fmt.Errorf("wal-name must not be empty")
	}
	// The btree implementation rejects degrees below 2; 0 means default.
	if c.BTreeDegree < 0 || c.BTreeDegree == 1 {
		return fmt.Errorf("btree-degree must be 0 (default) or at least 2")
	}
	return nil
}

// WALPath is the full path of the write log file.
func (c *Config) WALPath() string {
	return filepath.Join(c.DataDir, c.WALName)
}
