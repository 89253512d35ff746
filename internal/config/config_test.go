package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c := NewDefaultConfig()
	require.NoError(t, c.Validate())
	assert.Equal(t, filepath.Join("data", "wal.log"), c.WALPath())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexkv.toml")
	body := `
data-dir = "/var/lib/lexkv"
wal-name = "records.log"
log-level = "debug"
metrics-addr = "127.0.0.1:9090"
btree-degree = 16
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/lexkv", c.DataDir)
	assert.Equal(t, filepath.Join("/var/lib/lexkv", "records.log"), c.WALPath())
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, "127.0.0.1:9090", c.MetricsAddr)
	assert.Equal(t, 16, c.BTreeDegree)
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexkv.toml")
	require.NoError(t, os.WriteFile(path, []byte(`log-level = "warn"`), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "data", c.DataDir)
	assert.Equal(t, "wal.log", c.WALName)
	assert.Equal(t, "warn", c.LogLevel)
}

func TestValidate(t *testing.T) {
	c := NewDefaultConfig()
	c.DataDir = ""
	assert.Error(t, c.Validate())

	c = NewDefaultConfig()
	c.BTreeDegree = -1
	assert.Error(t, c.Validate())

	c = NewDefaultConfig()
	c.BTreeDegree = 1
	assert.Error(t, c.Validate())
}
