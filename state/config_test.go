package state

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWriteLocalConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.yaml")
	cfg := sampleCfg()
	require.NoError(t, WriteLocalConfig(path, cfg))

	read, err := ReadLocalConfig(path)
	require.NoError(t, err)
	assert.EqualValues(t, *cfg, *read)
}

func TestReadLocalConfig_Missing(t *testing.T) {
	_, err := ReadLocalConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLocalCfgSource(t *testing.T) {
	cfg := sampleCfg()
	assert.Equal(t, SourceAddr{Network: 0x20, Host: cfg.Host}, cfg.Source(1))
	assert.Equal(t, SourceAddr{Host: cfg.Host}, cfg.Source(7))
}

func TestGetIpcPath(t *testing.T) {
	cfg := sampleCfg()
	assert.Equal(t, DefaultIpcPath("node-a"), cfg.GetIpcPath())
	cfg.IpcPath = "/run/x.sock"
	assert.Equal(t, "/run/x.sock", cfg.GetIpcPath())
}
