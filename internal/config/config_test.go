package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/n1adj/qamrx/qam"
)

func TestDefault_MatchesQAMDefaults(t *testing.T) {
	cfg := Default()
	require.Equal(t, qam.DefaultConfig(), cfg.QAM)
	require.Equal(t, "stdin", cfg.Source.Kind)
	require.Equal(t, ":8080", cfg.Transport.Listen)
	require.Equal(t, "/ws", cfg.Transport.Path)
	require.True(t, cfg.Metrics.Enabled)
	require.Equal(t, ":9090", cfg.Metrics.Listen)
}

func TestLoad_BackfillsZeroFieldsFromDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qamrx.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
source:
  kind: file
  path: /tmp/in.iq
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "file", cfg.Source.Kind)
	require.Equal(t, "/tmp/in.iq", cfg.Source.Path)
	// Untouched fields keep Default()'s values.
	require.Equal(t, "logs", cfg.Logs.Directory)
	require.Equal(t, 25, cfg.Logs.MaxSizeMB)
	require.Equal(t, "/ws", cfg.Transport.Path)
	require.Equal(t, cfg.QAM.ConstraintLength, Default().QAM.ConstraintLength)
}

func TestLoad_MissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}

func TestLoad_InvalidYAMLReturnsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
