package main

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kegz/primeqa-common/pkg/config"
)

func TestValidateCmd(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(good, []byte("server:\n  port: 9000\n"), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte("server:\n  prot: 9000\n"), 0o644))

	t.Run("valid", func(t *testing.T) {
		out := captureStdout(t)
		require.NoError(t, (&ValidateCmd{Config: good, Format: "compact"}).Run(&CLI{}))
		assert.Equal(t, good+": valid\n", out.String())
	})

	t.Run("falls back to --config", func(t *testing.T) {
		out := captureStdout(t)
		require.NoError(t, (&ValidateCmd{Format: "json"}).Run(&CLI{Config: good}))
		var res validationResult
		require.NoError(t, json.Unmarshal(out.Bytes(), &res))
		assert.True(t, res.Valid)
	})

	t.Run("invalid", func(t *testing.T) {
		out := captureStdout(t)
		err := (&ValidateCmd{Config: bad, Format: "json"}).Run(&CLI{})
		assert.ErrorIs(t, err, errInvalidConfig)
		var res validationResult
		require.NoError(t, json.Unmarshal(out.Bytes(), &res))
		assert.False(t, res.Valid)
		assert.Contains(t, res.Error, "prot")
	})

	t.Run("print config", func(t *testing.T) {
		out := captureStdout(t)
		require.NoError(t, (&ValidateCmd{Config: good, PrintConfig: true}).Run(&CLI{}))
		assert.Contains(t, out.String(), "port: 9000")
	})

	t.Run("no file", func(t *testing.T) {
		assert.Error(t, (&ValidateCmd{}).Run(&CLI{}))
	})
}

func TestSchemaCmd(t *testing.T) {
	out := captureStdout(t)
	require.NoError(t, (&SchemaCmd{Compact: true}).Run())

	var doc map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.Contains(t, doc, "properties")
}

func TestVersionCmd(t *testing.T) {
	out := captureStdout(t)
	require.NoError(t, (&VersionCmd{JSON: true}).Run())

	var info Info
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}

func TestInitLogger_Priority(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	cli := &CLI{}
	logs, err := cli.initLogger(config.LoggerConfig{Level: "warn"})
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, logs.level.Level())

	logs.Apply(config.LoggerConfig{Level: "debug"})
	assert.Equal(t, slog.LevelDebug, logs.level.Level(), "config-sourced level follows reloads")

	cli = &CLI{LogLevel: "error"}
	logs, err = cli.initLogger(config.LoggerConfig{Level: "warn"})
	require.NoError(t, err)
	logs.Apply(config.LoggerConfig{Level: "debug"})
	assert.Equal(t, slog.LevelError, logs.level.Level(), "flag-sourced level is pinned")

	_, err = (&CLI{LogLevel: "loud"}).initLogger(config.LoggerConfig{})
	assert.Error(t, err)
}

func TestInitLogger_File(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "primeqa.log")
	logs, err := (&CLI{LogFile: path}).initLogger(config.LoggerConfig{})
	require.NoError(t, err)
	slog.Info("to file")
	logs.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}
