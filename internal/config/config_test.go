package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/tilefield/internal/terrain"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tilefield.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysFile(t *testing.T) {
	path := writeFile(t, `
seed: 7
api_port: 9000
generation:
  width: 50
  height: 40
  table: seeded
  table_seed: 99
  band:
    enabled: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, 9000, cfg.APIPort)
	assert.Equal(t, 50, cfg.Gen.Width)
	assert.Equal(t, 40, cfg.Gen.Height)
	assert.Equal(t, terrain.TableSeeded, cfg.Gen.Table)
	assert.Equal(t, int64(99), cfg.Gen.TableSeed)
	assert.False(t, cfg.Gen.Band.Enabled)
	// Untouched keys keep their defaults.
	assert.Equal(t, 0.5, cfg.Gen.GrassMax)
	assert.Equal(t, terrain.FieldPerlin, cfg.Gen.Field)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TILEFIELD_SEED", " 13 ")
	t.Setenv("TILEFIELD_PORT", "8181")
	t.Setenv("TILEFIELD_DB", "/tmp/x.db")
	t.Setenv("TILEFIELD_LOG_LEVEL", "debug")
	t.Setenv("TILEFIELD_TRUST_PROXY", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, int64(13), cfg.Seed)
	assert.Equal(t, 8181, cfg.APIPort)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.TrustProxy)
}

func TestLoadRejectsBadValues(t *testing.T) {
	_, err := Load(writeFile(t, "generation:\n  width: 0\n"))
	assert.ErrorContains(t, err, "grid")

	_, err = Load(writeFile(t, "seed: [1, 2]\n"))
	assert.Error(t, err)

	t.Setenv("TILEFIELD_SEED", "forty-two")
	_, err = Load("")
	assert.ErrorContains(t, err, "TILEFIELD_SEED")
}

func TestParseSeed(t *testing.T) {
	seed, err := ParseSeed("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), seed)

	seed, err = ParseSeed("-3\n")
	require.NoError(t, err)
	assert.Equal(t, int64(-3), seed)

	_, err = ParseSeed("4.2")
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}
