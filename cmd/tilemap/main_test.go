package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/tilefield/internal/config"
	"github.com/talgya/tilefield/internal/persistence"
	"github.com/talgya/tilefield/internal/terrain"
)

func TestPrintMapPlain(t *testing.T) {
	m := terrain.NewMap(3, 2)
	m.Seed = 4
	m.Set(0, 0, terrain.TileGrass)
	m.Set(0, 1, terrain.TileRock)
	m.Set(0, 2, terrain.TileTree)

	var buf bytes.Buffer
	printMap(&buf, m, false)
	assert.Equal(t, "\"^T\n...\nseed 4  none=3 grass=1 rock=1 tree=1\n", buf.String())
}

func TestPrintMapColor(t *testing.T) {
	m := terrain.NewMap(1, 1)
	m.Set(0, 0, terrain.TileTree)

	var buf bytes.Buffer
	printMap(&buf, m, true)
	assert.Contains(t, buf.String(), "\033[33mT\033[0m")
}

func TestPrintHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.db")

	var buf bytes.Buffer
	require.NoError(t, printHistory(&buf, path, 5))
	assert.Equal(t, "no stored maps\n", buf.String())

	db, err := persistence.Open(path)
	require.NoError(t, err)
	m, err := terrain.NewSeeded(1).GenerateMap(terrain.DefaultGenConfig(), 8)
	require.NoError(t, err)
	id, err := db.SaveMap("t", m)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	buf.Reset()
	require.NoError(t, printHistory(&buf, path, 5))
	assert.Contains(t, buf.String(), id)
	assert.Contains(t, buf.String(), "seed=8")
	assert.Contains(t, buf.String(), "3x3")
}

func TestLoadGeneratorUsesStoredTable(t *testing.T) {
	cfg := config.Default()
	cfg.DBPath = filepath.Join(t.TempDir(), "g.db")

	g, err := loadGenerator(cfg)
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.NoFileExists(t, cfg.DBPath)

	db, err := persistence.Open(cfg.DBPath)
	require.NoError(t, err)
	_, err = db.SaveTable(terrain.NewSeeded(3), terrain.TableSeeded)
	require.NoError(t, err)
	stored := terrain.NewSeeded(5)
	_, err = db.SaveTable(stored, terrain.TableAmbient)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	g, err = loadGenerator(cfg)
	require.NoError(t, err)
	assert.Equal(t, stored.Table(), g.Table())

	cfg.Gen.Table = terrain.TableSeeded
	cfg.Gen.TableSeed = 9
	g, err = loadGenerator(cfg)
	require.NoError(t, err)
	assert.Equal(t, terrain.NewSeeded(9).Table(), g.Table())
}
