package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/tilefield/internal/config"
	"github.com/talgya/tilefield/internal/persistence"
	"github.com/talgya/tilefield/internal/terrain"
)

func openTestDB(t *testing.T) *persistence.DB {
	t.Helper()
	db, err := persistence.Open(filepath.Join(t.TempDir(), "d.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seededConfig(tableSeed int64) config.Config {
	cfg := config.Default()
	cfg.Gen.Table = terrain.TableSeeded
	cfg.Gen.TableSeed = tableSeed
	return cfg
}

func TestSeededTableStoredOnce(t *testing.T) {
	db := openTestDB(t)
	cfg := seededConfig(7)

	id1, g1, err := loadOrDrawTable(db, cfg, false)
	require.NoError(t, err)
	id2, g2, err := loadOrDrawTable(db, cfg, false)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Equal(t, terrain.NewSeeded(7).Table(), g1.Table())
	assert.Equal(t, g1.Table(), g2.Table())

	id3, g3, err := loadOrDrawTable(db, seededConfig(8), false)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id3)
	assert.Equal(t, terrain.NewSeeded(8).Table(), g3.Table())
}

func TestAmbientIgnoresSeededTables(t *testing.T) {
	db := openTestDB(t)

	seededID, _, err := loadOrDrawTable(db, seededConfig(7), false)
	require.NoError(t, err)

	cfg := config.Default()
	ambientID, g, err := loadOrDrawTable(db, cfg, false)
	require.NoError(t, err)
	assert.NotEqual(t, seededID, ambientID)

	stored, err := db.LoadTable(ambientID)
	require.NoError(t, err)
	assert.Equal(t, g.Table(), stored.Table())

	againID, again, err := loadOrDrawTable(db, cfg, false)
	require.NoError(t, err)
	assert.Equal(t, ambientID, againID)
	assert.Equal(t, g.Table(), again.Table())

	freshID, _, err := loadOrDrawTable(db, cfg, true)
	require.NoError(t, err)
	assert.NotEqual(t, ambientID, freshID)
}

func TestRestoreSeed(t *testing.T) {
	db := openTestDB(t)
	assert.EqualValues(t, 42, restoreSeed(db, 42, false))

	require.NoError(t, db.SaveMeta("seed", "99"))
	assert.EqualValues(t, 99, restoreSeed(db, 42, false))
	assert.EqualValues(t, 42, restoreSeed(db, 42, true))

	require.NoError(t, db.SaveMeta("seed", "abc"))
	assert.EqualValues(t, 42, restoreSeed(db, 42, false))
}
