// Package persistence provides SQLite-based storage for permutation tables
// and generated maps. Ambient tables cannot be rebuilt from a seed, so the
// table is saved to let a restarted host sample the same field.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/tilefield/internal/terrain"
)

// ErrNotFound is returned when a requested table or map does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps a SQLite connection.
type DB struct {
	conn *sqlx.DB
}

// TableRecord is a stored permutation table.
type TableRecord struct {
	ID        string `db:"id" json:"id"`
	Source    string `db:"source" json:"source"`
	PermJSON  string `db:"perm_json" json:"-"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
}

// MapRecord is a stored generated map.
type MapRecord struct {
	ID        string `db:"id" json:"id"`
	TableID   string `db:"table_id" json:"table_id"`
	Seed      int64  `db:"seed" json:"seed"`
	Width     int    `db:"width" json:"width"`
	Height    int    `db:"height" json:"height"`
	Clamped   int    `db:"clamped" json:"clamped"`
	CellsJSON string `db:"cells_json" json:"-"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
}

// Created returns the creation time.
func (r MapRecord) Created() time.Time {
	return time.Unix(r.CreatedAt, 0)
}

// Map decodes the stored grid.
func (r MapRecord) Map() (*terrain.Map, error) {
	m := &terrain.Map{Width: r.Width, Height: r.Height, Seed: r.Seed, Clamped: r.Clamped}
	if err := json.Unmarshal([]byte(r.CellsJSON), &m.Cells); err != nil {
		return nil, fmt.Errorf("decode map %s: %w", r.ID, err)
	}
	return m, nil
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS perm_tables (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		perm_json TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS maps (
		id TEXT PRIMARY KEY,
		table_id TEXT NOT NULL,
		seed INTEGER NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		clamped INTEGER NOT NULL,
		cells_json TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_maps_created ON maps(created_at);
	CREATE INDEX IF NOT EXISTS idx_tables_created ON perm_tables(created_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveTable stores the generator's permutation table and returns its id.
func (db *DB) SaveTable(g *terrain.Generator, source terrain.TableSource) (string, error) {
	table := g.Table()
	permJSON, err := json.Marshal(table[:])
	if err != nil {
		return "", fmt.Errorf("encode table: %w", err)
	}

	id := uuid.NewString()
	_, err = db.conn.Exec(
		"INSERT INTO perm_tables (id, source, perm_json, created_at) VALUES (?, ?, ?, ?)",
		id, string(source), string(permJSON), time.Now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("insert table: %w", err)
	}
	slog.Info("permutation table saved", "id", id, "source", source)
	return id, nil
}

// LoadTable rebuilds the generator stored under id.
func (db *DB) LoadTable(id string) (*terrain.Generator, error) {
	var rec TableRecord
	err := db.conn.Get(&rec, "SELECT id, source, perm_json, created_at FROM perm_tables WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("table %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load table %s: %w", id, err)
	}
	return rec.generator()
}

// LatestTable returns the most recently saved table drawn from source and
// its id.
func (db *DB) LatestTable(source terrain.TableSource) (string, *terrain.Generator, error) {
	var rec TableRecord
	err := db.conn.Get(&rec, `SELECT id, source, perm_json, created_at FROM perm_tables
		WHERE source = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, string(source))
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, fmt.Errorf("latest %s table: %w", source, ErrNotFound)
	}
	if err != nil {
		return "", nil, fmt.Errorf("latest table: %w", err)
	}
	g, err := rec.generator()
	if err != nil {
		return "", nil, err
	}
	return rec.ID, g, nil
}

// FindTable returns the id of a stored table from source whose entries match
// g exactly.
func (db *DB) FindTable(g *terrain.Generator, source terrain.TableSource) (string, error) {
	table := g.Table()
	permJSON, err := json.Marshal(table[:])
	if err != nil {
		return "", fmt.Errorf("encode table: %w", err)
	}

	var id string
	err = db.conn.Get(&id, `SELECT id FROM perm_tables
		WHERE source = ? AND perm_json = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		string(source), string(permJSON))
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("find %s table: %w", source, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("find table: %w", err)
	}
	return id, nil
}

func (r TableRecord) generator() (*terrain.Generator, error) {
	var perm []int
	if err := json.Unmarshal([]byte(r.PermJSON), &perm); err != nil {
		return nil, fmt.Errorf("decode table %s: %w", r.ID, err)
	}
	g, err := terrain.NewWithTable(perm)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", r.ID, err)
	}
	return g, nil
}

// SaveMap stores a generated map against the table it was sampled from.
func (db *DB) SaveMap(tableID string, m *terrain.Map) (string, error) {
	cellsJSON, err := json.Marshal(m.Cells)
	if err != nil {
		return "", fmt.Errorf("encode map: %w", err)
	}

	id := uuid.NewString()
	_, err = db.conn.Exec(`INSERT INTO maps
		(id, table_id, seed, width, height, clamped, cells_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, tableID, m.Seed, m.Width, m.Height, m.Clamped, string(cellsJSON), time.Now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("insert map: %w", err)
	}
	return id, nil
}

// GetMap returns the stored map with the given id.
func (db *DB) GetMap(id string) (*MapRecord, error) {
	var rec MapRecord
	err := db.conn.Get(&rec, `SELECT id, table_id, seed, width, height, clamped, cells_json, created_at
		FROM maps WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("map %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load map %s: %w", id, err)
	}
	return &rec, nil
}

// RecentMaps returns the most recent N maps, newest first.
func (db *DB) RecentMaps(limit int) ([]MapRecord, error) {
	var recs []MapRecord
	err := db.conn.Select(&recs, `SELECT id, table_id, seed, width, height, clamped, cells_json, created_at
		FROM maps ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	return recs, err
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("meta %s: %w", key, ErrNotFound)
	}
	return value, err
}
