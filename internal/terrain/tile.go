package terrain

import (
	"encoding/json"
	"fmt"
	"slices"

	"golang.org/x/exp/maps"
)

// Tile is the discrete terrain category of one grid cell.
type Tile uint8

const (
	TileNone  Tile = iota // Excluded lane, nothing placed
	TileGrass             // Normalized noise below GrassMax
	TileRock              // Between GrassMax and RockMax
	TileTree              // RockMax and above
)

// String returns the tile label used on the wire.
func (t Tile) String() string {
	switch t {
	case TileGrass:
		return "grass"
	case TileRock:
		return "rock"
	case TileTree:
		return "tree"
	default:
		return "none"
	}
}

// ParseTile is the inverse of String. "none" and "" both map to TileNone.
func ParseTile(s string) (Tile, error) {
	switch s {
	case "grass":
		return TileGrass, nil
	case "rock":
		return TileRock, nil
	case "tree":
		return TileTree, nil
	case "none", "":
		return TileNone, nil
	}
	return TileNone, fmt.Errorf("unknown tile %q", s)
}

// MarshalJSON encodes excluded cells as null and the rest as their label.
func (t Tile) MarshalJSON() ([]byte, error) {
	if t == TileNone {
		return []byte("null"), nil
	}
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts null or a label.
func (t *Tile) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = TileNone
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("tile: %w", err)
	}
	parsed, err := ParseTile(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Map is a Height x Width grid of tiles, rows outer and columns inner.
type Map struct {
	Width   int      `json:"width"`
	Height  int      `json:"height"`
	Seed    int64    `json:"seed"`
	Cells   [][]Tile `json:"cells"`
	Clamped int      `json:"clamped"` // Cells whose normalized value left [0,1]
}

// NewMap creates an all-TileNone grid.
func NewMap(width, height int) *Map {
	m := &Map{
		Width:  width,
		Height: height,
		Cells:  make([][]Tile, height),
	}
	for y := range m.Cells {
		m.Cells[y] = make([]Tile, width)
	}
	return m
}

// InBounds reports whether (row, col) lies inside the grid.
func (m *Map) InBounds(row, col int) bool {
	return row >= 0 && row < m.Height && col >= 0 && col < m.Width
}

// Get returns the tile at (row, col), or TileNone when out of bounds.
func (m *Map) Get(row, col int) Tile {
	if !m.InBounds(row, col) {
		return TileNone
	}
	return m.Cells[row][col]
}

// Set places a tile. Out-of-bounds writes are ignored.
func (m *Map) Set(row, col int, t Tile) {
	if m.InBounds(row, col) {
		m.Cells[row][col] = t
	}
}

// String returns a summary of the map.
func (m *Map) String() string {
	return fmt.Sprintf("Map(%dx%d, seed=%d, clamped=%d)", m.Height, m.Width, m.Seed, m.Clamped)
}

// TileCounts returns how many cells hold each tile, TileNone included.
func TileCounts(m *Map) map[Tile]int {
	counts := make(map[Tile]int)
	for _, row := range m.Cells {
		for _, t := range row {
			counts[t]++
		}
	}
	return counts
}

// SortedTiles returns the keys of counts in tile order.
func SortedTiles(counts map[Tile]int) []Tile {
	keys := maps.Keys(counts)
	slices.Sort(keys)
	return keys
}
