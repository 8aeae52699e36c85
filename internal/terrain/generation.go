// Map generation: sample the noise field on a grid, normalize, and classify
// each cell into a tile.
package terrain

import (
	"errors"
	"fmt"
	"log/slog"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// FieldKind selects the sampler behind map generation.
type FieldKind string

const (
	FieldPerlin      FieldKind = "perlin"      // Lattice-gradient noise from the permutation table
	FieldOpenSimplex FieldKind = "opensimplex" // OpenSimplex keyed by TableSeed
)

// TableSource selects how the permutation table is drawn.
type TableSource string

const (
	// TableAmbient draws from an unseeded random source. Two generators built
	// with the same seed do not share a table.
	TableAmbient TableSource = "ambient"
	// TableSeeded derives the table from TableSeed so fields are reproducible.
	TableSeeded TableSource = "seeded"
)

// Band is an inclusive range of rows that are always excluded.
type Band struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	Start   int  `yaml:"start" json:"start"`
	End     int  `yaml:"end" json:"end"`
}

// Contains reports whether row y falls inside the band.
func (b Band) Contains(y int) bool {
	return b.Enabled && y >= b.Start && y <= b.End
}

// GenConfig holds map generation parameters.
type GenConfig struct {
	Width  int  `yaml:"width" json:"width"`
	Height int  `yaml:"height" json:"height"`
	Band   Band `yaml:"band" json:"band"`

	GrassMax float64 `yaml:"grass_max" json:"grass_max"` // Below this: grass
	RockMax  float64 `yaml:"rock_max" json:"rock_max"`   // Below this: rock, else tree

	Octaves     int     `yaml:"octaves" json:"octaves"`
	Frequency   float64 `yaml:"frequency" json:"frequency"`
	Persistence float64 `yaml:"persistence" json:"persistence"`

	Field     FieldKind   `yaml:"field" json:"field"`
	Table     TableSource `yaml:"table" json:"table"`
	TableSeed int64       `yaml:"table_seed" json:"table_seed"` // Used by TableSeeded and FieldOpenSimplex
}

// DefaultGenConfig returns the 3x3 configuration. The exclusion band sits at
// rows 20..30, so it never applies at this size.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Width:       3,
		Height:      3,
		Band:        Band{Enabled: true, Start: 20, End: 30},
		GrassMax:    0.5,
		RockMax:     0.9,
		Octaves:     1,
		Frequency:   1,
		Persistence: 0.5,
		Field:       FieldPerlin,
		Table:       TableAmbient,
		TableSeed:   42,
	}
}

// LaneConfig returns a 50x50 grid where the middle-lane band is live.
func LaneConfig() GenConfig {
	cfg := DefaultGenConfig()
	cfg.Width = 50
	cfg.Height = 50
	return cfg
}

// Validate checks the configuration for values generation cannot work with.
func (c GenConfig) Validate() error {
	var errs []error
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("grid must be positive, got %dx%d", c.Height, c.Width))
	}
	if c.GrassMax > c.RockMax {
		errs = append(errs, fmt.Errorf("grass_max %.3f above rock_max %.3f", c.GrassMax, c.RockMax))
	}
	if c.Band.Enabled && c.Band.Start > c.Band.End {
		errs = append(errs, fmt.Errorf("band start %d after end %d", c.Band.Start, c.Band.End))
	}
	if c.Octaves < 1 {
		errs = append(errs, fmt.Errorf("octaves must be >= 1, got %d", c.Octaves))
	}
	switch c.Field {
	case FieldPerlin, FieldOpenSimplex:
	default:
		errs = append(errs, fmt.Errorf("unknown field %q", c.Field))
	}
	switch c.Table {
	case TableAmbient, TableSeeded:
	default:
		errs = append(errs, fmt.Errorf("unknown table source %q", c.Table))
	}
	return errors.Join(errs...)
}

// Classify maps a normalized noise value to a tile. Values are clamped into
// [0, 1] first, so anything above 1 is a tree and anything below 0 is grass.
func (c GenConfig) Classify(n float64) Tile {
	n, _ = clampUnit(n)
	switch {
	case n < c.GrassMax:
		return TileGrass
	case n < c.RockMax:
		return TileRock
	default:
		return TileTree
	}
}

func clampUnit(n float64) (float64, bool) {
	if n < 0 {
		return 0, true
	}
	if n > 1 {
		return 1, true
	}
	return n, false
}

// SampleCoords returns the seed-offset sampling point for cell (x, y).
func (c GenConfig) SampleCoords(seed int64, x, y int) (nx, ny float64) {
	nx = (float64(x)+float64(seed))/float64(c.Width) - 0.5
	ny = (float64(y)+float64(seed))/float64(c.Height) - 0.5
	return nx, ny
}

// BuildGenerator draws a permutation table according to c.Table. src is the
// ambient source and is ignored for TableSeeded.
func BuildGenerator(c GenConfig, src IntSource) *Generator {
	if c.Table == TableSeeded {
		return NewSeeded(c.TableSeed)
	}
	return New(src)
}

// NewField returns the sampler selected by c.Field. g backs FieldPerlin.
func NewField(c GenConfig, g *Generator) Field {
	if c.Field == FieldOpenSimplex {
		return opensimplex.New(c.TableSeed)
	}
	return g
}

// GenerateMap samples f for every cell of the grid at the given seed.
func GenerateMap(f Field, cfg GenConfig, seed int64) (*Map, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("generate map: %w", err)
	}

	m := NewMap(cfg.Width, cfg.Height)
	m.Seed = seed

	for y := 0; y < cfg.Height; y++ {
		for x := 0; x < cfg.Width; x++ {
			if cfg.Band.Contains(y) {
				m.Cells[y][x] = TileNone
				continue
			}

			nx, ny := cfg.SampleCoords(seed, x, y)
			n := Normalize(OctaveNoise(f, nx, ny, cfg.Octaves, cfg.Frequency, cfg.Persistence))
			if _, clamped := clampUnit(n); clamped {
				m.Clamped++
			}
			m.Cells[y][x] = cfg.Classify(n)
		}
	}

	if m.Clamped > 0 {
		slog.Warn("noise outside nominal range, clamped", "seed", seed, "cells", m.Clamped)
	}

	return m, nil
}

// GenerateMap samples this generator's noise on the grid described by cfg.
// The generator's field is used regardless of cfg.Field.
func (g *Generator) GenerateMap(cfg GenConfig, seed int64) (*Map, error) {
	return GenerateMap(g, cfg, seed)
}

// OctaveNoise layers multiple frequencies of f. A single octave at frequency
// 1 returns f.Eval2(x, y) unchanged.
func OctaveNoise(f Field, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += f.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
