// Package terrain provides the lattice-gradient noise field and the tile grid
// classified from it.
package terrain

import (
	"fmt"
	"math"
	"math/rand"
)

// TableSize is the number of distinct permutation entries.
const TableSize = 256

// IntSource draws uniform integers in [0, n).
type IntSource interface {
	Intn(n int) int
}

// Field is anything that can be sampled as a continuous 2D scalar field.
type Field interface {
	Eval2(x, y float64) float64
}

// gradients is the fixed direction set at lattice corners. Not seed dependent.
var gradients = [4][2]float64{
	{1, 1}, {-1, 1}, {1, -1}, {-1, -1},
}

// Generator samples 2D gradient noise from a permutation table.
// It is read-only after construction and safe for concurrent use.
type Generator struct {
	perm [TableSize * 2]int // duplicated so A+1, B+1 never need wrapping
}

// New draws the permutation table from src. Each entry is an independent
// draw in [0, 256); entries may repeat.
func New(src IntSource) *Generator {
	g := &Generator{}
	for i := 0; i < TableSize; i++ {
		g.perm[i] = src.Intn(TableSize)
	}
	g.duplicate()
	return g
}

// NewSeeded builds the table from a math/rand source keyed by seed, so two
// generators with the same seed produce identical fields.
func NewSeeded(seed int64) *Generator {
	return New(rand.New(rand.NewSource(seed)))
}

// NewWithTable builds a generator from a known table of exactly 256 entries.
func NewWithTable(table []int) (*Generator, error) {
	if len(table) != TableSize {
		return nil, fmt.Errorf("permutation table has %d entries, want %d", len(table), TableSize)
	}
	g := &Generator{}
	for i, v := range table {
		if v < 0 || v >= TableSize {
			return nil, fmt.Errorf("permutation entry %d = %d out of range [0,%d)", i, v, TableSize)
		}
		g.perm[i] = v
	}
	g.duplicate()
	return g, nil
}

func (g *Generator) duplicate() {
	copy(g.perm[TableSize:], g.perm[:TableSize])
}

// Table returns a copy of the 256 base entries.
func (g *Generator) Table() [TableSize]int {
	var t [TableSize]int
	copy(t[:], g.perm[:TableSize])
	return t
}

// Gradients returns the fixed gradient set.
func (g *Generator) Gradients() [4][2]float64 {
	return gradients
}

// Sample returns gradient noise at (x, y), nominally in [-1, 1].
func (g *Generator) Sample(x, y float64) float64 {
	fx := math.Floor(x)
	fy := math.Floor(y)

	// Lattice cell, masked to the table range.
	X := int(fx) & 255
	Y := int(fy) & 255

	x -= fx
	y -= fy

	u := Fade(x)
	v := Fade(y)

	A := g.perm[X] + Y
	B := g.perm[X+1] + Y

	return Lerp(v,
		Lerp(u,
			grad(g.perm[A], x, y),
			grad(g.perm[B], x-1, y),
		),
		Lerp(u,
			grad(g.perm[A+1], x, y-1),
			grad(g.perm[B+1], x-1, y-1),
		),
	)
}

// Eval2 implements Field.
func (g *Generator) Eval2(x, y float64) float64 {
	return g.Sample(x, y)
}

// Fade is the quintic smoothstep 6t^5 - 15t^4 + 10t^3.
func Fade(t float64) float64 {
	return t * t * t * (t*(t*6-15) + 10)
}

// Lerp linearly interpolates between a and b.
func Lerp(t, a, b float64) float64 {
	return a + t*(b-a)
}

// Normalize maps [-1, 1] onto [0, 1]. Values outside the nominal range are
// not clamped.
func Normalize(v float64) float64 {
	return (v + 1) / 2
}

// grad turns the low 4 bits of hash into a signed combination of the
// corner-relative offset (x, y).
func grad(hash int, x, y float64) float64 {
	h := hash & 15

	u := y
	if h < 8 {
		u = x
	}

	v := y
	if h == 12 || h == 14 {
		v = x
	}

	if h&1 != 0 {
		u = -u
	}
	if h&2 != 0 {
		v = -v
	}
	return u + v
}
