package terrain

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identityTable() []int {
	t := make([]int, TableSize)
	for i := range t {
		t[i] = i
	}
	return t
}

func identityGenerator(t *testing.T) *Generator {
	t.Helper()
	g, err := NewWithTable(identityTable())
	require.NoError(t, err)
	return g
}

func TestFadeBoundaries(t *testing.T) {
	assert.Equal(t, 0.0, Fade(0))
	assert.Equal(t, 1.0, Fade(1))
	assert.Equal(t, 0.5, Fade(0.5))
	assert.InDelta(t, 1-Fade(0.2), Fade(0.8), 1e-12)
}

func TestLerpIdentity(t *testing.T) {
	for _, pair := range [][2]float64{{0, 1}, {-3.5, 7}, {1e6, -1e6}, {2, 2}} {
		a, b := pair[0], pair[1]
		assert.Equal(t, a, Lerp(0, a, b))
		assert.Equal(t, b, Lerp(1, a, b))
	}
}

func TestNormalizeBoundaries(t *testing.T) {
	assert.Equal(t, 0.0, Normalize(-1))
	assert.Equal(t, 1.0, Normalize(1))
	assert.Equal(t, 0.5, Normalize(0))
	// Not clamped.
	assert.Equal(t, 1.25, Normalize(1.5))
}

func TestGrad(t *testing.T) {
	cases := []struct {
		hash int
		want float64
	}{
		{0, 5},   // x + y
		{1, 1},   // -x + y
		{2, -1},  // x - y
		{3, -5},  // -x - y
		{5, 1},   // -x + y
		{8, 6},   // y + y
		{11, -6}, // -y - y
		{12, 5},  // y + x
		{13, 0},  // -y + y
		{14, 1},  // y - x
		{16, 5},  // only the low 4 bits count
	}
	for _, c := range cases {
		assert.Equal(t, c.want, grad(c.hash, 2, 3), "hash %d", c.hash)
	}
}

func TestNewWithTableDuplicates(t *testing.T) {
	g := identityGenerator(t)
	for i := 0; i < 2*TableSize; i++ {
		require.Equal(t, g.perm[i%TableSize], g.perm[i])
	}
	assert.Equal(t, 255, g.Table()[255])
}

func TestNewWithTableRejectsBadInput(t *testing.T) {
	_, err := NewWithTable([]int{1, 2, 3})
	assert.Error(t, err)

	bad := identityTable()
	bad[17] = 256
	_, err = NewWithTable(bad)
	assert.ErrorContains(t, err, "entry 17")

	bad[17] = -1
	_, err = NewWithTable(bad)
	assert.Error(t, err)
}

func TestNewDrawsInRange(t *testing.T) {
	g := New(rand.New(rand.NewSource(99)))
	for i, v := range g.perm {
		require.True(t, v >= 0 && v < TableSize, "perm[%d] = %d", i, v)
	}
}

func TestNewSeededReproducible(t *testing.T) {
	assert.Equal(t, NewSeeded(7).Table(), NewSeeded(7).Table())
	assert.NotEqual(t, NewSeeded(7).Table(), NewSeeded(8).Table())
}

func TestSampleDeterministic(t *testing.T) {
	g := NewSeeded(12345)
	for i := 0; i < 200; i++ {
		x := float64(i)*0.37 - 20
		y := float64(i)*0.53 - 35
		require.Equal(t, g.Sample(x, y), g.Sample(x, y))
	}
}

func TestSampleZeroAtLatticePoints(t *testing.T) {
	g := NewSeeded(3)
	for _, p := range [][2]float64{{0, 0}, {3, 7}, {-2, 5}, {255, 256}} {
		assert.Equal(t, 0.0, g.Sample(p[0], p[1]))
	}
}

func TestSampleKnownValue(t *testing.T) {
	g := identityGenerator(t)
	// Corner hashes 0, 1, 1, 2 at the cell centre.
	assert.InDelta(t, 0.25, g.Sample(0.5, 0.5), 1e-12)
	// Same cell 256 units away wraps to the same lattice.
	assert.InDelta(t, g.Sample(0.5, 0.5), g.Sample(256.5, 0.5), 1e-9)
}

func TestSampleCanExceedNominalRange(t *testing.T) {
	table := make([]int, TableSize)
	table[0] = 10
	table[1] = 20
	table[10] = 0  // x + y
	table[20] = 1  // -x + y
	table[11] = 11 // -2y
	table[21] = 11
	g, err := NewWithTable(table)
	require.NoError(t, err)

	v := g.Sample(0.5, 0.45)
	assert.Greater(t, v, 1.0)
	assert.Greater(t, Normalize(v), 1.0)
}

func TestSampleBounded(t *testing.T) {
	g := NewSeeded(42)
	for i := 0; i < 10000; i++ {
		x := float64(i)*0.1 - 500
		y := float64(i)*0.07 - 350
		v := g.Sample(x, y)
		require.LessOrEqual(t, math.Abs(v), 2.0, "Sample(%f, %f)", x, y)
	}
}

func TestGradientsFixed(t *testing.T) {
	want := [4][2]float64{{1, 1}, {-1, 1}, {1, -1}, {-1, -1}}
	assert.Equal(t, want, NewSeeded(1).Gradients())
	assert.Equal(t, want, NewSeeded(2).Gradients())
}
