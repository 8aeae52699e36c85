package terrain

// Placement is one object the scene layer should instantiate.
type Placement struct {
	Row  int     `json:"row"`
	Col  int     `json:"col"`
	Tile Tile    `json:"tile"`
	X    float64 `json:"x"`
	Z    float64 `json:"z"`
}

// Placements converts the grid into world-space positions on the XZ plane,
// centred on the origin with spacing units between neighbouring cells.
// Excluded cells produce no placement.
func Placements(m *Map, spacing float64) []Placement {
	out := make([]Placement, 0, m.Width*m.Height)
	cx := float64(m.Width-1) / 2
	cz := float64(m.Height-1) / 2

	for row, cells := range m.Cells {
		for col, t := range cells {
			if t == TileNone {
				continue
			}
			out = append(out, Placement{
				Row:  row,
				Col:  col,
				Tile: t,
				X:    (float64(col) - cx) * spacing,
				Z:    (float64(row) - cz) * spacing,
			})
		}
	}
	return out
}
