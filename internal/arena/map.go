package arena

import "math/rand/v2"

// Map size in cells.
const (
	Width  = 20
	Height = 9
)

// Cell is one map square.
type Cell uint8

const (
	Floor Cell = iota
	Wall
	Lava
	Exit
)

var cellGlyphs = [...]byte{Floor: '.', Wall: '#', Lava: '~', Exit: 'E'}

// Map is one generated floor. Column 1 and the exit row never hold walls,
// which keeps a path from the spawn to the exit open.
type Map struct {
	cells        [Height][Width]Cell
	ExitX, ExitY int
}

// Generate builds the map of floor. The same floor always yields the same
// map, on every peer.
func Generate(floor int) *Map {
	rng := rand.New(rand.NewPCG(uint64(floor), 0x5eed))
	m := &Map{}

	for y := range Height {
		for x := range Width {
			if x == 0 || y == 0 || x == Width-1 || y == Height-1 {
				m.cells[y][x] = Wall
			}
		}
	}

	m.ExitX = Width/2 + rng.IntN(Width/2-1)
	m.ExitY = 1 + rng.IntN(Height-2)
	m.cells[m.ExitY][m.ExitX] = Exit

	for range 2 * floor {
		x, y := 2+rng.IntN(Width-3), 1+rng.IntN(Height-2)
		if y == m.ExitY || m.cells[y][x] != Floor {
			continue
		}
		m.cells[y][x] = Wall
	}

	for range 3 + floor {
		x, y := 2+rng.IntN(Width-3), 1+rng.IntN(Height-2)
		if m.cells[y][x] != Floor {
			continue
		}
		m.cells[y][x] = Lava
	}

	return m
}

// At returns the cell at (x, y). Everything outside the map is wall.
func (m *Map) At(x, y int) Cell {
	if x < 0 || y < 0 || x >= Width || y >= Height {
		return Wall
	}
	return m.cells[y][x]
}
