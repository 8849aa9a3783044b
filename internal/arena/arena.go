// Package arena is a small deterministic two-player world driven by the
// lockstep session: players walk a generated floor, avoid lava and race for
// the exit. Both peers run identical copies and only exchange inputs.
package arena

import (
	"hash/fnv"
	"strings"

	"github.com/1ureka/duel/internal/protocol"
	"github.com/1ureka/duel/internal/session"
)

const (
	CellSize = 16 // sub-cell units per cell
	Speed    = 2  // units per tick, doubled while A is held
	MaxHP    = 3

	burnCooldown = 30 // ticks between two lava hits
)

// Player is one actor. Positions are in sub-cell units.
type Player struct {
	X, Y   int
	HP     int
	Inputs int    // inputs applied since the barrier
	Sum    uint32 // rolling hash of those inputs

	burn  int
	world *World
}

// Tick implements session.Actor.
func (p *Player) Tick(input byte) {
	p.Inputs++
	p.Sum = (p.Sum ^ uint32(input)) * 16777619

	in := protocol.Input(input)
	speed := Speed
	if in.Has(protocol.InputA) {
		speed *= 2
	}

	var dx, dy int
	if in.Has(protocol.InputUp) {
		dy -= speed
	}
	if in.Has(protocol.InputDown) {
		dy += speed
	}
	if in.Has(protocol.InputLeft) {
		dx -= speed
	}
	if in.Has(protocol.InputRight) {
		dx += speed
	}
	p.move(dx, 0)
	p.move(0, dy)

	if p.burn > 0 {
		p.burn--
	}
	if p.cell() == Lava && p.burn == 0 && p.HP > 0 {
		p.HP--
		p.burn = burnCooldown
	}
}

func (p *Player) move(dx, dy int) {
	nx, ny := p.X+dx, p.Y+dy
	if p.world.Map.At(nx/CellSize, ny/CellSize) == Wall {
		return
	}
	p.X, p.Y = nx, ny
}

func (p *Player) cell() Cell {
	return p.world.Map.At(p.X/CellSize, p.Y/CellSize)
}

// CellPos returns the cell the player stands on.
func (p *Player) CellPos() (x, y int) {
	return p.X / CellSize, p.Y / CellSize
}

// Dead implements session.Actor.
func (p *Player) Dead() bool { return p.HP <= 0 }

// AtExit implements session.Actor.
func (p *Player) AtExit() bool { return p.cell() == Exit }

// World implements session.Game.
type World struct {
	Map     *Map
	Players [2]*Player
	Floor   int
	Clock   uint32
}

// New returns a world on floor 1 with full-health players.
func New() *World {
	w := &World{}
	for i := range w.Players {
		w.Players[i] = &Player{world: w}
	}
	w.Reset()
	w.StartLevel(1)
	return w
}

// Update implements session.World.
func (w *World) Update() {
	w.Clock++
}

// Actor implements session.World.
func (w *World) Actor(r session.Role) session.Actor {
	return w.Players[r]
}

// Reset implements session.Game.
func (w *World) Reset() {
	w.Clock = 0
	for _, p := range w.Players {
		p.HP = MaxHP
		p.Inputs = 0
		p.Sum = 0
		p.burn = 0
	}
}

// StartLevel implements session.Game. Players spawn in column 1, the
// primary above the secondary.
func (w *World) StartLevel(floor int) {
	w.Floor = floor
	w.Map = Generate(floor)
	for i, p := range w.Players {
		p.X = CellSize + CellSize/2
		p.Y = (1+i)*CellSize + CellSize/2
		p.burn = 0
	}
}

// Checksum hashes the whole simulation state. Two peers in sync report the
// same value after the same tick.
func (w *World) Checksum() uint32 {
	h := fnv.New32a()
	put := func(v int) {
		h.Write([]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
	}
	put(w.Floor)
	put(int(w.Clock))
	for _, p := range w.Players {
		put(p.X)
		put(p.Y)
		put(p.HP)
		put(p.Inputs)
		put(int(p.Sum))
	}
	return h.Sum32()
}

// Render draws the map with the players as '1' and '2'.
func (w *World) Render() string {
	var sb strings.Builder
	for y := range Height {
		for x := range Width {
			glyph := cellGlyphs[w.Map.At(x, y)]
			for i, p := range w.Players {
				if px, py := p.CellPos(); px == x && py == y {
					glyph = byte('1' + i)
				}
			}
			sb.WriteByte(glyph)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
