// Package world provides the toroidal grid the agents live on.
// Coordinates wrap modulo width and height, and a cell may hold any number of agents.
package world

import (
	"errors"
	"fmt"
)

var (
	// ErrNoEmptyCell is returned when an operation needs a free cell and the grid has none.
	ErrNoEmptyCell = errors.New("no empty cell available")

	// ErrNotPlaced is returned when removing or moving an agent that is not on the grid.
	ErrNotPlaced = errors.New("agent not on grid")
)

// Coord is a cell position on the grid.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Placement pairs an occupant with its cell.
type Placement[T comparable] struct {
	ID  T
	Pos Coord
}

// Grid is a toroidal multi-occupancy grid. It stores occupant identifiers
// only; the agents themselves live elsewhere.
type Grid[T comparable] struct {
	Width  int
	Height int

	cells     [][]T // row-major, index y*Width+x
	positions map[T]Coord
}

// NewGrid creates an empty grid. Width and height must be positive.
func NewGrid[T comparable](width, height int) (*Grid[T], error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("grid dimensions must be positive, got %dx%d", width, height)
	}
	return &Grid[T]{
		Width:     width,
		Height:    height,
		cells:     make([][]T, width*height),
		positions: make(map[T]Coord),
	}, nil
}

// Wrap normalizes a coordinate onto the torus.
func (g *Grid[T]) Wrap(c Coord) Coord {
	x := c.X % g.Width
	if x < 0 {
		x += g.Width
	}
	y := c.Y % g.Height
	if y < 0 {
		y += g.Height
	}
	return Coord{X: x, Y: y}
}

func (g *Grid[T]) index(c Coord) int {
	c = g.Wrap(c)
	return c.Y*g.Width + c.X
}

// Place puts id on the cell at pos. An id already on the grid is moved.
func (g *Grid[T]) Place(id T, pos Coord) {
	if _, ok := g.positions[id]; ok {
		g.detach(id)
	}
	pos = g.Wrap(pos)
	i := g.index(pos)
	g.cells[i] = append(g.cells[i], id)
	g.positions[id] = pos
}

// Remove takes id off the grid.
func (g *Grid[T]) Remove(id T) error {
	if _, ok := g.positions[id]; !ok {
		return fmt.Errorf("remove %v: %w", id, ErrNotPlaced)
	}
	g.detach(id)
	return nil
}

// Move relocates id to pos.
func (g *Grid[T]) Move(id T, pos Coord) error {
	if _, ok := g.positions[id]; !ok {
		return fmt.Errorf("move %v: %w", id, ErrNotPlaced)
	}
	g.Place(id, pos)
	return nil
}

func (g *Grid[T]) detach(id T) {
	pos := g.positions[id]
	i := g.index(pos)
	cell := g.cells[i]
	for j, occ := range cell {
		if occ == id {
			// Keep cell order stable so iteration stays reproducible.
			g.cells[i] = append(cell[:j], cell[j+1:]...)
			break
		}
	}
	delete(g.positions, id)
}

// Position returns the cell of id and whether it is on the grid.
func (g *Grid[T]) Position(id T) (Coord, bool) {
	pos, ok := g.positions[id]
	return pos, ok
}

// Contains reports whether id is on the grid.
func (g *Grid[T]) Contains(id T) bool {
	_, ok := g.positions[id]
	return ok
}

// IsEmpty reports whether no occupant is at pos.
func (g *Grid[T]) IsEmpty(pos Coord) bool {
	return len(g.cells[g.index(pos)]) == 0
}

// CellContents returns the occupants of a single cell in arrival order.
func (g *Grid[T]) CellContents(pos Coord) []T {
	cell := g.cells[g.index(pos)]
	out := make([]T, len(cell))
	copy(out, cell)
	return out
}

// Occupants returns everything on the given cells, cell by cell.
func (g *Grid[T]) Occupants(positions []Coord) []T {
	var out []T
	for _, pos := range positions {
		out = append(out, g.cells[g.index(pos)]...)
	}
	return out
}

// Neighborhood returns the von Neumann neighborhood of pos: every cell within
// Manhattan distance radius, excluding pos itself. On small grids where the
// torus folds back onto itself each cell is listed once. Order is fixed
// (row by row from -radius to +radius) so callers drawing from it stay deterministic.
func (g *Grid[T]) Neighborhood(pos Coord, radius int) []Coord {
	pos = g.Wrap(pos)
	seen := map[Coord]bool{pos: true}
	var out []Coord
	for dy := -radius; dy <= radius; dy++ {
		span := radius - abs(dy)
		for dx := -span; dx <= span; dx++ {
			c := g.Wrap(Coord{X: pos.X + dx, Y: pos.Y + dy})
			if seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// EmptyIn filters positions down to the empty ones.
func (g *Grid[T]) EmptyIn(positions []Coord) []Coord {
	var out []Coord
	for _, pos := range positions {
		if g.IsEmpty(pos) {
			out = append(out, pos)
		}
	}
	return out
}

// EmptyCells returns every empty cell in row-major order.
func (g *Grid[T]) EmptyCells() []Coord {
	var out []Coord
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			if len(g.cells[y*g.Width+x]) == 0 {
				out = append(out, Coord{X: x, Y: y})
			}
		}
	}
	return out
}

// Placements lists every occupant with its cell in row-major order.
func (g *Grid[T]) Placements() []Placement[T] {
	out := make([]Placement[T], 0, len(g.positions))
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			for _, id := range g.cells[y*g.Width+x] {
				out = append(out, Placement[T]{ID: id, Pos: Coord{X: x, Y: y}})
			}
		}
	}
	return out
}

// Count returns the number of occupants on the grid.
func (g *Grid[T]) Count() int {
	return len(g.positions)
}

// String returns a summary of the grid.
func (g *Grid[T]) String() string {
	return fmt.Sprintf("Grid(%dx%d, occupants=%d)", g.Width, g.Height, g.Count())
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
