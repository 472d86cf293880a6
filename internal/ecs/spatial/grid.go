// Package spatial provides the broad-phase structures the collision and
// separation systems query each tick: a uniform cell grid for radius
// queries and a one-axis sweep for overlap pairs. Both store entity ids,
// never pointers, and reuse their buffers across ticks.
package spatial

import (
	"math"

	"showdown-arena/internal/ecs"
)

// entry is one inserted entity: its id plus the collider layer it was
// inserted under, so queries can pre-filter by kind without touching the
// component store.
type entry struct {
	id    ecs.EntityID
	layer ecs.ColliderLayer
}

// Grid buckets entities into fixed-size square cells. Cell size should be
// at least the largest query radius so a query rarely spans more than a
// 2x2 cell neighborhood.
//
// The grid holds one tick's positions: the movement-commit system calls
// Reset then re-inserts every live player and enemy, and the collision
// systems query it for the remainder of the tick.
type Grid struct {
	cellSize    float32
	invCellSize float32
	cols, rows  int
	cells       [][]entry
	scratch     []ecs.EntityID
}

// NewGrid creates a grid covering a world of the given size.
func NewGrid(worldWidth, worldHeight, cellSize float32) *Grid {
	cols := int(math.Ceil(float64(worldWidth / cellSize)))
	rows := int(math.Ceil(float64(worldHeight / cellSize)))
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return &Grid{
		cellSize:    cellSize,
		invCellSize: 1 / cellSize,
		cols:        cols,
		rows:        rows,
		cells:       make([][]entry, cols*rows),
		scratch:     make([]ecs.EntityID, 0, 64),
	}
}

// Reset empties every cell, keeping the underlying storage for reuse.
func (g *Grid) Reset() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

// Insert records an entity at (x, y) under the given collider layer.
// Out-of-bounds positions clamp to the border cells.
func (g *Grid) Insert(id ecs.EntityID, layer ecs.ColliderLayer, x, y float32) {
	idx := g.cellIndex(x, y)
	g.cells[idx] = append(g.cells[idx], entry{id: id, layer: layer})
}

func (g *Grid) cellIndex(x, y float32) int {
	col := int(x * g.invCellSize)
	row := int(y * g.invCellSize)
	if col < 0 {
		col = 0
	} else if col >= g.cols {
		col = g.cols - 1
	}
	if row < 0 {
		row = 0
	} else if row >= g.rows {
		row = g.rows - 1
	}
	return row*g.cols + col
}

// Query returns the ids on the given layer that may lie within radius of
// (cx, cy). Candidates can include entities just outside the radius; the
// caller narrow-phases with a precise distance check. The returned slice
// is reused by the next Query/QueryAll call.
func (g *Grid) Query(cx, cy, radius float32, layer ecs.ColliderLayer) []ecs.EntityID {
	return g.query(cx, cy, radius, layer, true)
}

// QueryAll is Query without the layer filter.
func (g *Grid) QueryAll(cx, cy, radius float32) []ecs.EntityID {
	return g.query(cx, cy, radius, 0, false)
}

func (g *Grid) query(cx, cy, radius float32, layer ecs.ColliderLayer, filter bool) []ecs.EntityID {
	g.scratch = g.scratch[:0]

	minCol := int((cx - radius) * g.invCellSize)
	maxCol := int((cx + radius) * g.invCellSize)
	minRow := int((cy - radius) * g.invCellSize)
	maxRow := int((cy + radius) * g.invCellSize)
	if minCol < 0 {
		minCol = 0
	}
	if maxCol >= g.cols {
		maxCol = g.cols - 1
	}
	if minRow < 0 {
		minRow = 0
	}
	if maxRow >= g.rows {
		maxRow = g.rows - 1
	}

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			for _, e := range g.cells[row*g.cols+col] {
				if filter && e.layer != layer {
					continue
				}
				g.scratch = append(g.scratch, e.id)
			}
		}
	}
	return g.scratch
}

// Len reports how many entities are currently inserted, for tests and
// diagnostics.
func (g *Grid) Len() int {
	n := 0
	for _, cell := range g.cells {
		n += len(cell)
	}
	return n
}
