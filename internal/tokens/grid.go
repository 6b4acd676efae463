package tokens

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch indicates two grids that must be paired have different shapes.
var ErrShapeMismatch = errors.New("shape mismatch")

// Shape is the [codebooks, steps] extent of a grid.
type Shape struct {
	Codebooks int `json:"codebooks" msgpack:"codebooks"`
	Steps     int `json:"steps" msgpack:"steps"`
}

func (s Shape) String() string {
	return fmt.Sprintf("[%d, %d]", s.Codebooks, s.Steps)
}

// Len returns the number of cells in a grid of this shape.
func (s Shape) Len() int {
	return s.Codebooks * s.Steps
}

// Validate rejects negative extents.
func (s Shape) Validate() error {
	if s.Codebooks < 0 || s.Steps < 0 {
		return fmt.Errorf("invalid shape %s", s)
	}
	return nil
}

// CheckShapes returns ErrShapeMismatch when a and b differ.
func CheckShapes(a, b Shape) error {
	if a != b {
		return fmt.Errorf("%w: %s vs %s", ErrShapeMismatch, a, b)
	}
	return nil
}

// Grid is an immutable [codebooks, steps] array of codec tokens.
// Codebook 0 is the coarsest.
type Grid struct {
	shape Shape
	data  []int
}

// NewGrid returns a zero-filled grid.
func NewGrid(codebooks, steps int) *Grid {
	s := Shape{Codebooks: codebooks, Steps: steps}
	if s.Validate() != nil {
		s = Shape{}
	}
	return &Grid{shape: s, data: make([]int, s.Len())}
}

// FromRows builds a grid from one row per codebook. Rows must have equal length
// and hold non-negative values.
func FromRows(rows [][]int) (*Grid, error) {
	steps := 0
	if len(rows) > 0 {
		steps = len(rows[0])
	}

	g := NewGrid(len(rows), steps)
	for c, row := range rows {
		if len(row) != steps {
			return nil, fmt.Errorf("%w: codebook %d has %d steps, want %d", ErrShapeMismatch, c, len(row), steps)
		}
		for t, v := range row {
			if v < 0 {
				return nil, fmt.Errorf("negative token %d at (%d, %d)", v, c, t)
			}
		}
		copy(g.data[c*steps:], row)
	}
	return g, nil
}

// Shape returns the grid extent.
func (g *Grid) Shape() Shape { return g.shape }

// Codebooks returns the number of codebook rows.
func (g *Grid) Codebooks() int { return g.shape.Codebooks }

// Steps returns the number of time steps.
func (g *Grid) Steps() int { return g.shape.Steps }

// At returns the token at codebook c, step t.
func (g *Grid) At(c, t int) int {
	return g.data[c*g.shape.Steps+t]
}

// Rows returns a copy of the grid as one slice per codebook.
func (g *Grid) Rows() [][]int {
	rows := make([][]int, g.shape.Codebooks)
	for c := range rows {
		row := make([]int, g.shape.Steps)
		copy(row, g.data[c*g.shape.Steps:(c+1)*g.shape.Steps])
		rows[c] = row
	}
	return rows
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	data := make([]int, len(g.data))
	copy(data, g.data)
	return &Grid{shape: g.shape, data: data}
}

// Equal reports whether both grids have the same shape and tokens.
func (g *Grid) Equal(o *Grid) bool {
	if g.shape != o.shape {
		return false
	}
	for i := range g.data {
		if g.data[i] != o.data[i] {
			return false
		}
	}
	return true
}

// Columns returns a new grid holding steps [from, to).
func (g *Grid) Columns(from, to int) *Grid {
	from, to = clampRange(from, to, g.shape.Steps)
	out := NewGrid(g.shape.Codebooks, to-from)
	for c := 0; c < g.shape.Codebooks; c++ {
		copy(out.data[c*out.shape.Steps:], g.data[c*g.shape.Steps+from:c*g.shape.Steps+to])
	}
	return out
}

// Concat joins grids along the time axis. All parts must share a codebook count.
func Concat(parts ...*Grid) (*Grid, error) {
	if len(parts) == 0 {
		return NewGrid(0, 0), nil
	}

	codebooks := parts[0].shape.Codebooks
	steps := 0
	for i, p := range parts {
		if p.shape.Codebooks != codebooks {
			return nil, fmt.Errorf("%w: part %d has %d codebooks, want %d", ErrShapeMismatch, i, p.shape.Codebooks, codebooks)
		}
		steps += p.shape.Steps
	}

	out := NewGrid(codebooks, steps)
	offset := 0
	for _, p := range parts {
		for c := 0; c < codebooks; c++ {
			copy(out.data[c*steps+offset:], p.data[c*p.shape.Steps:(c+1)*p.shape.Steps])
		}
		offset += p.shape.Steps
	}
	return out, nil
}

// Builder accumulates token edits before producing an immutable Grid.
type Builder struct {
	grid *Grid
}

// NewBuilder starts from a copy of g.
func NewBuilder(g *Grid) *Builder {
	return &Builder{grid: g.Clone()}
}

// Set writes the token at codebook c, step t.
func (b *Builder) Set(c, t, v int) {
	b.grid.data[c*b.grid.shape.Steps+t] = v
}

// CopyColumns writes src's steps [from, from+n) into the builder at step dst.
func (b *Builder) CopyColumns(src *Grid, from, dst, n int) {
	for c := 0; c < b.grid.shape.Codebooks; c++ {
		for i := 0; i < n; i++ {
			b.Set(c, dst+i, src.At(c, from+i))
		}
	}
}

// Grid returns the built grid. The builder must not be used afterwards.
func (b *Builder) Grid() *Grid {
	g := b.grid
	b.grid = nil
	return g
}

func clampRange(from, to, n int) (int, int) {
	if from < 0 {
		from = 0
	}
	if to > n {
		to = n
	}
	if to < from {
		to = from
	}
	return from, to
}
