package tokens

import "fmt"

// Mask marks grid positions for regeneration. A true cell is regenerated,
// a false cell keeps its token.
type Mask struct {
	shape Shape
	data  []bool
}

// NewMask returns a mask of the given shape filled with value.
func NewMask(s Shape, value bool) *Mask {
	if s.Validate() != nil {
		s = Shape{}
	}
	m := &Mask{shape: s, data: make([]bool, s.Len())}
	if value {
		for i := range m.data {
			m.data[i] = true
		}
	}
	return m
}

// MaskFromRows builds a mask from one row per codebook.
func MaskFromRows(rows [][]bool) (*Mask, error) {
	steps := 0
	if len(rows) > 0 {
		steps = len(rows[0])
	}

	m := NewMask(Shape{Codebooks: len(rows), Steps: steps}, false)
	for c, row := range rows {
		if len(row) != steps {
			return nil, fmt.Errorf("%w: codebook %d has %d steps, want %d", ErrShapeMismatch, c, len(row), steps)
		}
		copy(m.data[c*steps:], row)
	}
	return m, nil
}

// MaskFromIntRows builds a mask from 0/1 rows. Any non-zero cell is true.
func MaskFromIntRows(rows [][]int) (*Mask, error) {
	bools := make([][]bool, len(rows))
	for c, row := range rows {
		bools[c] = make([]bool, len(row))
		for t, v := range row {
			bools[c][t] = v != 0
		}
	}
	return MaskFromRows(bools)
}

// Shape returns the mask extent.
func (m *Mask) Shape() Shape { return m.shape }

// At reports whether codebook c, step t is marked for regeneration.
func (m *Mask) At(c, t int) bool {
	return m.data[c*m.shape.Steps+t]
}

// Set marks or clears a single position.
func (m *Mask) Set(c, t int, v bool) {
	m.data[c*m.shape.Steps+t] = v
}

// SetColumn assigns v to every codebook at step t.
func (m *Mask) SetColumn(t int, v bool) {
	for c := 0; c < m.shape.Codebooks; c++ {
		m.data[c*m.shape.Steps+t] = v
	}
}

// SetRow assigns v to every step of codebook c.
func (m *Mask) SetRow(c int, v bool) {
	row := m.data[c*m.shape.Steps : (c+1)*m.shape.Steps]
	for i := range row {
		row[i] = v
	}
}

// Cells exposes the row-major backing slice. Callers that mutate it own the mask.
func (m *Mask) Cells() []bool { return m.data }

// Clone returns a deep copy.
func (m *Mask) Clone() *Mask {
	data := make([]bool, len(m.data))
	copy(data, m.data)
	return &Mask{shape: m.shape, data: data}
}

// Equal reports whether both masks have the same shape and cells.
func (m *Mask) Equal(o *Mask) bool {
	if m.shape != o.shape {
		return false
	}
	for i := range m.data {
		if m.data[i] != o.data[i] {
			return false
		}
	}
	return true
}

// Count returns the number of true cells.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.data {
		if v {
			n++
		}
	}
	return n
}

// Fraction returns the share of true cells, or 0 for an empty mask.
func (m *Mask) Fraction() float64 {
	if len(m.data) == 0 {
		return 0
	}
	return float64(m.Count()) / float64(len(m.data))
}

// All reports whether every cell equals v.
func (m *Mask) All(v bool) bool {
	for _, x := range m.data {
		if x != v {
			return false
		}
	}
	return true
}

// Rows returns the mask as one slice per codebook.
func (m *Mask) Rows() [][]bool {
	rows := make([][]bool, m.shape.Codebooks)
	for c := range rows {
		row := make([]bool, m.shape.Steps)
		copy(row, m.data[c*m.shape.Steps:(c+1)*m.shape.Steps])
		rows[c] = row
	}
	return rows
}

// IntRows returns the mask as 0/1 rows, the layout used for previews.
func (m *Mask) IntRows() [][]int {
	rows := make([][]int, m.shape.Codebooks)
	for c := range rows {
		row := make([]int, m.shape.Steps)
		for t := range row {
			if m.At(c, t) {
				row[t] = 1
			}
		}
		rows[c] = row
	}
	return rows
}

// Columns returns a new mask holding steps [from, to).
func (m *Mask) Columns(from, to int) *Mask {
	from, to = clampRange(from, to, m.shape.Steps)
	out := NewMask(Shape{Codebooks: m.shape.Codebooks, Steps: to - from}, false)
	for c := 0; c < m.shape.Codebooks; c++ {
		copy(out.data[c*out.shape.Steps:], m.data[c*m.shape.Steps+from:c*m.shape.Steps+to])
	}
	return out
}

// ConcatMasks joins masks along the time axis.
func ConcatMasks(parts ...*Mask) (*Mask, error) {
	if len(parts) == 0 {
		return NewMask(Shape{}, false), nil
	}

	codebooks := parts[0].shape.Codebooks
	steps := 0
	for i, p := range parts {
		if p.shape.Codebooks != codebooks {
			return nil, fmt.Errorf("%w: part %d has %d codebooks, want %d", ErrShapeMismatch, i, p.shape.Codebooks, codebooks)
		}
		steps += p.shape.Steps
	}

	out := NewMask(Shape{Codebooks: codebooks, Steps: steps}, false)
	offset := 0
	for _, p := range parts {
		for c := 0; c < codebooks; c++ {
			copy(out.data[c*steps+offset:], p.data[c*p.shape.Steps:(c+1)*p.shape.Steps])
		}
		offset += p.shape.Steps
	}
	return out, nil
}
