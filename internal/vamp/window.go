package vamp

import (
	"github.com/vamp-go/vamp-go/internal/tokens"
)

// nextWindow derives the input of a continuation pass from the previous output.
// The body (everything before the suffix) is rotated left so that its last
// prefix steps open the new window; suffix is placed after the body.
func nextWindow(prev *tokens.Grid, prefix int, suffix *tokens.Grid) *tokens.Grid {
	steps := prev.Steps()
	bodyLen := steps - suffix.Steps()

	b := tokens.NewBuilder(prev)
	b.CopyColumns(prev, bodyLen-prefix, 0, prefix)
	b.CopyColumns(prev, 0, prefix, bodyLen-prefix)
	b.CopyColumns(suffix, 0, bodyLen, suffix.Steps())
	return b.Grid()
}

// withSuffix replaces the last suffix.Steps() columns of z.
func withSuffix(z *tokens.Grid, suffix *tokens.Grid) *tokens.Grid {
	b := tokens.NewBuilder(z)
	b.CopyColumns(suffix, 0, z.Steps()-suffix.Steps(), suffix.Steps())
	return b.Grid()
}

// timeline accumulates pass outputs into one continuous grid and mask.
type timeline struct {
	prefix, suffix int

	grids []*tokens.Grid
	masks []*tokens.Mask
	last  *passOutput
}

type passOutput struct {
	tokens *tokens.Grid
	mask   *tokens.Mask
}

// add appends a pass. The first pass contributes its whole body, later passes
// skip the prefix they were seeded with.
func (tl *timeline) add(out *tokens.Grid, m *tokens.Mask) {
	bodyEnd := out.Steps() - tl.suffix
	from := 0
	if len(tl.grids) > 0 {
		from = tl.prefix
	}
	tl.grids = append(tl.grids, out.Columns(from, bodyEnd))
	tl.masks = append(tl.masks, m.Columns(from, bodyEnd))
	tl.last = &passOutput{tokens: out, mask: m}
}

// assemble joins the bodies, optionally followed by the last pass's suffix.
func (tl *timeline) assemble(withTail bool) (*tokens.Grid, *tokens.Mask, error) {
	grids, masks := tl.grids, tl.masks
	if withTail && tl.last != nil {
		steps := tl.last.tokens.Steps()
		grids = append(grids, tl.last.tokens.Columns(steps-tl.suffix, steps))
		masks = append(masks, tl.last.mask.Columns(steps-tl.suffix, steps))
	}

	g, err := tokens.Concat(grids...)
	if err != nil {
		return nil, nil, err
	}
	m, err := tokens.ConcatMasks(masks...)
	if err != nil {
		return nil, nil, err
	}
	return g, m, nil
}
