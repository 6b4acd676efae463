package mask

import (
	"math/rand/v2"

	"github.com/vamp-go/vamp-go/internal/tokens"
)

// And regenerates a position only if both masks mark it.
func And(a, b *tokens.Mask) (*tokens.Mask, error) {
	return zip(a, b, func(x, y bool) bool { return x && y })
}

// Or regenerates a position if either mask marks it.
func Or(a, b *tokens.Mask) (*tokens.Mask, error) {
	return zip(a, b, func(x, y bool) bool { return x || y })
}

// Dropout clears each marked position with probability p, one draw per marked cell.
func Dropout(m *tokens.Mask, p float64, rng *rand.Rand) (*tokens.Mask, error) {
	if err := checkProbability("dropout", p); err != nil {
		return nil, err
	}

	out := m.Clone()
	cells := out.Cells()
	for i, v := range cells {
		if v && rng.Float64() < p {
			cells[i] = false
		}
	}
	return out, nil
}

func zip(a, b *tokens.Mask, fn func(x, y bool) bool) (*tokens.Mask, error) {
	if err := tokens.CheckShapes(a.Shape(), b.Shape()); err != nil {
		return nil, err
	}

	out := tokens.NewMask(a.Shape(), false)
	dst, x, y := out.Cells(), a.Cells(), b.Cells()
	for i := range dst {
		dst[i] = fn(x[i], y[i])
	}
	return out, nil
}
