// Package mask builds generation masks over token grids and composes them.
//
// Every builder returns a fresh mask; inputs are never modified. Random
// builders draw from the supplied *rand.Rand in row-major order, so the
// order in which builders run fixes the sequence of draws.
package mask

import (
	"math/rand/v2"

	"github.com/vamp-go/vamp-go/internal/tokens"
)

// LinearRandom marks each position independently with probability intensity.
func LinearRandom(shape tokens.Shape, intensity float64, rng *rand.Rand) (*tokens.Mask, error) {
	if err := checkProbability("intensity", intensity); err != nil {
		return nil, err
	}

	m := tokens.NewMask(shape, false)
	cells := m.Cells()
	for i := range cells {
		cells[i] = rng.Float64() < intensity
	}
	return m, nil
}

// Inpaint marks everything except the first prefix and last suffix steps.
// Both are clamped to the grid; overlapping hints protect every column.
func Inpaint(shape tokens.Shape, prefix, suffix int) (*tokens.Mask, error) {
	if err := checkNonNegative("prefix_steps", prefix); err != nil {
		return nil, err
	}
	if err := checkNonNegative("suffix_steps", suffix); err != nil {
		return nil, err
	}

	steps := shape.Steps
	prefix = min(prefix, steps)
	suffix = min(suffix, steps)

	m := tokens.NewMask(shape, true)
	for t := 0; t < prefix; t++ {
		m.SetColumn(t, false)
	}
	for t := steps - suffix; t < steps; t++ {
		m.SetColumn(t, false)
	}
	return m, nil
}

// Periodic protects a run of width steps every period steps, starting at
// offset. A period of 0 marks everything (unconditional generation).
func Periodic(shape tokens.Shape, period, width, offset int) (*tokens.Mask, error) {
	if err := checkNonNegative("period", period); err != nil {
		return nil, err
	}
	if err := checkNonNegative("period_width", width); err != nil {
		return nil, err
	}

	m := tokens.NewMask(shape, true)
	if period == 0 {
		return m, nil
	}

	offset = ((offset % period) + period) % period
	for t := 0; t < shape.Steps; t++ {
		phase := ((t-offset)%period + period) % period
		if phase < width {
			m.SetColumn(t, false)
		}
	}
	return m, nil
}

// RandomOffset draws a periodic phase in [0, period).
func RandomOffset(period int, rng *rand.Rand) int {
	if period <= 0 {
		return 0
	}
	return rng.IntN(period)
}

// Codebook forces every codebook at index n or above to be regenerated.
// Codebooks below n are copied unchanged.
func Codebook(m *tokens.Mask, n int) (*tokens.Mask, error) {
	if err := checkNonNegative("n_mask_codebooks", n); err != nil {
		return nil, err
	}

	out := m.Clone()
	for c := n; c < out.Shape().Codebooks; c++ {
		out.SetRow(c, true)
	}
	return out, nil
}

// Full returns a mask that regenerates everything.
func Full(shape tokens.Shape) *tokens.Mask {
	return tokens.NewMask(shape, true)
}

// Empty returns a mask that preserves everything.
func Empty(shape tokens.Shape) *tokens.Mask {
	return tokens.NewMask(shape, false)
}
