package mask

import (
	"math/rand/v2"

	"github.com/vamp-go/vamp-go/internal/tokens"
)

// Events holds timestamps, in seconds, produced by external analyzers.
type Events struct {
	Onsets    []float64
	Beats     []float64
	Downbeats []float64
}

// OnsetMask marks a window of width steps at each onset, starting at the onset
// or centred on it. Everything else is preserved.
func OnsetMask(onsets []float64, shape tokens.Shape, width int, centered bool, tb tokens.TimeBase) (*tokens.Mask, error) {
	if err := checkNonNegative("onset_width", width); err != nil {
		return nil, err
	}
	if err := tb.Validate(); err != nil {
		return nil, err
	}

	m := tokens.NewMask(shape, false)
	for _, ts := range onsets {
		start := tb.Steps(ts)
		if centered {
			start -= width / 2
		}
		fillColumns(m, start, start+width, true)
	}
	return m, nil
}

// BeatOptions selects and shapes the windows placed around detected beats.
type BeatOptions struct {
	BeforeSeconds float64
	AfterSeconds  float64

	MaskDownbeats bool
	MaskUpbeats   bool

	// Keep every Nth downbeat or upbeat. Zero means every one.
	DownbeatDownsample int
	BeatDownsample     int

	// Probability of dropping each selected window.
	Dropout float64
	Invert  bool
}

// Validate checks option ranges.
func (o BeatOptions) Validate() error {
	if o.BeforeSeconds < 0 {
		return &ParamError{Param: "beat_before_s", Value: o.BeforeSeconds, Constraint: "must be >= 0"}
	}
	if o.AfterSeconds < 0 {
		return &ParamError{Param: "beat_after_s", Value: o.AfterSeconds, Constraint: "must be >= 0"}
	}
	if err := checkNonNegative("downbeat_downsample_factor", o.DownbeatDownsample); err != nil {
		return err
	}
	if err := checkNonNegative("beat_downsample_factor", o.BeatDownsample); err != nil {
		return err
	}
	return checkProbability("beat_dropout", o.Dropout)
}

// BeatMask marks windows around selected beats and downbeats. Upbeats are the
// beats that do not coincide with a downbeat step. Upbeat windows are placed
// before downbeat windows, which fixes the dropout draw order.
func BeatMask(beats, downbeats []float64, shape tokens.Shape, opts BeatOptions, tb tokens.TimeBase, rng *rand.Rand) (*tokens.Mask, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := tb.Validate(); err != nil {
		return nil, err
	}

	downSteps := toSteps(downbeats, tb)
	isDown := make(map[int]bool, len(downSteps))
	for _, s := range downSteps {
		isDown[s] = true
	}

	var upSteps []int
	for _, s := range toSteps(beats, tb) {
		if !isDown[s] {
			upSteps = append(upSteps, s)
		}
	}

	upSteps = everyNth(upSteps, opts.BeatDownsample)
	downSteps = everyNth(downSteps, opts.DownbeatDownsample)

	before := tb.Steps(opts.BeforeSeconds)
	after := tb.Steps(opts.AfterSeconds)

	row := make([]bool, shape.Steps)
	place := func(steps []int) {
		for _, s := range steps {
			if rng.Float64() < opts.Dropout {
				continue
			}
			lo, hi := max(s-before, 0), min(s+after, shape.Steps)
			for t := lo; t < hi; t++ {
				row[t] = true
			}
		}
	}
	if opts.MaskUpbeats {
		place(upSteps)
	}
	if opts.MaskDownbeats {
		place(downSteps)
	}

	m := tokens.NewMask(shape, false)
	for t, v := range row {
		m.SetColumn(t, v != opts.Invert)
	}
	return m, nil
}

func toSteps(times []float64, tb tokens.TimeBase) []int {
	out := make([]int, 0, len(times))
	for _, ts := range times {
		out = append(out, tb.Steps(ts))
	}
	return out
}

func everyNth(steps []int, n int) []int {
	if n <= 1 {
		return steps
	}
	out := make([]int, 0, len(steps)/n+1)
	for i := 0; i < len(steps); i += n {
		out = append(out, steps[i])
	}
	return out
}

func fillColumns(m *tokens.Mask, from, to int, v bool) {
	from, to = max(from, 0), min(to, m.Shape().Steps)
	for t := from; t < to; t++ {
		m.SetColumn(t, v)
	}
}
